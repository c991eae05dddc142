// seed-admin bootstraps an empty database: the first CEO account and the default
// produce catalog (one item per commodity per branch).
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin --username ceo --name "Karibu CEO" --password '...'
//
// SEED_ADMIN_PASSWORD is read when --password is empty.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/models"
)

func main() {
	username := flag.String("username", "ceo", "CEO username")
	name := flag.String("name", "Karibu CEO", "CEO display name")
	password := flag.String("password", "", "CEO password (min 8 chars). Defaults to SEED_ADMIN_PASSWORD.")
	skipCatalog := flag.Bool("skip-catalog", false, "Do not seed the default produce catalog")
	flag.Parse()

	if strings.TrimSpace(*password) == "" {
		*password = os.Getenv("SEED_ADMIN_PASSWORD")
	}
	if strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "--password or SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err := db.WithContext(ctx).Where("username = ?", *username).Limit(1).Find(&existing).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}
	if existing.ID > 0 {
		fmt.Printf("user %q already exists (id=%d role=%s); not touching it\n", existing.Username, existing.ID, existing.Role)
	} else {
		user, err := models.CreateInitialUser(ctx, &models.NewUser{
			Username: *username,
			Name:     *name,
			Password: *password,
			Role:     models.UserRoleCEO,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create CEO: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created CEO %q (id=%d)\n", user.Username, user.ID)
	}

	if *skipCatalog {
		return
	}
	n, err := models.SeedProduceCatalog(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed produce catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d produce items\n", n)
}

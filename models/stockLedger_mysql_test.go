//go:build mysql

package models_test

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Run with: MYSQL_TEST_DSN='user:pass@tcp(127.0.0.1:3306)/produce_test?parseTime=true&loc=UTC&clientFoundRows=true' go test -tags mysql ./models/
func setupMySQL(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	t.Setenv("RECONCILE_CRON", "off")
	t.Setenv("ENABLE_REPORT_CACHE", "")

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(16)
	require.NoError(t, models.AutoMigrateAll(db))
	config.SetDB(db)
	config.SetRedisClient(nil)
	t.Cleanup(func() { _ = sqlDB.Close() })

	suffix := time.Now().UnixNano()
	f := &fixture{db: db}
	f.agent = createTestUser(t, db, fmt.Sprintf("agent-%d", suffix), models.UserRoleAgent)
	f.beans = &models.Produce{Name: fmt.Sprintf("Beans %d", suffix), Type: models.CommodityBeans, Branch: models.BranchMaganjo}
	require.NoError(t, db.Create(f.beans).Error)
	return f
}

func TestMySQL_ConcurrentSalesCannotOversell(t *testing.T) {
	f := setupMySQL(t)
	ctx := actorCtx(f.agent)

	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "60"))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = models.CreateSale(ctx, saleInput(f.beans.ID, "10.10"))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, utils.ErrInsufficientStock):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// 5 x 10.10 = 50.50 fits, a sixth does not
	assert.Equal(t, 5, ok)
	requireBalance(t, f.db, f.beans.ID, "9.50")

	var sold int64
	require.NoError(t, f.db.Model(&models.Sale{}).Where("produce_id = ?", f.beans.ID).Count(&sold).Error)
	assert.Equal(t, int64(5), sold)
}

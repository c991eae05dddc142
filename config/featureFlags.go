package config

import (
	"os"
	"strings"
	"time"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SkipMigrations disables AutoMigrate at startup.
//
// Set via env:
// - SKIP_MIGRATIONS=true
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

// ReportCacheEnabled caches analytics rollups in redis.
//
// Set via env:
// - ENABLE_REPORT_CACHE=true
// - REPORT_CACHE_TTL_SECONDS (default 60)
func ReportCacheEnabled() bool {
	return envBool("ENABLE_REPORT_CACHE")
}

func ReportCacheTTL() time.Duration {
	return time.Duration(intFromEnv("REPORT_CACHE_TTL_SECONDS", 60)) * time.Second
}

// ReconcileCronSpec is the schedule for the stock drift check. Empty string disables it.
//
// Set via env:
// - RECONCILE_CRON (default "0 2 * * *"; "off" disables)
func ReconcileCronSpec() string {
	v, ok := os.LookupEnv("RECONCILE_CRON")
	if !ok {
		return "0 2 * * *"
	}
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "off") {
		return ""
	}
	return v
}

// PhoneRegion is the default region used when a contact number has no country prefix.
func PhoneRegion() string {
	if v := strings.TrimSpace(os.Getenv("PHONE_REGION")); v != "" {
		return strings.ToUpper(v)
	}
	return "UG"
}

// StockLockTimeout bounds how long a mutation waits for the per-produce redis lock.
func StockLockTimeout() time.Duration {
	return time.Duration(intFromEnv("STOCK_LOCK_TIMEOUT_MS", 3000)) * time.Millisecond
}

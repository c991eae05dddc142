package workflow

import (
	"errors"
	"fmt"

	"github.com/karibu/produce_backend/config"
	"gorm.io/gorm"
)

var errJobLockBusy = errors.New("job lock held by another instance")

// withJobLock runs fn while holding a MySQL advisory lock named job:<name>, so only one
// instance runs a scheduled job at a time. GET_LOCK is connection-scoped, so fn runs on
// the same pinned connection. Other drivers run fn without a lock.
func withJobLock(db *gorm.DB, name string, fn func() error) error {
	if !config.IsMySQL() {
		return fn()
	}
	lockName := fmt.Sprintf("job:%s", name)
	return db.Connection(func(conn *gorm.DB) error {
		var ok int
		if err := conn.Raw("SELECT GET_LOCK(?, 0)", lockName).Scan(&ok).Error; err != nil {
			return err
		}
		if ok != 1 {
			return errJobLockBusy
		}
		defer func() {
			var released int
			_ = conn.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
		}()
		return fn()
	})
}

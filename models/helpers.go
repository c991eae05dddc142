package models

import (
	"strconv"

	"github.com/karibu/produce_backend/config"
	"gorm.io/gorm"
)

const maxPageSize = 200

func itoa(i int) string {
	return strconv.Itoa(i)
}

func paginate(q *gorm.DB, limit int, offset int) *gorm.DB {
	if limit <= 0 {
		limit = config.SearchLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}

// ReportCachePattern matches every cached analytics rollup.
const ReportCachePattern = "Report:*"

// invalidateReportCache drops cached analytics after a journal change.
func invalidateReportCache() {
	if !config.ReportCacheEnabled() {
		return
	}
	if err := config.RemoveRedisKeysByPattern(ReportCachePattern); err != nil {
		config.LogError(config.GetLogger(), "Reports", "invalidateReportCache", "remove cached reports", nil, err)
	}
}

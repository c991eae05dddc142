package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/utils"
)

var statusByKind = map[utils.ErrorKind]int{
	utils.KindValidation:        http.StatusBadRequest,
	utils.KindInsufficientStock: http.StatusConflict,
	utils.KindNotFound:          http.StatusNotFound,
	utils.KindForbidden:         http.StatusForbidden,
	utils.KindIntegrity:         http.StatusInternalServerError,
	utils.KindBusy:              http.StatusConflict,
}

// respondError writes {"error": {...}} with the status of the error kind.
// Infrastructure errors are logged and reported as a bare 500.
func respondError(c *gin.Context, err error) {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		status, ok := statusByKind[appErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, gin.H{"error": appErr})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "INTERNAL", "message": "internal server error"}})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": utils.NewValidationError(message, nil)})
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return nil, false
	}
	return &v, true
}

// queryDate parses YYYY-MM-DD. nextDay turns an inclusive end date into an exclusive bound.
func queryDate(c *gin.Context, name string, nextDay bool) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		badRequest(c, name+" must be a date in YYYY-MM-DD format")
		return nil, false
	}
	if nextDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, true
}

func dateRange(c *gin.Context) (from *time.Time, to *time.Time, ok bool) {
	if from, ok = queryDate(c, "from", false); !ok {
		return nil, nil, false
	}
	if to, ok = queryDate(c, "to", true); !ok {
		return nil, nil, false
	}
	if from != nil && to != nil && !to.After(*from) {
		badRequest(c, "to must not be before from")
		return nil, nil, false
	}
	return from, to, true
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// loaded reports whether row i of a LoadMany result resolved without error.
func loaded(errs []error, i int) bool {
	return len(errs) <= i || errs[i] == nil
}

package reports

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("produce-backend/reports")

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms, err := strconv.ParseInt(os.Getenv("REPORT_SLOW_MS"), 10, 64)
	if err != nil || ms <= 0 {
		return 500
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"correlation_id": cid,
	}).Warn("slow report")
}

// reportCacheKey lives under models.ReportCachePattern so journal writes invalidate it.
func reportCacheKey(name string, from time.Time, to time.Time) string {
	return "Report:" + name + ":" + boundKey(from) + ":" + boundKey(to)
}

func boundKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

func cacheGet[T any](key string, dest *T) (bool, error) {
	if !config.ReportCacheEnabled() {
		return false, nil
	}
	return config.GetRedisObject(key, dest)
}

func cacheSet(key string, obj any) {
	if !config.ReportCacheEnabled() {
		return
	}
	if err := config.SetRedisObject(key, obj, config.ReportCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "Reports", "cacheSet", "cache report", key, err)
	}
}

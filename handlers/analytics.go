package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/models/reports"
)

func kpisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		kpis, err := reports.GetKPIs(c.Request.Context(), deref(from), deref(to))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, kpis)
	}
}

func trendsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		trends, err := reports.GetSalesTrends(c.Request.Context(), deref(from), deref(to))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trends)
	}
}

func exportAnalyticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		f, err := reports.ExportAnalyticsExcel(c.Request.Context(), deref(from), deref(to))
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=analytics.xlsx")
		if err := f.Write(c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}

type reconcileResponse struct {
	CorrelationId string                        `json:"correlation_id"`
	Findings      []models.ReconciliationReport `json:"findings"`
}

// reconcileHandler runs the stock drift check on demand.
func reconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.Authorize(ctx, models.OpRunReconciliation); err != nil {
			respondError(c, err)
			return
		}
		cid, findings, err := models.RunStockReconciliationChecks(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		if findings == nil {
			findings = []models.ReconciliationReport{}
		}
		c.JSON(http.StatusOK, reconcileResponse{CorrelationId: cid, Findings: findings})
	}
}

func reconciliationReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := models.GetReconciliationReports(c.Request.Context(), c.Query("correlation_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

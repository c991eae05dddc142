package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/models"
	"github.com/shopspring/decimal"
)

type overrideStockRequest struct {
	CurrentTonnage *decimal.Decimal `json:"current_tonnage" binding:"required"`
}

func listStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var branch *models.Branch
		if raw := c.Query("branch"); raw != "" {
			b := models.Branch(raw)
			branch = &b
		}
		levels, err := models.GetStocks(c.Request.Context(), branch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, levels)
	}
}

func getStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "produce_id")
		if !ok {
			return
		}
		level, err := models.GetStock(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, level)
	}
}

func overrideStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "produce_id")
		if !ok {
			return
		}
		var req overrideStockRequest
		if !bindJSON(c, &req) {
			return
		}
		level, err := models.OverrideStock(c.Request.Context(), id, *req.CurrentTonnage)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, level)
	}
}

func stockMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "produce_id")
		if !ok {
			return
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		n := 0
		if limit != nil {
			n = *limit
		}
		movements, err := models.GetStockMovements(c.Request.Context(), id, n)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, movements)
	}
}

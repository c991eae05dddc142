package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/models"
)

func listProduceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.ProduceFilter
		if raw := c.Query("type"); raw != "" {
			t := models.CommodityType(raw)
			filter.Type = &t
		}
		if raw := c.Query("branch"); raw != "" {
			b := models.Branch(raw)
			filter.Branch = &b
		}
		list, err := models.GetProduces(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func createProduceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduce
		if !bindJSON(c, &input) {
			return
		}
		produce, err := models.CreateProduce(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, produce)
	}
}

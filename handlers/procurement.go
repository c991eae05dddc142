package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/middlewares"
	"github.com/karibu/produce_backend/models"
)

type procurementResponse struct {
	*models.Procurement
	ProduceName string `json:"produce_name"`
}

func listProcurementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.ProcurementFilter
		var ok bool
		if filter.ProduceId, ok = queryInt(c, "produce_id"); !ok {
			return
		}
		if filter.FromDate, filter.ToDate, ok = dateRange(c); !ok {
			return
		}
		if raw := c.Query("branch"); raw != "" {
			b := models.Branch(raw)
			filter.Branch = &b
		}
		if raw := c.Query("dealer_name"); raw != "" {
			filter.DealerName = &raw
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset")
		if !ok {
			return
		}
		if limit != nil {
			filter.Limit = *limit
		}
		if offset != nil {
			filter.Offset = *offset
		}

		ctx := c.Request.Context()
		list, err := models.GetProcurements(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		ids := make([]int, len(list))
		for i, p := range list {
			ids[i] = p.ProduceId
		}
		produces, errs := middlewares.GetProduces(ctx, ids)
		resp := make([]procurementResponse, len(list))
		for i, p := range list {
			resp[i] = procurementResponse{Procurement: p}
			if loaded(errs, i) && produces[i] != nil {
				resp[i].ProduceName = produces[i].Name
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func getProcurementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		p, err := models.GetProcurement(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func createProcurementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProcurement
		if !bindJSON(c, &input) {
			return
		}
		p, err := models.CreateProcurement(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func updateProcurementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewProcurement
		if !bindJSON(c, &input) {
			return
		}
		p, err := models.UpdateProcurement(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func deleteProcurementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		p, err := models.DeleteProcurement(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

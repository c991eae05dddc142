package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/middlewares"
	"github.com/karibu/produce_backend/models"
)

type saleResponse struct {
	*models.Sale
	ProduceName string `json:"produce_name"`
	AgentName   string `json:"agent_name"`
}

func listSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.SaleFilter
		var ok bool
		if filter.ProduceId, ok = queryInt(c, "produce_id"); !ok {
			return
		}
		if filter.AgentId, ok = queryInt(c, "agent_id"); !ok {
			return
		}
		if filter.FromDate, filter.ToDate, ok = dateRange(c); !ok {
			return
		}
		if raw := c.Query("is_credit"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				badRequest(c, "is_credit must be true or false")
				return
			}
			filter.IsCredit = &v
		}
		if limit, ok := queryInt(c, "limit"); !ok {
			return
		} else if limit != nil {
			filter.Limit = *limit
		}
		if offset, ok := queryInt(c, "offset"); !ok {
			return
		} else if offset != nil {
			filter.Offset = *offset
		}

		ctx := c.Request.Context()
		list, err := models.GetSales(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		produceIds := make([]int, len(list))
		agentIds := make([]int, len(list))
		for i, s := range list {
			produceIds[i] = s.ProduceId
			agentIds[i] = s.AgentId
		}
		produces, produceErrs := middlewares.GetProduces(ctx, produceIds)
		agents, agentErrs := middlewares.GetUsers(ctx, agentIds)

		resp := make([]saleResponse, len(list))
		for i, s := range list {
			resp[i] = saleResponse{Sale: s}
			if loaded(produceErrs, i) && produces[i] != nil {
				resp[i].ProduceName = produces[i].Name
			}
			if loaded(agentErrs, i) && agents[i] != nil {
				resp[i].AgentName = agents[i].Name
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func getSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		sale, err := models.GetSale(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sale)
	}
}

func createSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSale
		if !bindJSON(c, &input) {
			return
		}
		sale, err := models.CreateSale(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sale)
	}
}

func updateSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewSale
		if !bindJSON(c, &input) {
			return
		}
		sale, err := models.UpdateSale(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sale)
	}
}

func deleteSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		sale, err := models.DeleteSale(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sale)
	}
}

// receiptHandler returns the receipt as JSON, or as plain text with ?format=text.
func receiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		receipt, err := models.GetReceipt(c.Request.Context(), c.Param("receipt_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if c.Query("format") != "text" {
			c.JSON(http.StatusOK, receipt)
			return
		}
		text, err := receipt.RenderText()
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", "inline; filename=receipt-"+receipt.ReceiptId+".txt")
		c.String(http.StatusOK, text)
	}
}

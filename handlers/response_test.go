package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/karibu/produce_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError_StatusByKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{utils.NewFieldError("tonnage", "required"), http.StatusBadRequest, "VALIDATION"},
		{utils.NewInsufficientStockError("only %s t available", "2"), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{utils.NewBusyError("stock for this produce is busy, try again"), http.StatusConflict, "BUSY"},
		{fmt.Errorf("create sale: %w", utils.NewBusyError("busy")), http.StatusConflict, "BUSY"},
		{utils.NewForbiddenError("forbidden"), http.StatusForbidden, "FORBIDDEN"},
		{utils.NewNotFoundError("sale", 3), http.StatusNotFound, "NOT_FOUND"},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		var body struct {
			Error struct {
				Kind string `json:"kind"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.kind, body.Error.Kind)
	}
}

package handler

import (
	"strconv"

	"wager-ledger/internal/adapter/http/dto"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/formula"
	"wager-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// MarketHandler serves the public market and formula endpoints.
type MarketHandler struct {
	marketSvc ports.MarketService
}

func NewMarketHandler(marketSvc ports.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// Prediction handles GET /api/v1/market/prediction.
func (h *MarketHandler) Prediction(c *gin.Context) {
	p, err := h.marketSvc.Prediction(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// History handles GET /api/v1/market/history?limit=.
func (h *MarketHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	records, err := h.marketSvc.ListHistory(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Formula1 handles GET /api/v1/formula/1?result=.
func (h *MarketHandler) Formula1(c *gin.Context) {
	response.OK(c, dto.FormulaResponse{
		Formula: "1",
		Result:  formula.Display(formula.Formula1(c.Query("result"))),
	})
}

// Formula2 handles GET /api/v1/formula/2?set=&value=.
func (h *MarketHandler) Formula2(c *gin.Context) {
	response.OK(c, dto.FormulaResponse{
		Formula: "2",
		Result:  formula.Display(formula.Formula2(c.Query("set"), c.Query("value"))),
	})
}

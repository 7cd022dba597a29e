package handler

import (
	"strconv"

	"wager-ledger/internal/adapter/http/dto"
	"wager-ledger/internal/adapter/http/middleware"
	"wager-ledger/internal/core/ports"
	"wager-ledger/pkg/apperror"
	"wager-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxIdempotencyKeyLen = 128

// BetHandler serves the player-facing wagering endpoints.
type BetHandler struct {
	bettingSvc ports.BettingService
	accountSvc ports.AccountService
}

func NewBetHandler(bettingSvc ports.BettingService, accountSvc ports.AccountService) *BetHandler {
	return &BetHandler{bettingSvc: bettingSvc, accountSvc: accountSvc}
}

// PlaceBet handles POST /api/v1/bets.
func (h *BetHandler) PlaceBet(c *gin.Context) {
	var req dto.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidBet(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	key := c.GetHeader(middleware.HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	voucher, err := h.bettingSvc.PlaceBet(c.Request.Context(), ports.PlaceBetRequest{
		Username:       middleware.Username(c),
		Numbers:        req.Numbers,
		StakePerNumber: req.StakePerNumber,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, voucher)
}

// ListBets handles GET /api/v1/bets?limit=.
func (h *BetHandler) ListBets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	bets, err := h.accountSvc.ListBets(c.Request.Context(), middleware.Username(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BetResponse, len(bets))
	for i, b := range bets {
		items[i] = dto.NewBetResponse(b)
	}
	response.OK(c, items)
}

// GetAccount handles GET /api/v1/account.
func (h *BetHandler) GetAccount(c *gin.Context) {
	account, err := h.accountSvc.GetAccount(c.Request.Context(), middleware.Username(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

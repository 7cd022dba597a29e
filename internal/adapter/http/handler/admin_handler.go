package handler

import (
	"wager-ledger/internal/adapter/http/dto"
	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/pkg/apperror"
	"wager-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves operator endpoints. All routes require the admin role.
type AdminHandler struct {
	accountSvc ports.AccountService
	settleSvc  ports.SettlementService
	blockSvc   ports.BlockListService
	marketSvc  ports.MarketService
}

func NewAdminHandler(
	accountSvc ports.AccountService,
	settleSvc ports.SettlementService,
	blockSvc ports.BlockListService,
	marketSvc ports.MarketService,
) *AdminHandler {
	return &AdminHandler{
		accountSvc: accountSvc,
		settleSvc:  settleSvc,
		blockSvc:   blockSvc,
		marketSvc:  marketSvc,
	}
}

// TopUp handles POST /api/v1/admin/accounts/:username/topup.
func (h *AdminHandler) TopUp(c *gin.Context) {
	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	account, err := h.accountSvc.TopUp(c.Request.Context(), c.Param("username"), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// Settle handles POST /api/v1/admin/settlements.
func (h *AdminHandler) Settle(c *gin.Context) {
	var req dto.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.settleSvc.Settle(c.Request.Context(), ports.SettleRequest{
		Session:       domain.Session(req.Session),
		WinningNumber: req.WinningNumber,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListBlocks handles GET /api/v1/admin/blocks.
func (h *AdminHandler) ListBlocks(c *gin.Context) {
	numbers, err := h.blockSvc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BlockListResponse{Numbers: numbers, Count: len(numbers)})
}

// AddBlock handles POST /api/v1/admin/blocks.
func (h *AdminHandler) AddBlock(c *gin.Context) {
	var req dto.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidBlock(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	added, err := h.blockSvc.SetBlock(c.Request.Context(), domain.BlockMode(req.Mode), req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.BlockListResponse{Numbers: added, Count: len(added)})
}

// RemoveBlock handles DELETE /api/v1/admin/blocks/:number.
func (h *AdminHandler) RemoveBlock(c *gin.Context) {
	if err := h.blockSvc.Remove(c.Request.Context(), c.Param("number")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"removed": c.Param("number")})
}

// ClearBlocks handles DELETE /api/v1/admin/blocks.
func (h *AdminHandler) ClearBlocks(c *gin.Context) {
	if err := h.blockSvc.Clear(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"cleared": true})
}

// GetMarket handles GET /api/v1/admin/market.
func (h *AdminHandler) GetMarket(c *gin.Context) {
	snap, err := h.marketSvc.GetSnapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snap)
}

// UpdateMarket handles PUT /api/v1/admin/market.
func (h *AdminHandler) UpdateMarket(c *gin.Context) {
	var req dto.SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidMarketInput(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	snap, err := h.marketSvc.UpdateSnapshot(c.Request.Context(), domain.MarketSnapshot{
		Morning: req.Morning,
		Evening: req.Evening,
		Set:     req.Set,
		Value:   req.Value,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snap)
}

// UpsertHistory handles POST /api/v1/admin/history.
func (h *AdminHandler) UpsertHistory(c *gin.Context) {
	var req dto.HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidMarketInput(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rec, err := h.marketSvc.UpsertDailyHistory(c.Request.Context(), req.Date, req.Morning, req.Evening)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

package handler

import (
	"wager-ledger/internal/adapter/http/middleware"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	BettingSvc     ports.BettingService
	SettlementSvc  ports.SettlementService
	AccountSvc     ports.AccountService
	BlockListSvc   ports.BlockListService
	MarketSvc      ports.MarketService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Mode           string             // gin mode; defaults to release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	marketHandler := NewMarketHandler(deps.MarketSvc)
	v1.GET("/market/prediction", rl("public"), marketHandler.Prediction)
	v1.GET("/market/history", rl("public"), marketHandler.History)
	v1.GET("/formula/1", rl("public"), marketHandler.Formula1)
	v1.GET("/formula/2", rl("public"), marketHandler.Formula2)

	// --- Player routes (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	betHandler := NewBetHandler(deps.BettingSvc, deps.AccountSvc)

	player := v1.Group("", jwtAuth)
	{
		player.POST("/bets", rl("bets"), betHandler.PlaceBet)
		player.GET("/bets", rl("account"), betHandler.ListBets)
		player.GET("/account", rl("account"), betHandler.GetAccount)
	}

	// --- Operator routes (JWT + admin role) ---
	adminHandler := NewAdminHandler(deps.AccountSvc, deps.SettlementSvc, deps.BlockListSvc, deps.MarketSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireAdmin(), rl("admin"))
	{
		admin.POST("/accounts/:username/topup", adminHandler.TopUp)
		admin.POST("/settlements", adminHandler.Settle)
		admin.GET("/blocks", adminHandler.ListBlocks)
		admin.POST("/blocks", adminHandler.AddBlock)
		admin.DELETE("/blocks", adminHandler.ClearBlocks)
		admin.DELETE("/blocks/:number", adminHandler.RemoveBlock)
		admin.GET("/market", adminHandler.GetMarket)
		admin.PUT("/market", adminHandler.UpdateMarket)
		admin.POST("/history", adminHandler.UpsertHistory)
	}

	return r
}

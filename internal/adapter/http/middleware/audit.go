package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// It maps routes to audit actions by their registered path.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var username *string
		if u := Username(c); u != "" {
			username = &u
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Username:     username,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID(c),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func resourceID(c *gin.Context) string {
	if u := c.Param("username"); u != "" {
		return u
	}
	return c.Param("number")
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	route = strings.TrimPrefix(route, "/api/v1")
	switch {
	case route == "/auth/register" && method == http.MethodPost:
		return domain.AuditActionRegister, "account"
	case route == "/auth/login" && method == http.MethodPost:
		return domain.AuditActionLogin, "session"
	case route == "/bets" && method == http.MethodPost:
		return domain.AuditActionPlaceBet, "bet"
	case route == "/admin/accounts/:username/topup" && method == http.MethodPost:
		return domain.AuditActionTopup, "account"
	case route == "/admin/settlements" && method == http.MethodPost:
		return domain.AuditActionSettle, "settlement"
	case strings.HasPrefix(route, "/admin/blocks"):
		return domain.AuditActionBlockChange, "block_list"
	case route == "/admin/market" && method == http.MethodPut:
		return domain.AuditActionMarket, "market"
	case route == "/admin/history" && method == http.MethodPost:
		return domain.AuditActionHistory, "history"
	}
	return "", ""
}

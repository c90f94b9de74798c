package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/vtupay/wallet-service/internal/repo"
	"github.com/vtupay/wallet-service/internal/service"
)

func RegisterHandlers(r *gin.Engine, wallets *service.WalletService,
	funding *service.FundingService, purchases *service.PurchaseService) {
	v1 := r.Group("/v1")

	// called by the payment gateway, not by users
	v1.POST("/fund/webhook", webhookHandler(funding))

	authed := v1.Group("", UserIdentityMiddleware())
	{
		authed.POST("/wallets", ensureWalletHandler(wallets))
		authed.GET("/wallet/balance", balanceHandler(wallets))
		authed.GET("/wallet/history", historyHandler(wallets))
		authed.POST("/fund/initialize", initializeFundingHandler(funding))
		authed.POST("/buy/airtime", buyAirtimeHandler(purchases))
	}
}

// ensureWalletHandler is the provisioning hook the identity service calls
// right after creating a user account.
func ensureWalletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := svc.EnsureWallet(c, currentUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"wallet_id":  w.WalletNumber,
			"balance":    w.Balance,
			"bonus":      w.Bonus,
			"updated_at": w.UpdatedAt,
		})
	}
}

func balanceHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := svc.GetWallet(c, currentUserID(c))
		if err != nil {
			if errors.Is(err, repo.ErrWalletNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"wallet_id":  w.WalletNumber,
			"balance":    w.Balance,
			"bonus":      w.Bonus,
			"updated_at": w.UpdatedAt,
		})
	}
}

func historyHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		sinceStr := c.DefaultQuery("since", time.Now().Add(-24*time.Hour).Format(time.RFC3339))
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		txs, err := svc.GetHistory(c, currentUserID(c), limit, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

type fundReq struct {
	Amount string `json:"amount" binding:"required"`
}

func initializeFundingHandler(svc *service.FundingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fundReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		init, err := svc.Initialize(c, currentUserID(c), c.GetHeader("X-User-Email"), amt)
		if err != nil {
			if errors.Is(err, service.ErrBelowMinimum) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"message":   "Funding initialized",
			"reference": init.Reference,
			"amount":    init.Amount,
			"email":     init.Email,
		})
	}
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// webhookHandler always acknowledges with 200 so the gateway stops
// redelivering; the only 500 is an unexpected internal failure, where a
// retry is wanted and safe.
func webhookHandler(svc *service.FundingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"status": service.WebhookIgnored})
			return
		}
		var p webhookPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			c.JSON(http.StatusOK, gin.H{"status": service.WebhookIgnored})
			return
		}
		result, err := svc.HandleWebhook(c, p.Data.Reference, p.Data.Status, raw)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": result})
	}
}

type airtimeReq struct {
	Network     string `json:"network" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

func buyAirtimeHandler(svc *service.PurchaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req airtimeReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		res, err := svc.BuyAirtime(c, currentUserID(c), req.Network, req.PhoneNumber, amt)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidAmount):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, repo.ErrInsufficientFunds):
				c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient funds"})
			case errors.Is(err, repo.ErrWalletNotFound):
				c.JSON(http.StatusBadRequest, gin.H{"error": "user has no wallet"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
			}
			return
		}
		status := http.StatusOK
		if res.Failed() {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"status":         res.Status,
			"message":        res.Message,
			"transaction_id": res.TransactionID,
			"new_balance":    res.NewBalance,
		})
	}
}

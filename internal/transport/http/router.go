package http

import (
	"github.com/gin-gonic/gin"
	"github.com/vtupay/wallet-service/internal/config"
	"github.com/vtupay/wallet-service/internal/service"
	"go.uber.org/zap"
)

func NewRouter(wallets *service.WalletService, funding *service.FundingService,
	purchases *service.PurchaseService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, wallets, funding, purchases)
	return r
}

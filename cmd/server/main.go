package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vtupay/wallet-service/internal/config"
	"github.com/vtupay/wallet-service/internal/logger"
	"github.com/vtupay/wallet-service/internal/model"
	"github.com/vtupay/wallet-service/internal/repo"
	"github.com/vtupay/wallet-service/internal/service"
	httptransport "github.com/vtupay/wallet-service/internal/transport/http"
	"github.com/vtupay/wallet-service/internal/vtu"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.Wallet{}, &model.Transaction{}, &model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 6. repo & services
	repository := repo.NewRepository(gdb, rdb, kw, log)
	gateway := vtu.NewClient(cfg.Vendor.BaseURL, cfg.Vendor.UserID, cfg.Vendor.APIKey,
		time.Duration(cfg.Vendor.TimeoutSeconds)*time.Second, log)
	minFunding, err := decimal.NewFromString(cfg.Funding.MinAmount)
	if err != nil {
		log.Fatalf("bad funding.min_amount: %v", err)
	}
	wallets := service.NewWalletService(repository, log)
	funding := service.NewFundingService(repository, minFunding, log)
	purchases := service.NewPurchaseService(repository, gateway, log)

	// 7. gin router
	router := httptransport.NewRouter(wallets, funding, purchases, cfg.RateLimit, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("wallet-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/betstack/wallet-platform/internal/shared/cache"
	"github.com/betstack/wallet-platform/internal/shared/config"
	"github.com/betstack/wallet-platform/internal/shared/db"
	skafka "github.com/betstack/wallet-platform/internal/shared/kafka"
	"github.com/betstack/wallet-platform/internal/shared/logger"
	"github.com/betstack/wallet-platform/internal/shared/metrics"
	"github.com/betstack/wallet-platform/internal/wallet-service/balance"
	whttp "github.com/betstack/wallet-platform/internal/wallet-service/http"
	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
	"github.com/betstack/wallet-platform/internal/wallet-service/producer"
	"github.com/betstack/wallet-platform/internal/wallet-service/query"
	"github.com/betstack/wallet-platform/internal/wallet-service/withdraw"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("wallet-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wallet-service"))

	// Postgres: contas e razão de transações
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache do resumo do dashboard
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka: publica transações decididas
	txWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWalletTx)
	defer txWriter.Close()

	ledgerStore := ledger.NewPostgres(pg)
	engine := balance.NewEngine(log, balance.NewPostgres(pg))
	publ := producer.NewKafkaPublisher(txWriter)
	flows := withdraw.NewService(log, ledgerStore, engine, publ, cfg.MinWithdrawCents)

	readRepo := &query.ReadRepo{DB: pg}
	queries := query.NewService(log, readRepo, query.NewCache(rdb), cfg.DashboardCacheTTL)

	// Reconciliação pós-queda: reserved_cents re-derivado dos saques
	// PENDING do razão antes de aceitar tráfego
	reconcile(log, flows, readRepo)

	api := whttp.NewServer(log, flows, engine, queries)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}

func reconcile(log *zap.Logger, flows *withdraw.Service, readRepo *query.ReadRepo) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := readRepo.ListAccountIDs(ctx)
	if err != nil {
		log.Fatal("reconcile: list accounts", zap.Error(err))
	}
	for _, id := range ids {
		if err := flows.Reconcile(ctx, id); err != nil {
			log.Error("reconcile account", zap.String("accountId", id), zap.Error(err))
		}
	}
	log.Info("reservations reconciled", zap.Int("accounts", len(ids)))
}

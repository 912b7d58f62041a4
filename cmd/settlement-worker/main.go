package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/betstack/wallet-platform/internal/shared/config"
	"github.com/betstack/wallet-platform/internal/shared/db"
	"github.com/betstack/wallet-platform/internal/shared/kafka"
	"github.com/betstack/wallet-platform/internal/shared/logger"
	"github.com/betstack/wallet-platform/internal/shared/metrics"
	"github.com/betstack/wallet-platform/internal/wallet-service/balance"
	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
	"github.com/betstack/wallet-platform/internal/wallet-service/producer"
	"github.com/betstack/wallet-platform/internal/wallet-service/withdraw"
	ev "github.com/betstack/wallet-platform/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: aplica resultados de aposta em contas e razão
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: consome eventos bet_settled
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "settlement-worker")
	defer reader.Close()

	// DLQ para eventos que falharam após os retries
	var dlqWriter *kafkago.Writer
	if cfg.TopicBetSettledDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettledDLQ)
		defer dlqWriter.Close()
	}

	txWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWalletTx)
	defer txWriter.Close()

	ledgerStore := ledger.NewPostgres(pg)
	engine := balance.NewEngine(log, balance.NewPostgres(pg))
	flows := withdraw.NewService(log, ledgerStore, engine, producer.NewKafkaPublisher(txWriter), cfg.MinWithdrawCents)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("settlement-worker started", zap.String("consume", cfg.TopicBetSettled))

	ctx := context.Background()

	// Loop principal: consome liquidações e aplica na carteira
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var settled ev.BetSettled
		if jerr := json.Unmarshal(msg.Value, &settled); jerr != nil {
			log.Error("unmarshal bet_settled", zap.Error(jerr))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value)
			}
			continue
		}

		if err := processOne(ctx, flows, &settled); err != nil {
			log.Error("settle bet", zap.String("betId", settled.BetID), zap.Error(err))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, settled.BetID, msg.Value)
			}
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processOne aplica uma liquidação com retry limitado; contenção de conta
// (ErrBusy) é transitória e vale a pena reter antes de ir pra DLQ
func processOne(ctx context.Context, flows *withdraw.Service, settled *ev.BetSettled) error {
	const retries = 3

	var err error
	for i := 0; i < retries; i++ {
		if err = flows.SettleBet(ctx, *settled); err == nil {
			return nil
		}
		if !errors.Is(err, balance.ErrBusy) {
			return err
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return err
}

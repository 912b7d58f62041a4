package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/betstack/wallet-platform/pkg/contracts/events"
)

// KafkaPublisher publica transações decididas no tópico wallet_transactions
type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) PublishWalletTransaction(ctx context.Context, e events.WalletTransaction) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}
	b, _ := json.Marshal(e)
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.AccountID), // particiona por conta, preserva ordem por carteira
		Value: b,
	})
}

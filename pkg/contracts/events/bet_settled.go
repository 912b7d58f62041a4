package events

import "time"

// Resultado possível de uma aposta liquidada
const (
	BetResultWon  = "WON"
	BetResultLost = "LOST"
	BetResultVoid = "VOID"
)

// Evento consumido do tópico "bet_settled"; emitido pelo serviço de apostas
// quando o evento esportivo encerra e a aposta é liquidada.
type BetSettled struct {
	BetID       string    `json:"bet_id"`
	AccountID   string    `json:"account_id"`
	StakeCents  int64     `json:"stake_cents"`
	PayoutCents int64     `json:"payout_cents"` // 0 quando LOST
	Result      string    `json:"result"`       // "WON" | "LOST" | "VOID"
	SettledAt   time.Time `json:"settled_at"`
}

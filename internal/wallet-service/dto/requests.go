package dto

// Amount sempre em unidades menores da moeda (centavos/poisha), nunca float

type CreateWithdrawalRequest struct {
	AccountID   string `json:"accountId"`
	Method      string `json:"method"`      // "bkash" | "nagad" | "rocket" | "upay"
	Destination string `json:"destination"` // número de mobile banking do jogador
	Amount      int64  `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência
}

type CreateDepositRequest struct {
	AccountID   string `json:"accountId"`
	Method      string `json:"method"`
	Destination string `json:"destination"` // número que enviou o dinheiro
	Amount      int64  `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// DecisionRequest é o corpo de PUT .../approve e .../reject
type DecisionRequest struct {
	AdminID string `json:"adminId"`
}

type BonusRequest struct {
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
	AdminID   string `json:"adminId"`
}

// AdjustmentRequest tem Amount assinado: negativo remove saldo
type AdjustmentRequest struct {
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
	AdminID   string `json:"adminId"`
}

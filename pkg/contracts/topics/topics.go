package topics

const (
	// Liquidações de apostas consumidas pelo settlement-worker
	BetSettled    = "bet_settled"
	BetSettledDLQ = "bet_settled_dlq"

	// Transações de carteira decididas (auditoria/downstream)
	WalletTransactions = "wallet_transactions"
)

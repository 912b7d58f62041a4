package withdraw

import (
	"fmt"
	"regexp"
)

// Canais de mobile banking aceitos pela plataforma
var methods = map[string]bool{
	"bkash":  true,
	"nagad":  true,
	"rocket": true,
	"upay":   true,
}

// Número de celular bangladeshiano: 01 + operadora 3-9 + 8 dígitos
var phoneRe = regexp.MustCompile(`^01[3-9][0-9]{8}$`)

// ValidationError descreve entrada inválida. Nunca toca saldo.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// validateWithdrawal checa as regras de criação de saque.
// minCents vem da configuração (default ৳100)
func validateWithdrawal(accountID, method, destination string, amountCents, minCents int64) error {
	if accountID == "" {
		return validationErr("accountId", "required")
	}
	if err := validateChannel(method, destination); err != nil {
		return err
	}
	if amountCents < minCents {
		return validationErr("amount", fmt.Sprintf("minimum withdrawal is %d cents", minCents))
	}
	if amountCents%100 != 0 {
		return validationErr("amount", "must be a whole unit of currency")
	}
	return nil
}

// validateDeposit checa as regras de criação de depósito
func validateDeposit(accountID, method, destination string, amountCents int64) error {
	if accountID == "" {
		return validationErr("accountId", "required")
	}
	if err := validateChannel(method, destination); err != nil {
		return err
	}
	if amountCents <= 0 {
		return validationErr("amount", "must be positive")
	}
	if amountCents%100 != 0 {
		return validationErr("amount", "must be a whole unit of currency")
	}
	return nil
}

func validateChannel(method, destination string) error {
	if !methods[method] {
		return validationErr("method", "unknown mobile banking channel")
	}
	if !phoneRe.MatchString(destination) {
		return validationErr("destination", "must be a valid mobile banking number")
	}
	return nil
}

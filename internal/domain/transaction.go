package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single payment between two accounts. Flows aggregate many
// of these per source/target pair.
type Transaction struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	FromBank          string          `json:"from_bank"`
	FromAccount       string          `json:"from_account"`
	ToBank            string          `json:"to_bank"`
	ToAccount         string          `json:"to_account"`
	AmountReceived    decimal.Decimal `json:"amount_received"`
	ReceivingCurrency string          `json:"receiving_currency"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	PaymentCurrency   string          `json:"payment_currency"`
	PaymentFormat     string          `json:"payment_format,omitempty"`
	Risk              float64         `json:"risk_score"`
}

// Valid reports whether the transaction can enter the store: both accounts
// named and a positive amount.
func (t *Transaction) Valid() bool {
	return t.FromAccount != "" && t.ToAccount != "" && t.AmountReceived.IsPositive()
}

// Account holds reference data for one account id, joined onto nodes when
// building the network payload.
type Account struct {
	ID      string  `json:"account_id"`
	Name    string  `json:"name,omitempty"`
	Type    string  `json:"type,omitempty"`
	BankID  string  `json:"bank_id,omitempty"`
	Country string  `json:"country,omitempty"`
	Risk    float64 `json:"risk_score"`
}

package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"flowscope/internal/domain"
)

func TestForFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"csv", "csv"},
		{"text/csv", "csv"},
		{"JSON", "json"},
		{"application/json", "json"},
	}
	for _, tc := range cases {
		imp := ForFormat(tc.in)
		if imp == nil || imp.Format() != tc.want {
			t.Errorf("ForFormat(%q) = %v, want %s importer", tc.in, imp, tc.want)
		}
	}
	if ForFormat("xml") != nil {
		t.Error("ForFormat(xml) != nil, want nil")
	}
}

func TestCSVImporter(t *testing.T) {
	t.Run("parses the standard export header", func(t *testing.T) {
		input := `Timestamp,From Bank,Account,To Bank,Account.1,Amount Received,Receiving Currency,Amount Paid,Payment Currency,Payment Format,Is Laundering
2025-09-01 10:35:19,US,8000ECA90,DE,8000F4580,3697.34,US Dollar,3697.34,US Dollar,Cheque,0
2025-09-01 11:02:45,GB,8000F4580,CH,8000ECA90,"12,500.00",US Dollar,"12,500.00",US Dollar,Wire,1
`
		txs, err := NewCSVImporter().Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("parsed %d transactions, want 2", len(txs))
		}

		first := txs[0]
		if first.FromAccount != "8000ECA90" || first.ToAccount != "8000F4580" {
			t.Errorf("endpoints = %s -> %s", first.FromAccount, first.ToAccount)
		}
		if !first.AmountReceived.Equal(decimal.RequireFromString("3697.34")) {
			t.Errorf("amount = %s, want 3697.34", first.AmountReceived)
		}
		if first.Timestamp.IsZero() {
			t.Error("timestamp not parsed")
		}
		if first.Risk != 0 {
			t.Errorf("risk for clean row = %v, want 0", first.Risk)
		}

		// Thousands separators in quoted amounts, laundering flag to risk.
		second := txs[1]
		if !second.AmountReceived.Equal(decimal.RequireFromString("12500.00")) {
			t.Errorf("amount = %s, want 12500.00", second.AmountReceived)
		}
		if second.Risk != 0.9 {
			t.Errorf("risk for flagged row = %v, want 0.9", second.Risk)
		}
	})

	t.Run("alias headers", func(t *testing.T) {
		input := `Date,Sender Account,Receiver Account,Amount,Currency,Risk Score
2025-09-01,acct-1,acct-2,500.00,EUR,0.42
`
		txs, err := NewCSVImporter().Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("parsed %d transactions, want 1", len(txs))
		}
		if txs[0].Risk != 0.42 {
			t.Errorf("risk = %v, want 0.42", txs[0].Risk)
		}
		// Single amount column covers both sides.
		if !txs[0].AmountPaid.Equal(txs[0].AmountReceived) {
			t.Error("amount paid not defaulted to amount received")
		}
	})

	t.Run("missing required columns fail the file", func(t *testing.T) {
		input := "Foo,Bar\n1,2\n"
		_, err := NewCSVImporter().Parse(strings.NewReader(input))
		if !errors.Is(err, domain.ErrMalformedDataset) {
			t.Errorf("Parse() error = %v, want ErrMalformedDataset", err)
		}
	})

	t.Run("bad rows are skipped not fatal", func(t *testing.T) {
		input := `Timestamp,Sender Account,Receiver Account,Amount
2025-09-01,acct-1,acct-2,100.00
2025-09-01,acct-1,acct-2,not-a-number
2025-09-01,,acct-2,50.00
`
		txs, err := NewCSVImporter().Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("parsed %d transactions, want 1", len(txs))
		}
	})
}

func TestJSONImporter(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		input := `[{"from_account":"acct-1","to_account":"acct-2","amount_received":"250.75","risk_score":0.3}]`
		txs, err := NewJSONImporter().Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("parsed %d transactions, want 1", len(txs))
		}
		if !txs[0].AmountReceived.Equal(decimal.RequireFromString("250.75")) {
			t.Errorf("amount = %s, want 250.75", txs[0].AmountReceived)
		}
	})

	t.Run("wrapper object", func(t *testing.T) {
		input := `{"transactions":[{"from_account":"acct-1","to_account":"acct-2","amount_received":"99"}]}`
		txs, err := NewJSONImporter().Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("parsed %d transactions, want 1", len(txs))
		}
	})

	t.Run("invalid entries dropped", func(t *testing.T) {
		input := `[{"from_account":"acct-1","to_account":"acct-2","amount_received":"10"},{"from_account":"","to_account":"x","amount_received":"5"}]`
		txs, err := NewJSONImporter().Parse(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("parsed %d transactions, want 1", len(txs))
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := NewJSONImporter().Parse(strings.NewReader("{nope"))
		if !errors.Is(err, domain.ErrMalformedDataset) {
			t.Errorf("Parse() error = %v, want ErrMalformedDataset", err)
		}
	})
}

package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"flowscope/internal/domain"
)

// JSONImporter handles transaction JSON uploads
type JSONImporter struct{}

// NewJSONImporter creates a new JSON importer
func NewJSONImporter() *JSONImporter {
	return &JSONImporter{}
}

// Format returns the codec format identifier
func (c *JSONImporter) Format() string {
	return "json"
}

// Parse imports transactions from JSON: either a bare array or a
// {"transactions": [...]} wrapper. Invalid entries are skipped.
func (c *JSONImporter) Parse(r io.Reader) ([]*domain.Transaction, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON body: %w", err)
	}

	var txs []*domain.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		var wrapper struct {
			Transactions []*domain.Transaction `json:"transactions"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDataset, err)
		}
		txs = wrapper.Transactions
	}

	valid := txs[:0]
	for _, t := range txs {
		if t != nil && t.Valid() {
			valid = append(valid, t)
		}
	}
	return valid, nil
}

package repository

import (
	"context"

	"flowscope/internal/domain"
)

// Repository defines the interface for transaction and account data access
type Repository interface {
	// Read operations
	Transaction(ctx context.Context, id string) (*domain.Transaction, error)
	Account(ctx context.Context, id string) (*domain.Account, error)
	TransactionCount(ctx context.Context) (int, error)

	// Write operations
	UpsertAccount(ctx context.Context, acct *domain.Account) error

	// Bulk operations
	ImportTransactions(ctx context.Context, txs []*domain.Transaction) (int, error)

	// Network aggregation
	QueryNetwork(ctx context.Context, f domain.Filters) (*domain.Dataset, error)

	// Close releases resources
	Close() error
}

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"flowscope/internal/codec"
	"flowscope/internal/domain"
	"flowscope/internal/repository"
)

// Pattern scan thresholds. Fan-out and velocity bounds follow the
// dashboard's heuristics; they flag for an analyst, they do not block.
const (
	fanOutThreshold      = 5
	highRiskShareAlert   = 0.5
	minNodesForRiskAlert = 4
)

// NetworkService turns stored transactions into the network payload and
// runs the informational pattern scan over it.
type NetworkService struct {
	repo repository.Repository
	bus  *EventBus
	log  *slog.Logger
}

// NewNetworkService creates a network service backed by the repository
func NewNetworkService(repo repository.Repository, bus *EventBus, logger *slog.Logger) *NetworkService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkService{repo: repo, bus: bus, log: logger}
}

// NetworkData aggregates the store into a dataset and attaches the pattern
// scan results.
func (s *NetworkService) NetworkData(ctx context.Context, f domain.Filters) (*domain.Dataset, error) {
	ds, err := s.repo.QueryNetwork(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("network query failed: %w", err)
	}
	ds.Patterns = ScanPatterns(ds)
	s.log.Debug("network data assembled",
		"nodes", ds.Stats.Nodes, "edges", ds.Stats.Edges,
		"patterns", len(ds.Patterns))
	return ds, nil
}

// PatternAnalysis runs the scan standalone for the patterns endpoint.
func (s *NetworkService) PatternAnalysis(ctx context.Context, f domain.Filters) ([]domain.Pattern, error) {
	ds, err := s.repo.QueryNetwork(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("network query failed: %w", err)
	}
	return ScanPatterns(ds), nil
}

// Import parses an upload through the named codec and stores the result,
// publishing transactions_imported on success.
func (s *NetworkService) Import(ctx context.Context, format string, r io.Reader) (int, error) {
	imp := codec.ForFormat(format)
	if imp == nil {
		return 0, fmt.Errorf("unsupported import format %q", format)
	}

	txs, err := imp.Parse(r)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.ImportTransactions(ctx, txs)
	if err != nil {
		return 0, fmt.Errorf("import failed: %w", err)
	}

	s.log.Info("transactions imported", "format", imp.Format(), "count", n)
	if s.bus != nil {
		s.bus.Publish(Event{Type: EventTransactionsImported, Payload: map[string]any{
			"format": imp.Format(),
			"count":  n,
		}})
	}
	return n, nil
}

// ScanPatterns runs the informational heuristics over a snapshot: rapid
// fan-out from one account, circular pair flows, and high-risk
// concentration across the visible network.
func ScanPatterns(ds *domain.Dataset) []domain.Pattern {
	var patterns []domain.Pattern
	patterns = append(patterns, scanFanOut(ds)...)
	patterns = append(patterns, scanCircular(ds)...)
	patterns = append(patterns, scanRiskConcentration(ds)...)
	return patterns
}

// scanFanOut flags accounts sending to many distinct counterparties, the
// classic structuring shape.
func scanFanOut(ds *domain.Dataset) []domain.Pattern {
	targets := make(map[string]map[string]bool)
	for _, fl := range ds.Flows {
		if fl.SelfLoop() {
			continue
		}
		if targets[fl.Source] == nil {
			targets[fl.Source] = make(map[string]bool)
		}
		targets[fl.Source][fl.Target] = true
	}

	accounts := make([]string, 0, len(targets))
	for id := range targets {
		accounts = append(accounts, id)
	}
	sort.Strings(accounts)

	var patterns []domain.Pattern
	for _, id := range accounts {
		n := len(targets[id])
		if n < fanOutThreshold {
			continue
		}
		patterns = append(patterns, domain.Pattern{
			Type:        "fan_out",
			Severity:    domain.TierMedium,
			Description: fmt.Sprintf("account %s sends to %d distinct counterparties", id, n),
			Accounts:    []string{id},
		})
	}
	return patterns
}

// scanCircular flags A->B->A pairs, the smallest laundering cycle.
func scanCircular(ds *domain.Dataset) []domain.Pattern {
	forward := make(map[string]bool, len(ds.Flows))
	for _, fl := range ds.Flows {
		forward[fl.Key()] = true
	}

	seen := make(map[string]bool)
	var patterns []domain.Pattern
	for _, fl := range ds.Flows {
		if fl.SelfLoop() {
			continue
		}
		back := fl.Target + "|" + fl.Source
		if !forward[back] {
			continue
		}
		// One pattern per pair, not one per direction.
		a, b := fl.Source, fl.Target
		if b < a {
			a, b = b, a
		}
		pair := a + "|" + b
		if seen[pair] {
			continue
		}
		seen[pair] = true
		patterns = append(patterns, domain.Pattern{
			Type:        "circular_flow",
			Severity:    domain.TierHigh,
			Description: fmt.Sprintf("funds cycle between %s and %s", a, b),
			Accounts:    []string{a, b},
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Description < patterns[j].Description
	})
	return patterns
}

// scanRiskConcentration flags a network where high-risk flows dominate.
func scanRiskConcentration(ds *domain.Dataset) []domain.Pattern {
	if len(ds.Nodes) < minNodesForRiskAlert || len(ds.Flows) == 0 {
		return nil
	}
	high := 0
	for _, fl := range ds.Flows {
		if fl.Tier() == domain.TierHigh {
			high++
		}
	}
	share := float64(high) / float64(len(ds.Flows))
	if share < highRiskShareAlert {
		return nil
	}
	return []domain.Pattern{{
		Type:     "high_risk_concentration",
		Severity: domain.TierHigh,
		Description: fmt.Sprintf("%d of %d visible flows are high risk (%.0f%%)",
			high, len(ds.Flows), share*100),
	}}
}

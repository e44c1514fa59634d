package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/VictoriaMetrics/metrics"
	"github.com/solatis/smsfilter/internal/rules"
	"github.com/solatis/smsfilter/internal/types"
)

// Metric names exported by the manager.
const (
	importMetric = `smsfilter_backup_imports_total{result="%s"}`
	exportMetric = `smsfilter_backup_exports_total`
)

// RuleStore is the storage the manager reads from and writes to.
// Implemented by *store.RuleStore.
type RuleStore interface {
	LoadAllRules(ctx context.Context) ([]*rules.FilterRule, error)
	ReplaceRules(ctx context.Context, set []*rules.FilterRule) ([]*rules.FilterRule, error)
}

// Manager connects the codec to rule storage.
type Manager struct {
	store   RuleStore
	logger  *slog.Logger
	metrics *metrics.Set
}

// NewManager creates a backup manager. Nil logger or metrics fall back to defaults.
func NewManager(store RuleStore, logger *slog.Logger, set *metrics.Set) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if set == nil {
		set = metrics.NewSet()
	}
	return &Manager{
		store:   store,
		logger:  logger.With("component", "backup"),
		metrics: set,
	}
}

// ExportTo writes the current rule set to w and returns the rule count.
func (m *Manager) ExportTo(ctx context.Context, w io.Writer, format Format) (int, error) {
	set, err := m.store.LoadAllRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load rules: %w", err)
	}
	data, err := Marshal(set, format)
	if err != nil {
		return 0, fmt.Errorf("failed to encode backup: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}

	m.metrics.GetOrCreateCounter(exportMetric).Inc()
	m.logger.Info("rules exported", "count", len(set), "format", format)
	return len(set), nil
}

// ImportFrom reads a document from r and, only if every record is valid,
// replaces the stored rule set with it. On failure the store is untouched.
func (m *Manager) ImportFrom(ctx context.Context, r io.Reader, format Format) ([]*rules.FilterRule, error) {
	data, err := io.ReadAll(io.LimitReader(r, types.MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	return m.ImportBytes(ctx, data, format)
}

// ImportBytes is ImportFrom for an in-memory document.
func (m *Manager) ImportBytes(ctx context.Context, data []byte, format Format) ([]*rules.FilterRule, error) {
	set, err := Unmarshal(data, format)
	if err != nil {
		m.metrics.GetOrCreateCounter(fmt.Sprintf(importMetric, "rejected")).Inc()
		m.logger.Warn("backup rejected", "error", err)
		return nil, err
	}

	persisted, err := m.store.ReplaceRules(ctx, set)
	if err != nil {
		m.metrics.GetOrCreateCounter(fmt.Sprintf(importMetric, "error")).Inc()
		return nil, fmt.Errorf("failed to store imported rules: %w", err)
	}

	m.metrics.GetOrCreateCounter(fmt.Sprintf(importMetric, "ok")).Inc()
	m.logger.Info("rules imported", "count", len(persisted), "format", format)
	return persisted, nil
}

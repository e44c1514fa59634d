package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/solatis/smsfilter/internal/types"
)

// Metric names exported by the engine.
const (
	DecisionMetric       = `smsfilter_decisions_total{decision="%s"}`
	EvaluateErrorMetric  = `smsfilter_evaluate_errors_total`
	EvaluateDurationName = `smsfilter_evaluate_duration_seconds`
)

// RuleSource supplies the current ordered rule set.
// Implemented by *store.RuleStore; tests use in-memory fakes.
type RuleSource interface {
	LoadAllRules(ctx context.Context) ([]*FilterRule, error)
}

// Engine evaluates inbound messages against the rules of a RuleSource.
// A fresh snapshot is loaded for each message, so rule changes take effect
// immediately and no decision is ever cached.
type Engine struct {
	source  RuleSource
	logger  *slog.Logger
	metrics *metrics.Set
}

// NewEngine creates an engine. A nil logger or metrics set falls back to
// slog.Default and a private set.
func NewEngine(source RuleSource, logger *slog.Logger, set *metrics.Set) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if set == nil {
		set = metrics.NewSet()
	}
	return &Engine{
		source:  source,
		logger:  logger.With("component", "engine"),
		metrics: set,
	}
}

// Evaluate loads the current rules and decides msg.
func (e *Engine) Evaluate(ctx context.Context, msg types.CandidateMessage) (MatchResult, error) {
	rules, err := e.source.LoadAllRules(ctx)
	if err != nil {
		e.metrics.GetOrCreateCounter(EvaluateErrorMetric).Inc()
		return MatchResult{}, fmt.Errorf("failed to load rules: %w", err)
	}

	start := time.Now()
	result := Evaluate(rules, msg)
	e.metrics.GetOrCreateHistogram(EvaluateDurationName).UpdateDuration(start)
	e.metrics.GetOrCreateCounter(fmt.Sprintf(DecisionMetric, result.Decision)).Inc()

	if result.Decision == types.DecisionBlock {
		e.logger.Info("message blocked",
			"rule_id", result.Rule.ID(),
			"rule_index", result.Index,
			"sender", msg.Sender,
			"matched_rules", result.MatchCount)
	} else {
		e.logger.Debug("message passed",
			"sender", msg.Sender,
			"matched_rules", result.MatchCount,
			"rules", len(rules))
	}

	return result, nil
}

package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/status"
)

// Lookuper executes existence queries for DB_LOOKUP rules.
type Lookuper interface {
	Exists(ctx context.Context, q registry.ExistsQuery, value any) (bool, error)
}

// Evaluator applies parsed rules to parameter values. It holds no
// per-request state and is safe for concurrent use.
type Evaluator struct {
	lookup Lookuper
	logger *slog.Logger
}

func NewEvaluator(lookup Lookuper, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{lookup: lookup, logger: logger}
}

// Evaluate reports whether value satisfies rule. A returned error means the
// rule could not be applied: a value of the wrong type, a missing lookup
// backend or a store failure.
func (e *Evaluator) Evaluate(ctx context.Context, rule *Rule, value any) (bool, error) {
	switch c := rule.Check.(type) {
	case Comparison:
		v, ok := Number(value)
		if !ok {
			return false, configError(rule.ID, fmt.Errorf("comparison needs a numeric value, got %T", value))
		}
		return compare(c.Operator, v, c.Threshold), nil
	case Pattern:
		s, ok := value.(string)
		if !ok {
			return false, configError(rule.ID, fmt.Errorf("regex needs a string value, got %T", value))
		}
		return c.re.MatchString(s), nil
	case Lookup:
		if e.lookup == nil {
			return false, configError(rule.ID, fmt.Errorf("no lookup backend configured"))
		}
		found, err := e.lookup.Exists(ctx, c.Query, value)
		if err != nil {
			return false, status.Wrap(status.KindInternal, status.CodeInternal, "db lookup for rule "+rule.ID, err)
		}
		return found, nil
	case CrossField:
		e.logger.DebugContext(ctx, "cross field rule passes unconditionally", "rule", rule.ID)
		return true, nil
	default:
		return false, configError(rule.ID, fmt.Errorf("rule has no check"))
	}
}

func compare(op string, v, th float64) bool {
	switch op {
	case ">":
		return v > th
	case "<":
		return v < th
	case ">=":
		return v >= th
	case "<=":
		return v <= th
	default: // "=", "=="
		return v == th
	}
}

// Number normalizes JSON and Go numeric values to float64.
func Number(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

package rules_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/rules"
	"github.com/waploaj/DyAPI/internal/status"
)

type failingLookup struct{}

func (failingLookup) Exists(context.Context, registry.ExistsQuery, any) (bool, error) {
	return false, errors.New("connection refused")
}

func mustParse(t *testing.T, raw string) *rules.Rule {
	t.Helper()
	r, err := rules.Parse(registry.BusinessRule{ID: "t", Description: "test rule", RawExpression: raw})
	require.NoError(t, err)
	return r
}

func TestEvaluateComparison(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ev := rules.NewEvaluator(nil, nil)
	tenth, fifth := 0.1, 0.2

	tests := []struct {
		raw   string
		value any
		want  bool
	}{
		{"comparison|>|100", 150.0, true},
		{"comparison|>|100", 100, false},
		{"comparison|>=|100", int64(100), true},
		{"comparison|<|10", json.Number("9.99"), true},
		{"comparison|<=|10", uint8(11), false},
		{"comparison|=|0.3", tenth + fifth, false},
		{"comparison|==|42", 42.0, true},
		{"comparison|=|0", math.NaN(), false},
	}
	for _, tt := range tests {
		got, err := ev.Evaluate(ctx, mustParse(t, tt.raw), tt.value)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, "%s with %v", tt.raw, tt.value)
	}

	_, err := ev.Evaluate(ctx, mustParse(t, "comparison|>|1"), "5")
	assert.ErrorIs(t, err, status.ErrRuleConfig)
}

func TestEvaluateRegexFullMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ev := rules.NewEvaluator(nil, nil)
	r := mustParse(t, "regex|[0-9]{4}")

	ok, err := ev.Evaluate(ctx, r, "1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Evaluate(ctx, r, "12345")
	require.NoError(t, err)
	assert.False(t, ok)

	alt := mustParse(t, "regex|a|b")
	ok, err = ev.Evaluate(ctx, alt, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ev.Evaluate(ctx, r, 1234)
	assert.ErrorIs(t, err, status.ErrRuleConfig)
}

func TestEvaluateLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := registry.NewMemoryRepository()
	repo.AddLookupRow("accounts", map[string]any{"account_no": "ACC-1"})
	r := mustParse(t, "db_lookup|accounts|account_no|account_no|exists")

	ev := rules.NewEvaluator(repo, nil)
	ok, err := ev.Evaluate(ctx, r, "ACC-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Evaluate(ctx, r, "ACC-9")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = rules.NewEvaluator(failingLookup{}, nil).Evaluate(ctx, r, "ACC-1")
	require.Error(t, err)
	assert.True(t, status.As(err).Kind.Internal())

	_, err = rules.NewEvaluator(nil, nil).Evaluate(ctx, r, "ACC-1")
	assert.ErrorIs(t, err, status.ErrRuleConfig)
}

func TestEvaluateCrossFieldPasses(t *testing.T) {
	t.Parallel()
	ok, err := rules.NewEvaluator(nil, nil).Evaluate(context.Background(), mustParse(t, "cross_field|a<b"), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNumber(t *testing.T) {
	t.Parallel()
	f, ok := rules.Number(json.Number("1e3"))
	assert.True(t, ok)
	assert.InDelta(t, 1000.0, f, 0)

	_, ok = rules.Number(json.Number("x"))
	assert.False(t, ok)
	_, ok = rules.Number(true)
	assert.False(t, ok)
}

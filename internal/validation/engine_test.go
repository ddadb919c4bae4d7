package validation_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/rules"
	"github.com/waploaj/DyAPI/internal/status"
	"github.com/waploaj/DyAPI/internal/validation"
)

var transfer = &registry.Descriptor{APICode: "2001", HandlerType: "payments", HandlerMethod: "transfer", AcceptsBody: true}

func seed() *registry.MemoryRepository {
	repo := registry.NewMemoryRepository()
	repo.AddIdentity(registry.IdentityUsage{Identity: "u1", Status: "active"})
	repo.AddParameter(registry.ParameterSpec{APICode: "2001", Name: "user_id", Mandatory: true, Priority: 1})
	repo.AddParameter(registry.ParameterSpec{APICode: "2001", Name: "amount", Mandatory: true, Priority: 2})
	repo.AddParameter(registry.ParameterSpec{APICode: "2001", Name: "note", Priority: 3})
	repo.AddBusinessRule(registry.BusinessRule{ID: "min_amount", Description: "amount must exceed 100", RawExpression: "comparison|>|100"})
	repo.AddBinding(registry.RuleBinding{APICode: "2001", ParamName: "amount", BusinessRuleID: "min_amount"})
	return repo
}

func newEngine(repo *registry.MemoryRepository, opts ...validation.Option) *validation.Engine {
	return validation.NewEngine(repo, rules.NewEvaluator(repo, nil), status.NewCatalog(repo), opts...)
}

func requestCount(t *testing.T, repo *registry.MemoryRepository, id string) int64 {
	t.Helper()
	u, err := repo.GetIdentity(context.Background(), id)
	require.NoError(t, err)
	return u.RequestCount
}

func TestValidatePasses(t *testing.T) {
	t.Parallel()
	repo := seed()
	sc := newEngine(repo).Validate(context.Background(), transfer, map[string]any{"user_id": "u1", "amount": 150.0})
	assert.False(t, sc.Failed(), sc.Message())
	assert.EqualValues(t, 1, requestCount(t, repo, "u1"))
}

func TestValidateIdentityGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		sc := newEngine(seed()).Validate(ctx, transfer, map[string]any{"amount": 150.0})
		assert.ErrorIs(t, sc.Err(), status.ErrIdentityMissing)
	})

	t.Run("blank", func(t *testing.T) {
		t.Parallel()
		sc := newEngine(seed()).Validate(ctx, transfer, map[string]any{"user_id": "  ", "amount": 150.0})
		assert.ErrorIs(t, sc.Err(), status.ErrIdentityMissing)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		sc := newEngine(seed()).Validate(ctx, transfer, map[string]any{"user_id": "ghost", "amount": 150.0})
		assert.ErrorIs(t, sc.Err(), status.ErrIdentityUnknown)
	})

	t.Run("blocked by status", func(t *testing.T) {
		t.Parallel()
		repo := seed()
		repo.AddIdentity(registry.IdentityUsage{Identity: "u2", Status: "BLOCKED"})
		sc := newEngine(repo).Validate(ctx, transfer, map[string]any{"user_id": "u2", "amount": 150.0})
		assert.ErrorIs(t, sc.Err(), status.ErrIdentityBlocked)
		assert.EqualValues(t, 0, requestCount(t, repo, "u2"))
	})

	t.Run("blocked by date", func(t *testing.T) {
		t.Parallel()
		repo := seed()
		at := time.Now()
		repo.AddIdentity(registry.IdentityUsage{Identity: "u3", Status: "active", BlockDate: &at})
		sc := newEngine(repo).Validate(ctx, transfer, map[string]any{"user_id": "u3", "amount": 150.0})
		assert.ErrorIs(t, sc.Err(), status.ErrIdentityBlocked)
	})

	t.Run("gate runs before rules", func(t *testing.T) {
		t.Parallel()
		repo := seed()
		sc := newEngine(repo).Validate(ctx, transfer, map[string]any{"user_id": "ghost", "amount": 1.0})
		assert.ErrorIs(t, sc.Err(), status.ErrIdentityUnknown)
	})

	t.Run("custom identity parameter", func(t *testing.T) {
		t.Parallel()
		repo := seed()
		e := newEngine(repo, validation.WithIdentityParam("msisdn"))
		assert.Equal(t, "msisdn", e.IdentityParam())
		sc := e.Validate(ctx, &registry.Descriptor{APICode: "9"}, map[string]any{"msisdn": "u1"})
		assert.False(t, sc.Failed(), sc.Message())
	})
}

func TestValidateMandatory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sc := newEngine(seed()).Validate(ctx, transfer, map[string]any{"user_id": "u1"})
	require.True(t, sc.Failed())
	assert.ErrorIs(t, sc.Err(), status.ErrParameterMissing)
	assert.Equal(t, "Mandatory parameter is missing -> amount", sc.Message())

	query := *transfer
	query.AcceptsBody = false
	sc = newEngine(seed()).Validate(ctx, &query, map[string]any{"user_id": "u1"})
	assert.False(t, sc.Failed(), sc.Message())
}

func TestValidateBindings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	plain := &registry.Descriptor{APICode: "3001"}

	tests := []struct {
		name    string
		binding registry.RuleBinding
		value   any
		want    error
	}{
		{"business rule fails", registry.RuleBinding{BusinessRuleID: "min_amount"}, 50.0, status.ErrValidationFailed},
		{"business rule passes", registry.RuleBinding{BusinessRuleID: "min_amount"}, 500.0, nil},
		{"business rule missing", registry.RuleBinding{BusinessRuleID: "nope"}, 500.0, status.ErrRuleNotFound},
		{"no class", registry.RuleBinding{}, "x", status.ErrNoValidationType},
		{"two classes", registry.RuleBinding{DataTypeRule: "numeric", CommonRule: "not_blank"}, "1", status.ErrRuleConfig},
		{"data type tag fails", registry.RuleBinding{DataTypeRule: "email"}, "not-an-email", status.ErrValidationFailed},
		{"data type tag passes", registry.RuleBinding{DataTypeRule: "max=5"}, "abc", nil},
		{"data type bad tag", registry.RuleBinding{DataTypeRule: "no_such_tag"}, "abc", status.ErrRuleConfig},
		{"common not blank", registry.RuleBinding{CommonRule: "not_blank"}, " ", status.ErrValidationFailed},
		{"common sql meta", registry.RuleBinding{CommonRule: "no_sql_meta"}, "x' OR 1=1 --", status.ErrValidationFailed},
		{"common unknown", registry.RuleBinding{CommonRule: "shiny"}, "x", status.ErrRuleConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := seed()
			b := tt.binding
			b.APICode, b.ParamName = "3001", "field"
			repo.AddBinding(b)

			sc := newEngine(repo).Validate(ctx, plain, map[string]any{"user_id": "u1", "field": tt.value})
			if tt.want == nil {
				assert.False(t, sc.Failed(), sc.Message())
				return
			}
			assert.ErrorIs(t, sc.Err(), tt.want)
		})
	}

	t.Run("failure message names parameter and rule", func(t *testing.T) {
		t.Parallel()
		sc := newEngine(seed()).Validate(ctx, transfer, map[string]any{"user_id": "u1", "amount": 10.0})
		assert.Equal(t, "Validation failed for parameter -> amount - amount must exceed 100", sc.Message())
	})
}

type countingClass struct{ calls []string }

func (c *countingClass) Validate(_ context.Context, param, ref string, _ any) error {
	c.calls = append(c.calls, param)
	if ref == "fail" {
		return status.NewError(status.KindValidationFailed, status.CodeValidationFailed, param)
	}
	return nil
}

func TestValidateShortCircuits(t *testing.T) {
	t.Parallel()
	repo := seed()
	repo.AddBinding(registry.RuleBinding{APICode: "4001", ParamName: "a", CommonRule: "ok"})
	repo.AddBinding(registry.RuleBinding{APICode: "4001", ParamName: "b", CommonRule: "fail", Priority: 1})
	repo.AddBinding(registry.RuleBinding{APICode: "4001", ParamName: "b", CommonRule: "ok", Priority: 2})
	repo.AddBinding(registry.RuleBinding{APICode: "4001", ParamName: "c", CommonRule: "ok"})
	probe := &countingClass{}

	sc := newEngine(repo, validation.WithClass(validation.ClassCommon, probe)).
		Validate(context.Background(), &registry.Descriptor{APICode: "4001"}, map[string]any{"user_id": "u1", "a": 1, "b": 2, "c": 3})

	assert.ErrorIs(t, sc.Err(), status.ErrValidationFailed)
	assert.Equal(t, []string{"a", "b"}, probe.calls)
}

func TestValidateNumericIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := seed()
	repo.AddIdentity(registry.IdentityUsage{Identity: "12345678", Status: "active"})
	repo.AddIdentity(registry.IdentityUsage{Identity: "98765432109876543210", Status: "active"})

	tests := []struct {
		name string
		id   any
		want string
	}{
		{"float", 12345678.0, "12345678"},
		{"int", 12345678, "12345678"},
		{"json number", json.Number("12345678"), "12345678"},
		{"beyond float precision", json.Number("98765432109876543210"), "98765432109876543210"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := requestCount(t, repo, tc.want)
			sc := newEngine(repo).Validate(ctx, transfer, map[string]any{"user_id": tc.id, "amount": 150.0})
			require.False(t, sc.Failed(), sc.Message())
			assert.Equal(t, before+1, requestCount(t, repo, tc.want))
		})
	}
}

func TestValidateReusesParsedRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := seed()
	cache := rules.NewCache()
	e := newEngine(repo, validation.WithRuleCache(cache))

	for range 3 {
		sc := e.Validate(ctx, transfer, map[string]any{"user_id": "u1", "amount": 150.0})
		require.False(t, sc.Failed(), sc.Message())
	}
	assert.Equal(t, 1, cache.Len())

	repo.AddBusinessRule(registry.BusinessRule{ID: "min_amount", Description: "amount must exceed 200", RawExpression: "comparison|>|200"})
	sc := e.Validate(ctx, transfer, map[string]any{"user_id": "u1", "amount": 150.0})
	assert.ErrorIs(t, sc.Err(), status.ErrValidationFailed)
}

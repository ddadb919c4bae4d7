package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waploaj/DyAPI/internal/registry"
)

func TestMemoryRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := registry.NewMemoryRepository()
	repo.AddRoute("balance/inquiry", "1001")
	repo.AddParameter(registry.ParameterSpec{APICode: "1001", Name: "b", Priority: 2})
	repo.AddParameter(registry.ParameterSpec{APICode: "1001", Name: "a", Priority: 2})
	repo.AddParameter(registry.ParameterSpec{APICode: "1001", Name: "z", Priority: 1})
	repo.AddBinding(registry.RuleBinding{APICode: "1001", ParamName: "a", CommonRule: "not_blank", Priority: 5})
	repo.AddBinding(registry.RuleBinding{APICode: "1001", ParamName: "a", DataTypeRule: "numeric", Priority: 1})
	repo.AddIdentity(registry.IdentityUsage{Identity: "u1", Status: "active"})
	repo.AddLookupRow("accounts", map[string]any{"account_no": "ACC-1"})

	rt, err := repo.FindRoute(ctx, "balance/inquiry")
	require.NoError(t, err)
	assert.Equal(t, "1001", rt.APICode)

	_, err = repo.FindRoute(ctx, "missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	params, err := repo.ListParameters(ctx, "1001")
	require.NoError(t, err)
	names := []string{params[0].Name, params[1].Name, params[2].Name}
	assert.Equal(t, []string{"z", "a", "b"}, names)

	bindings, err := repo.ListBindings(ctx, "1001", "a")
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	assert.Equal(t, "numeric", bindings[0].DataTypeRule)

	require.NoError(t, repo.IncrementUsage(ctx, "u1"))
	require.NoError(t, repo.IncrementUsage(ctx, "u1"))
	u, err := repo.GetIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.RequestCount)
	assert.ErrorIs(t, repo.IncrementUsage(ctx, "ghost"), registry.ErrNotFound)

	q := registry.ExistsQuery{Table: "accounts", Column: "account_no", FilterColumn: "account_no"}
	ok, err := repo.Exists(ctx, q, "ACC-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(ctx, q, "ACC-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

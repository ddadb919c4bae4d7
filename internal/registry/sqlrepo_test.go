package registry_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waploaj/DyAPI/internal/registry"
)

func newMock(t *testing.T) (*registry.SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return registry.NewSQLRepository(db, "gateway"), mock
}

func TestNormalizeSchema(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gateway", registry.NormalizeSchema("gateway"))
	assert.Equal(t, "public", registry.NormalizeSchema(""))
	assert.Equal(t, "public", registry.NormalizeSchema("Gate;DROP"))
}

func TestSQLRepositoryFindRoute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT path, api_code FROM gateway.api_routes WHERE path = $1`)).
			WithArgs("balance/inquiry").
			WillReturnRows(sqlmock.NewRows([]string{"path", "api_code"}).AddRow("balance/inquiry", "1001"))

		rt, err := repo.FindRoute(ctx, "balance/inquiry")
		require.NoError(t, err)
		assert.Equal(t, "1001", rt.APICode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		mock.ExpectQuery(`SELECT path, api_code FROM gateway.api_routes`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindRoute(ctx, "nope")
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})
}

func TestSQLRepositoryListParameters(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM gateway.api_parameters WHERE api_code = $1 ORDER BY priority ASC, param_name ASC`)).
		WithArgs("1001").
		WillReturnRows(sqlmock.NewRows([]string{"api_code", "param_name", "is_mandatory", "priority"}).
			AddRow("1001", "account", true, 1).
			AddRow("1001", "note", false, 2))

	list, err := repo.ListParameters(context.Background(), "1001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Mandatory)
	assert.Equal(t, "note", list[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryGetIdentity(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)
	blocked := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM gateway.identity_usage WHERE identity = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"identity", "status", "block_date", "request_count"}).
			AddRow("u1", "active", blocked, 4))

	u, err := repo.GetIdentity(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, u.BlockDate)
	assert.True(t, blocked.Equal(*u.BlockDate))
	assert.EqualValues(t, 4, u.RequestCount)
}

func TestSQLRepositoryIncrementUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("updates counter", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE gateway.identity_usage SET request_count = request_count + 1 WHERE identity = $1`)).
			WithArgs("u1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.IncrementUsage(ctx, "u1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows is not found", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		mock.ExpectExec(`UPDATE gateway.identity_usage`).
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.IncrementUsage(ctx, "ghost"), registry.ErrNotFound)
	})
}

func TestSQLRepositoryExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("quotes identifiers and binds value", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT "account_no" FROM "bank"."accounts" WHERE "account_no" = $1 LIMIT 1`)).
			WithArgs("ACC-1").
			WillReturnRows(sqlmock.NewRows([]string{"account_no"}).AddRow("ACC-1"))

		ok, err := repo.Exists(ctx, registry.ExistsQuery{Table: "bank.accounts", Column: "account_no", FilterColumn: "account_no"}, "ACC-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		mock.ExpectQuery(`SELECT "id" FROM "accounts"`).
			WithArgs("x").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		ok, err := repo.Exists(ctx, registry.ExistsQuery{Table: "accounts", Column: "id", FilterColumn: "id"}, "x")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects unsafe identifiers", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMock(t)
		_, err := repo.Exists(ctx, registry.ExistsQuery{Table: "accounts; drop", Column: "id", FilterColumn: "id"}, "x")
		assert.ErrorIs(t, err, registry.ErrInvalidIdentifier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLRepositoryListBusinessRules(t *testing.T) {
	t.Parallel()
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM gateway.business_rules ORDER BY id ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "description", "rule_kind", "operator", "criteria", "raw_expression"}).
			AddRow("BR1", "amount above ten", "COMPARISON", ">", "10", "").
			AddRow("BR2", "", "", "", "", "regex|[A-Z]+"))

	list, err := repo.ListBusinessRules(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BR1", list[0].ID)
	assert.Equal(t, "regex|[A-Z]+", list[1].RawExpression)
	assert.NoError(t, mock.ExpectationsWereMet())
}

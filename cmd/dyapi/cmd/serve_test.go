package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waploaj/DyAPI/internal/config"
	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/status"
)

func TestRegisterUpstreams(t *testing.T) {
	log = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg = config.Config{
		GRPCUpstreams: map[string]string{"accounts": "localhost:9090"},
		HTTPUpstreams: map[string]string{"orders": "http://orders:8081/api"},
	}
	handlers, probes, err := registerUpstreams()
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts", "orders"}, handlers.Names())
	require.Len(t, probes, 1)
	assert.Equal(t, "upstream:orders", probes[0].Name)
}

func TestRegisterUpstreamsRejectsDuplicateName(t *testing.T) {
	log = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg = config.Config{
		GRPCUpstreams: map[string]string{"accounts": "localhost:9090"},
		HTTPUpstreams: map[string]string{"accounts": "http://accounts:8081"},
	}
	_, _, err := registerUpstreams()
	assert.Error(t, err)
}

func TestRegisterUpstreamsRejectsRelativeURL(t *testing.T) {
	log = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg = config.Config{HTTPUpstreams: map[string]string{"orders": "orders/api"}}
	_, _, err := registerUpstreams()
	assert.Error(t, err)
}

func writeFixtures(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestPreloadRulesRejectsMalformedFixture(t *testing.T) {
	log = slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := registry.LoadFixturesFile(writeFixtures(t, "rules:\n  - id: bad\n    raw_expression: \"comparison|>>|abc\"\n"))
	require.NoError(t, err)

	_, err = preloadRules(context.Background(), repo)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrRuleConfig)
}

func TestPreloadRulesCachesValidRules(t *testing.T) {
	log = slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := registry.LoadFixturesFile(writeFixtures(t, "rules:\n  - id: min\n    raw_expression: \"comparison|>|10\"\n"))
	require.NoError(t, err)

	parsed, err := preloadRules(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Len())
}

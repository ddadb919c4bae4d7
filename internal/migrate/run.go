// Package migrate applies the embedded gateway schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// simple embedded migrations via in-memory list, applied in key order
var migrations = map[string]string{
	"001_api_routes.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.api_routes (
	  path TEXT PRIMARY KEY,
	  api_code TEXT NOT NULL
	);`,
	"002_api_descriptors.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.api_descriptors (
	  api_code TEXT PRIMARY KEY,
	  handler_type TEXT NOT NULL,
	  handler_method TEXT NOT NULL,
	  accepts_body BOOLEAN NOT NULL DEFAULT FALSE
	);`,
	"003_api_parameters.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.api_parameters (
	  api_code TEXT NOT NULL,
	  param_name TEXT NOT NULL,
	  is_mandatory BOOLEAN NOT NULL DEFAULT FALSE,
	  priority INTEGER NOT NULL DEFAULT 0,
	  PRIMARY KEY (api_code, param_name)
	);`,
	"004_business_rules.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.business_rules (
	  id TEXT PRIMARY KEY,
	  description TEXT,
	  rule_kind TEXT,
	  operator TEXT,
	  criteria TEXT,
	  raw_expression TEXT
	);`,
	"005_api_rule_bindings.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.api_rule_bindings (
	  id BIGSERIAL PRIMARY KEY,
	  api_code TEXT NOT NULL,
	  param_name TEXT NOT NULL,
	  business_rule_id TEXT,
	  data_type_rule TEXT,
	  common_rule TEXT,
	  priority INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS api_rule_bindings_param_idx ON {{schema}}.api_rule_bindings (api_code, param_name);`,
	"006_error_messages.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.error_messages (
	  code TEXT PRIMARY KEY,
	  message TEXT NOT NULL
	);`,
	"007_identity_usage.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.identity_usage (
	  identity TEXT PRIMARY KEY,
	  status TEXT NOT NULL DEFAULT 'active',
	  block_date TIMESTAMPTZ,
	  request_count BIGINT NOT NULL DEFAULT 0
	);`,
	"008_handler_setters.sql": `CREATE TABLE IF NOT EXISTS {{schema}}.handler_setters (
	  handler_type TEXT NOT NULL,
	  param_name TEXT NOT NULL,
	  field_name TEXT NOT NULL,
	  PRIMARY KEY (handler_type, param_name)
	);`,
}

// Versions returns the migration keys in the order they are applied.
func Versions() []string {
	keys := make([]string, 0, len(migrations))
	for k := range migrations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run creates schema and applies every migration not yet recorded in
// schema.schema_migrations. The schema name must already be validated.
func Run(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ DEFAULT now())", schema)); err != nil {
		return err
	}
	applied, err := appliedVersions(ctx, db, schema)
	if err != nil {
		return err
	}
	for _, k := range Versions() {
		if applied[k] {
			continue
		}
		sqlText := strings.ReplaceAll(migrations[k], "{{schema}}", schema)
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("apply %s: %w", k, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s.schema_migrations (version) VALUES ($1)", schema), k); err != nil {
			return fmt.Errorf("record %s: %w", k, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB, schema string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT version FROM %s.schema_migrations", schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// SQLRepository reads gateway configuration from Postgres tables living in
// a single schema.
type SQLRepository struct {
	db     *sql.DB
	schema string
}

// NewSQLRepository creates a repository using the provided schema (e.g., "gateway").
// Invalid or empty schema names fall back to "public".
func NewSQLRepository(db *sql.DB, schema string) *SQLRepository {
	return &SQLRepository{db: db, schema: NormalizeSchema(schema)}
}

// Schema returns the schema the repository reads from.
func (r *SQLRepository) Schema() string { return r.schema }

func (r *SQLRepository) table(name string) string { return r.schema + "." + name }

func (r *SQLRepository) FindRoute(ctx context.Context, path string) (*Route, error) {
	q := fmt.Sprintf(`SELECT path, api_code FROM %s WHERE path = $1`, r.table("api_routes"))
	var rt Route
	if err := r.db.QueryRowContext(ctx, q, path).Scan(&rt.Path, &rt.APICode); err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

func (r *SQLRepository) ListRoutes(ctx context.Context) ([]*Route, error) {
	q := fmt.Sprintf(`SELECT path, api_code FROM %s ORDER BY path ASC`, r.table("api_routes"))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*Route
	for rows.Next() {
		var rt Route
		if err := rows.Scan(&rt.Path, &rt.APICode); err != nil {
			return nil, err
		}
		list = append(list, &rt)
	}
	return list, rows.Err()
}

func (r *SQLRepository) GetDescriptor(ctx context.Context, apiCode string) (*Descriptor, error) {
	q := fmt.Sprintf(`SELECT api_code, handler_type, handler_method, accepts_body FROM %s WHERE api_code = $1`, r.table("api_descriptors"))
	var d Descriptor
	if err := r.db.QueryRowContext(ctx, q, apiCode).Scan(&d.APICode, &d.HandlerType, &d.HandlerMethod, &d.AcceptsBody); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *SQLRepository) ListParameters(ctx context.Context, apiCode string) ([]*ParameterSpec, error) {
	q := fmt.Sprintf(`SELECT api_code, param_name, is_mandatory, priority FROM %s WHERE api_code = $1 ORDER BY priority ASC, param_name ASC`, r.table("api_parameters"))
	rows, err := r.db.QueryContext(ctx, q, apiCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*ParameterSpec
	for rows.Next() {
		var p ParameterSpec
		if err := rows.Scan(&p.APICode, &p.Name, &p.Mandatory, &p.Priority); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

func (r *SQLRepository) ListBindings(ctx context.Context, apiCode, param string) ([]*RuleBinding, error) {
	q := fmt.Sprintf(`SELECT id, api_code, param_name, COALESCE(business_rule_id,''), COALESCE(data_type_rule,''), COALESCE(common_rule,''), priority FROM %s WHERE api_code = $1 AND param_name = $2 ORDER BY priority ASC, id ASC`, r.table("api_rule_bindings"))
	rows, err := r.db.QueryContext(ctx, q, apiCode, param)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*RuleBinding
	for rows.Next() {
		var b RuleBinding
		if err := rows.Scan(&b.ID, &b.APICode, &b.ParamName, &b.BusinessRuleID, &b.DataTypeRule, &b.CommonRule, &b.Priority); err != nil {
			return nil, err
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}

func (r *SQLRepository) GetBusinessRule(ctx context.Context, id string) (*BusinessRule, error) {
	q := fmt.Sprintf(`SELECT id, COALESCE(description,''), COALESCE(rule_kind,''), COALESCE(operator,''), COALESCE(criteria,''), COALESCE(raw_expression,'') FROM %s WHERE id = $1`, r.table("business_rules"))
	var br BusinessRule
	err := r.db.QueryRowContext(ctx, q, id).Scan(&br.ID, &br.Description, &br.Kind, &br.Operator, &br.Criteria, &br.RawExpression)
	if err != nil {
		return nil, notFound(err)
	}
	return &br, nil
}

func (r *SQLRepository) ListBusinessRules(ctx context.Context) ([]*BusinessRule, error) {
	q := fmt.Sprintf(`SELECT id, COALESCE(description,''), COALESCE(rule_kind,''), COALESCE(operator,''), COALESCE(criteria,''), COALESCE(raw_expression,'') FROM %s ORDER BY id ASC`, r.table("business_rules"))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*BusinessRule
	for rows.Next() {
		var br BusinessRule
		if err := rows.Scan(&br.ID, &br.Description, &br.Kind, &br.Operator, &br.Criteria, &br.RawExpression); err != nil {
			return nil, err
		}
		list = append(list, &br)
	}
	return list, rows.Err()
}

func (r *SQLRepository) ErrorMessage(ctx context.Context, code string) (string, error) {
	q := fmt.Sprintf(`SELECT message FROM %s WHERE code = $1`, r.table("error_messages"))
	var msg string
	if err := r.db.QueryRowContext(ctx, q, code).Scan(&msg); err != nil {
		return "", notFound(err)
	}
	return msg, nil
}

func (r *SQLRepository) ListSetters(ctx context.Context, handlerType string) ([]*SetterMapping, error) {
	q := fmt.Sprintf(`SELECT handler_type, param_name, field_name FROM %s WHERE handler_type = $1 ORDER BY param_name ASC`, r.table("handler_setters"))
	rows, err := r.db.QueryContext(ctx, q, handlerType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*SetterMapping
	for rows.Next() {
		var m SetterMapping
		if err := rows.Scan(&m.HandlerType, &m.ParamName, &m.FieldName); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

func (r *SQLRepository) GetIdentity(ctx context.Context, identity string) (*IdentityUsage, error) {
	q := fmt.Sprintf(`SELECT identity, COALESCE(status,''), block_date, request_count FROM %s WHERE identity = $1`, r.table("identity_usage"))
	var u IdentityUsage
	var blocked sql.NullTime
	if err := r.db.QueryRowContext(ctx, q, identity).Scan(&u.Identity, &u.Status, &blocked, &u.RequestCount); err != nil {
		return nil, notFound(err)
	}
	if blocked.Valid {
		t := blocked.Time
		u.BlockDate = &t
	}
	return &u, nil
}

func (r *SQLRepository) IncrementUsage(ctx context.Context, identity string) error {
	q := fmt.Sprintf(`UPDATE %s SET request_count = request_count + 1 WHERE identity = $1`, r.table("identity_usage"))
	res, err := r.db.ExecContext(ctx, q, identity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) Exists(ctx context.Context, lq ExistsQuery, value any) (bool, error) {
	if err := lq.Validate(); err != nil {
		return false, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 LIMIT 1`, quote(lq.Column), quote(lq.Table), quote(lq.FilterColumn))
	rows, err := r.db.QueryContext(ctx, q, value)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

func (r *SQLRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// quote quotes each dot-separated part of a validated identifier.
func quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

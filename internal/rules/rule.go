// Package rules parses stored business rule definitions into typed rules and
// evaluates them against request parameter values.
//
// Four kinds are supported:
//
//	COMPARISON   comparison|<op>|<threshold>          numeric threshold check
//	REGEX        regex|<pattern>                      whole-string match
//	DB_LOOKUP    db_lookup|<table>|<column>|<filter>|<criteria>  row exists, criteria reserved
//	CROSS_FIELD  cross_field|<expression>             always passes
//
// The raw expression is authoritative for DB_LOOKUP. For the other kinds the
// operator and criteria columns win when set and the raw expression is used
// as a fallback.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/waploaj/DyAPI/internal/registry"
	"github.com/waploaj/DyAPI/internal/status"
)

// Kind of a business rule.
type Kind string

const (
	KindComparison Kind = "COMPARISON"
	KindRegex      Kind = "REGEX"
	KindDBLookup   Kind = "DB_LOOKUP"
	KindCrossField Kind = "CROSS_FIELD"
)

// Rule is a parsed, ready to evaluate business rule.
type Rule struct {
	ID          string
	Description string
	Kind        Kind
	Raw         string
	Check       Check
}

// Check is implemented by each rule variant.
type Check interface {
	kind() Kind
}

// Comparison compares a numeric value against Threshold.
type Comparison struct {
	Operator  string
	Threshold float64
}

// Pattern requires the whole value to match.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

// Lookup requires at least one row matching the value. The filter column
// is always bound to the parameter value; Criteria is the fifth token of the
// expression, kept for display and reserved for future match modes.
type Lookup struct {
	Query    registry.ExistsQuery
	Criteria string
}

// CrossField is reserved for rules spanning several parameters.
type CrossField struct {
	Expression string
}

func (Comparison) kind() Kind { return KindComparison }
func (Pattern) kind() Kind    { return KindRegex }
func (Lookup) kind() Kind     { return KindDBLookup }
func (CrossField) kind() Kind { return KindCrossField }

var operators = map[string]bool{">": true, "<": true, "=": true, "==": true, ">=": true, "<=": true}

// Parse validates a stored definition and builds its typed form. Any defect
// is reported as a rule configuration error naming the rule.
func Parse(def registry.BusinessRule) (*Rule, error) {
	raw := strings.TrimSpace(def.RawExpression)
	parts := strings.Split(raw, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	kind := Kind(strings.ToUpper(strings.TrimSpace(def.Kind)))
	if kind == "" {
		kind = Kind(strings.ToUpper(parts[0]))
	}

	r := &Rule{ID: def.ID, Description: def.Description, Kind: kind, Raw: raw}
	var err error
	switch kind {
	case KindComparison:
		r.Check, err = parseComparison(def, parts)
	case KindRegex:
		r.Check, err = parseRegex(def, raw)
	case KindDBLookup:
		r.Check, err = parseLookup(parts)
	case KindCrossField:
		r.Check, err = parseCrossField(def, raw)
	default:
		err = fmt.Errorf("unknown rule kind %q", kind)
	}
	if err != nil {
		return nil, configError(def.ID, err)
	}
	return r, nil
}

func parseComparison(def registry.BusinessRule, parts []string) (Check, error) {
	op, criteria := strings.TrimSpace(def.Operator), strings.TrimSpace(def.Criteria)
	if op == "" || criteria == "" {
		if len(parts) != 3 || !strings.EqualFold(parts[0], "comparison") {
			return nil, fmt.Errorf("comparison expects comparison|op|threshold, got %d tokens", len(parts))
		}
		if op == "" {
			op = parts[1]
		}
		if criteria == "" {
			criteria = parts[2]
		}
	}
	if !operators[op] {
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
	th, err := strconv.ParseFloat(criteria, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid comparison threshold %q", criteria)
	}
	return Comparison{Operator: op, Threshold: th}, nil
}

func parseRegex(def registry.BusinessRule, raw string) (Check, error) {
	src := def.Criteria
	if src == "" {
		tokens := strings.SplitN(raw, "|", 2)
		if len(tokens) != 2 || !strings.EqualFold(strings.TrimSpace(tokens[0]), "regex") {
			return nil, fmt.Errorf("regex expects regex|pattern")
		}
		src = tokens[1]
	}
	if src == "" {
		return nil, fmt.Errorf("empty regex pattern")
	}
	re, err := regexp.Compile(`^(?:` + src + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return Pattern{Source: src, re: re}, nil
}

func parseLookup(parts []string) (Check, error) {
	if len(parts) != 5 || !strings.EqualFold(parts[0], "db_lookup") {
		return nil, fmt.Errorf("db_lookup expects db_lookup|table|column|filter_column|criteria, got %d tokens", len(parts))
	}
	q := registry.ExistsQuery{Table: parts[1], Column: parts[2], FilterColumn: parts[3]}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return Lookup{Query: q, Criteria: parts[4]}, nil
}

func parseCrossField(def registry.BusinessRule, raw string) (Check, error) {
	expr := def.Criteria
	if expr == "" {
		tokens := strings.SplitN(raw, "|", 2)
		if len(tokens) == 2 {
			expr = tokens[1]
		}
	}
	return CrossField{Expression: expr}, nil
}

func configError(id string, err error) error {
	return status.Wrap(status.KindRuleConfig, status.CodeRuleConfig, fmt.Sprintf("rule %s: %v", id, err), err)
}

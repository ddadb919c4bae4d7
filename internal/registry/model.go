package registry

import "time"

// Route binds a version-stripped request path to an API code.
type Route struct {
	Path    string `json:"path" example:"balance/inquiry" yaml:"path"`
	APICode string `json:"api_code" example:"1001" yaml:"api_code"`
}

// Descriptor is the dispatch target configured for an API code.
type Descriptor struct {
	APICode       string `json:"api_code" example:"1001" yaml:"api_code"`
	HandlerType   string `json:"handler_type" example:"accounts" yaml:"handler_type"`
	HandlerMethod string `json:"handler_method" example:"accounts.v1.Accounts/GetBalance" yaml:"handler_method"`
	AcceptsBody   bool   `json:"accepts_body" example:"true" yaml:"accepts_body"`
}

// ParameterSpec declares one request parameter of an API.
type ParameterSpec struct {
	APICode   string `json:"api_code" yaml:"api_code"`
	Name      string `json:"param_name" yaml:"param_name"`
	Mandatory bool   `json:"is_mandatory" yaml:"is_mandatory"`
	Priority  int    `json:"priority" yaml:"priority"`
}

// RuleBinding attaches one catalog rule to a parameter. Exactly one of the
// three references is expected to be set.
type RuleBinding struct {
	ID             int64  `json:"id" yaml:"id"`
	APICode        string `json:"api_code" yaml:"api_code"`
	ParamName      string `json:"param_name" yaml:"param_name"`
	BusinessRuleID string `json:"business_rule_id,omitempty" yaml:"business_rule_id,omitempty"`
	DataTypeRule   string `json:"data_type_rule,omitempty" yaml:"data_type_rule,omitempty"`
	CommonRule     string `json:"common_rule,omitempty" yaml:"common_rule,omitempty"`
	Priority       int    `json:"priority" yaml:"priority"`
}

// BusinessRule is the stored, unparsed form of a business rule.
type BusinessRule struct {
	ID            string `json:"id" yaml:"id"`
	Description   string `json:"description" yaml:"description"`
	Kind          string `json:"rule_kind" yaml:"rule_kind"`
	Operator      string `json:"operator" yaml:"operator"`
	Criteria      string `json:"criteria" yaml:"criteria"`
	RawExpression string `json:"raw_expression" yaml:"raw_expression"`
}

// SetterMapping maps a request parameter to a handler field.
type SetterMapping struct {
	HandlerType string `json:"handler_type" yaml:"handler_type"`
	ParamName   string `json:"param_name" yaml:"param_name"`
	FieldName   string `json:"field_name" yaml:"field_name"`
}

// IdentityUsage is the usage record of one caller identity.
type IdentityUsage struct {
	Identity     string     `json:"identity" yaml:"identity"`
	Status       string     `json:"status" yaml:"status"`
	BlockDate    *time.Time `json:"block_date,omitempty" yaml:"block_date,omitempty"`
	RequestCount int64      `json:"request_count" yaml:"request_count"`
}

// ExistsQuery describes a DB lookup. All names come from trusted rule
// configuration and are validated before use.
type ExistsQuery struct {
	Table        string
	Column       string
	FilterColumn string
}

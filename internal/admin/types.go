package admin

import "github.com/waploaj/DyAPI/internal/registry"

// APIDetail is the configuration of one API code.
type APIDetail struct {
	Descriptor *registry.Descriptor `json:"descriptor"`
	Parameters []ParameterDetail    `json:"parameters"`
}

// ParameterDetail is a parameter spec with its rule bindings.
type ParameterDetail struct {
	*registry.ParameterSpec
	Bindings []*registry.RuleBinding `json:"bindings"`
}

// FlushResponse reports how many cache keys were removed.
type FlushResponse struct {
	Flushed int `json:"flushed" example:"12"`
}

package registry

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document accepted by LoadFixtures. It mirrors the
// configuration tables so a gateway can run without Postgres.
type Fixtures struct {
	Routes      []Route                     `yaml:"routes"`
	Descriptors []Descriptor                `yaml:"descriptors"`
	Parameters  []ParameterSpec             `yaml:"parameters"`
	Bindings    []RuleBinding               `yaml:"bindings"`
	Rules       []BusinessRule              `yaml:"rules"`
	Messages    map[string]string           `yaml:"messages"`
	Setters     []SetterMapping             `yaml:"setters"`
	Identities  []IdentityUsage             `yaml:"identities"`
	Lookups     map[string][]map[string]any `yaml:"lookups"`
}

// LoadFixtures decodes a fixtures document into a fresh MemoryRepository.
func LoadFixtures(r io.Reader) (*MemoryRepository, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return fx.Apply(NewMemoryRepository())
}

// LoadFixturesFile is LoadFixtures over the file at path.
func LoadFixturesFile(path string) (*MemoryRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFixtures(f)
}

// Apply adds every fixture row to m.
func (fx Fixtures) Apply(m *MemoryRepository) (*MemoryRepository, error) {
	for _, rt := range fx.Routes {
		if rt.Path == "" || rt.APICode == "" {
			return nil, fmt.Errorf("route %q: path and api_code are required", rt.Path)
		}
		m.AddRoute(rt.Path, rt.APICode)
	}
	for _, d := range fx.Descriptors {
		if d.APICode == "" || d.HandlerType == "" {
			return nil, fmt.Errorf("descriptor %q: api_code and handler_type are required", d.APICode)
		}
		m.AddDescriptor(d)
	}
	for _, p := range fx.Parameters {
		m.AddParameter(p)
	}
	for _, b := range fx.Bindings {
		m.AddBinding(b)
	}
	for _, r := range fx.Rules {
		m.AddBusinessRule(r)
	}
	for code, msg := range fx.Messages {
		m.AddErrorMessage(code, msg)
	}
	for _, s := range fx.Setters {
		m.AddSetter(s)
	}
	for _, u := range fx.Identities {
		m.AddIdentity(u)
	}
	for table, rows := range fx.Lookups {
		for _, row := range rows {
			m.AddLookupRow(table, row)
		}
	}
	return m, nil
}

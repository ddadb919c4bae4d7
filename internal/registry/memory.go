package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepository is a non-persistent in-memory repo for dev and tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	routes      map[string]*Route
	descriptors map[string]*Descriptor
	params      map[string][]*ParameterSpec
	bindings    map[string][]*RuleBinding
	rules       map[string]*BusinessRule
	messages    map[string]string
	setters     map[string][]*SetterMapping
	identities  map[string]*IdentityUsage
	lookups     map[string][]map[string]any
	nextID      int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		routes:      map[string]*Route{},
		descriptors: map[string]*Descriptor{},
		params:      map[string][]*ParameterSpec{},
		bindings:    map[string][]*RuleBinding{},
		rules:       map[string]*BusinessRule{},
		messages:    map[string]string{},
		setters:     map[string][]*SetterMapping{},
		identities:  map[string]*IdentityUsage{},
		lookups:     map[string][]map[string]any{},
	}
}

func bindingKey(apiCode, param string) string { return apiCode + "\x00" + param }

// AddRoute registers path for apiCode.
func (m *MemoryRepository) AddRoute(path, apiCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = &Route{Path: path, APICode: apiCode}
}

func (m *MemoryRepository) AddDescriptor(d Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descriptors[d.APICode] = &d
}

func (m *MemoryRepository) AddParameter(p ParameterSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.params[p.APICode], &p)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].Name < list[j].Name
	})
	m.params[p.APICode] = list
}

// AddBinding stores b, assigning an ID when none is set.
func (m *MemoryRepository) AddBinding(b RuleBinding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if b.ID == 0 {
		b.ID = m.nextID
	}
	k := bindingKey(b.APICode, b.ParamName)
	list := append(m.bindings[k], &b)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].ID < list[j].ID
	})
	m.bindings[k] = list
}

func (m *MemoryRepository) AddBusinessRule(r BusinessRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = &r
}

func (m *MemoryRepository) AddErrorMessage(code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[code] = message
}

func (m *MemoryRepository) AddSetter(s SetterMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setters[s.HandlerType] = append(m.setters[s.HandlerType], &s)
}

func (m *MemoryRepository) AddIdentity(u IdentityUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[u.Identity] = &u
}

// AddLookupRow appends a row to an arbitrary table used by DB lookups.
func (m *MemoryRepository) AddLookupRow(table string, row map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[table] = append(m.lookups[table], row)
}

func (m *MemoryRepository) FindRoute(ctx context.Context, path string) (*Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rt, ok := m.routes[path]; ok {
		cp := *rt
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListRoutes(ctx context.Context) ([]*Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Route, 0, len(m.routes))
	for _, rt := range m.routes {
		cp := *rt
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	return list, nil
}

func (m *MemoryRepository) GetDescriptor(ctx context.Context, apiCode string) (*Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.descriptors[apiCode]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListParameters(ctx context.Context, apiCode string) ([]*ParameterSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*ParameterSpec(nil), m.params[apiCode]...), nil
}

func (m *MemoryRepository) ListBindings(ctx context.Context, apiCode, param string) ([]*RuleBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*RuleBinding(nil), m.bindings[bindingKey(apiCode, param)]...), nil
}

func (m *MemoryRepository) GetBusinessRule(ctx context.Context, id string) (*BusinessRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rules[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListBusinessRules(ctx context.Context) ([]*BusinessRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*BusinessRule, 0, len(m.rules))
	for _, r := range m.rules {
		cp := *r
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *MemoryRepository) ErrorMessage(ctx context.Context, code string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if msg, ok := m.messages[code]; ok {
		return msg, nil
	}
	return "", ErrNotFound
}

func (m *MemoryRepository) ListSetters(ctx context.Context, handlerType string) ([]*SetterMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*SetterMapping(nil), m.setters[handlerType]...), nil
}

func (m *MemoryRepository) GetIdentity(ctx context.Context, identity string) (*IdentityUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.identities[identity]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) IncrementUsage(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.identities[identity]
	if !ok {
		return ErrNotFound
	}
	u.RequestCount++
	return nil
}

func (m *MemoryRepository) Exists(ctx context.Context, q ExistsQuery, value any) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := fmt.Sprint(value)
	for _, row := range m.lookups[q.Table] {
		v, ok := row[q.FilterColumn]
		if !ok {
			continue
		}
		if _, has := row[q.Column]; !has {
			continue
		}
		if fmt.Sprint(v) == want {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error { return nil }

package authz

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

var (
	// ErrDuplicateOperation is returned when an operation is registered twice
	ErrDuplicateOperation = errors.New("authz: operation already registered")
	// ErrRegistryFrozen is returned when registering after Freeze
	ErrRegistryFrozen = errors.New("authz: registry is frozen")
	// ErrInvalidOperation is returned for blank operation names
	ErrInvalidOperation = errors.New("authz: invalid operation name")
)

// Registry maps operation names to the requirements guarding them. It is
// built at startup and frozen before serving; lookups on a frozen registry
// take no locks.
type Registry struct {
	mu     sync.RWMutex
	frozen atomic.Bool
	ops    map[string][]Requirement
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string][]Requirement)}
}

// Register declares the requirements of op. Registering an operation with no
// requirements, or only empty ones, records it as unguarded.
func (r *Registry) Register(op string, reqs ...Requirement) error {
	op = strings.TrimSpace(op)
	if op == "" {
		return ErrInvalidOperation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, op)
	}
	if _, exists := r.ops[op]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateOperation, op)
	}

	r.ops[op] = cloneRequirements(reqs)
	return nil
}

// MustRegister is Register that panics on error. Intended for package-level
// table construction.
func (r *Registry) MustRegister(op string, reqs ...Requirement) {
	if err := r.Register(op, reqs...); err != nil {
		panic(err)
	}
}

// Override replaces the requirements of every operation declared in other.
// Operations unknown to r are added.
func (r *Registry) Override(other *Registry) error {
	if other == nil || other == r {
		return nil
	}
	other.mu.RLock()
	defer other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	for op, reqs := range other.ops {
		r.ops[op] = cloneRequirements(reqs)
	}
	return nil
}

// Freeze makes the registry read-only
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns a copy of the requirements declared for op
func (r *Registry) Lookup(op string) ([]Requirement, bool) {
	reqs, ok := r.requirements(op)
	if !ok {
		return nil, false
	}
	return cloneRequirements(reqs), true
}

// Guarded reports whether op has at least one non-empty requirement
func (r *Registry) Guarded(op string) bool {
	reqs, _ := r.requirements(op)
	return effective(reqs)
}

// Operations returns the registered operation names in sorted order
func (r *Registry) Operations() []string {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	names := make([]string, 0, len(r.ops))
	for op := range r.ops {
		names = append(names, op)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered operations
func (r *Registry) Len() int {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return len(r.ops)
}

// requirements returns the stored slice without copying. Callers must not
// modify it.
func (r *Registry) requirements(op string) ([]Requirement, bool) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	reqs, ok := r.ops[op]
	return reqs, ok
}

func effective(reqs []Requirement) bool {
	for _, req := range reqs {
		if !req.IsEmpty() {
			return true
		}
	}
	return false
}

func cloneRequirements(reqs []Requirement) []Requirement {
	out := make([]Requirement, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, req.clone())
	}
	return out
}

// registryFile is the YAML layout of a permission table:
//
//	operations:
//	  inventory.delete:
//	    - permissions: [inventory.delete]
//	      require_all: true
//	      roles: [Manager, Owner]
type registryFile struct {
	Operations map[string][]Requirement `yaml:"operations"`
}

// LoadRegistryYAML builds an unfrozen registry from a YAML permission table
func LoadRegistryYAML(in io.Reader) (*Registry, error) {
	var file registryFile
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse permission table: %w", err)
	}

	reg := NewRegistry()
	for op, reqs := range file.Operations {
		if err := reg.Register(op, reqs...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// WriteYAML writes the registry in the format read by LoadRegistryYAML
func (r *Registry) WriteYAML(out io.Writer) error {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(registryFile{Operations: r.ops}); err != nil {
		return fmt.Errorf("failed to encode permission table: %w", err)
	}
	return enc.Close()
}

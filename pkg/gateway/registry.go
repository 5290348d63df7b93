package gateway

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry is the process-wide mapping from namespace identifier to
// Namespace. It is populated during startup and read-only thereafter; there
// is deliberately no removal operation.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace

	logger  *slog.Logger
	metrics *Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(logger *slog.Logger, metrics *Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		namespaces: make(map[string]*Namespace),
		logger:     logger.With("component", "registry"),
		metrics:    metrics,
	}
}

// Register returns the namespace for the identifier, creating it on first
// use. It is idempotent: registering an existing identifier returns the
// existing namespace, never a duplicate. An empty identifier means the
// default namespace "/".
func (r *Registry) Register(name string) *Namespace {
	if name == "" {
		name = "/"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ns, ok := r.namespaces[name]; ok {
		return ns
	}

	ns := newNamespace(name, r.logger, r.metrics)
	r.namespaces[name] = ns
	r.logger.Info("namespace registered", "namespace", name)
	return ns
}

// Resolve returns the namespace for the identifier a connection declared.
// It fails with ErrNamespaceNotFound for unregistered identifiers; callers
// must deny the connection rather than fall back to a default namespace.
func (r *Registry) Resolve(name string) (*Namespace, error) {
	r.mu.RLock()
	ns, ok := r.namespaces[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNamespaceNotFound, name)
	}
	return ns, nil
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// each calls fn for every registered namespace.
func (r *Registry) each(fn func(*Namespace)) {
	r.mu.RLock()
	namespaces := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		namespaces = append(namespaces, ns)
	}
	r.mu.RUnlock()

	for _, ns := range namespaces {
		fn(ns)
	}
}

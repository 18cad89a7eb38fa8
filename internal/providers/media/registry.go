package media

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"imagelab/internal/retry"
)

type entry struct {
	generator Generator
	policy    retry.Policy
}

// Registry maps provider keys to configured adapters and their retry policies.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register binds key to g. A later registration replaces an earlier one.
func (r *Registry) Register(key string, g Generator, policy retry.Policy) {
	key = strings.TrimSpace(key)
	if key == "" || g == nil {
		return
	}
	r.mu.Lock()
	r.entries[key] = entry{generator: g, policy: policy}
	r.mu.Unlock()
}

// Lookup returns the adapter bound to key.
func (r *Registry) Lookup(key string) (Generator, retry.Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.TrimSpace(key)]
	return e.generator, e.policy, ok
}

// Has reports whether key has a registered adapter.
func (r *Registry) Has(key string) bool {
	_, _, ok := r.Lookup(key)
	return ok
}

// Keys lists registered provider keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// DisplayName turns a provider key such as "sdxl_lightning" into "Sdxl Lightning".
// Casers are stateful, so each call builds its own.
func DisplayName(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(key), "_", " "))
}

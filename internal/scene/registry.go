package scene

import "sort"

// Registry maps canonical item names to resolved handles.
//
// A registry is built once by Resolve and read-only afterwards. It is not
// safe for concurrent mutation, but the sequencer is single-threaded so no
// locking is needed; concurrent reads are fine.
type Registry struct {
	items map[string]Item
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Item)}
}

// add inserts an item under its canonical name. Internal to Resolve.
func (r *Registry) add(it Item) {
	r.items[Canonical(it.Name)] = it
}

// Get returns the item registered under name (NFC-normalized before lookup).
func (r *Registry) Get(name string) (Item, bool) {
	it, ok := r.items[Canonical(name)]
	return it, ok
}

// Has reports whether name resolves in this registry.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.items))
	for n := range r.items {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	return len(r.items)
}

// Merge returns a new registry containing entries from both registries.
// On duplicate names the other registry wins.
func (r *Registry) Merge(other *Registry) *Registry {
	out := NewRegistry()
	for _, it := range r.items {
		out.add(it)
	}
	for _, it := range other.items {
		out.add(it)
	}
	return out
}

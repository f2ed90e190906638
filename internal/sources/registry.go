package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SourceStatus holds the last health check outcome for a source.
type SourceStatus struct {
	SourceName string
	Healthy    bool
	Status     string
	LastCheck  time.Time
}

// Registry manages registered sources and their health statuses
type Registry struct {
	mu       sync.RWMutex
	sources  map[string]Source
	byKind   map[MediaKind][]Source
	statuses map[string]*SourceStatus
}

var globalRegistry = NewRegistry()

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources:  make(map[string]Source),
		byKind:   make(map[MediaKind][]Source),
		statuses: make(map[string]*SourceStatus),
	}
}

// Register adds a source to the registry
func (r *Registry) Register(src Source) error {
	if src == nil {
		return fmt.Errorf("cannot register nil source")
	}

	name := src.Name()
	if name == "" {
		return fmt.Errorf("source must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %s is already registered", name)
	}

	r.sources[name] = src
	r.byKind[src.Kind()] = append(r.byKind[src.Kind()], src)
	r.statuses[name] = &SourceStatus{
		SourceName: name,
		Status:     "Pending",
	}

	return nil
}

// Unregister removes a source from the registry
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, exists := r.sources[name]
	if !exists {
		return fmt.Errorf("source %s is not registered", name)
	}

	delete(r.sources, name)
	delete(r.statuses, name)

	kind := src.Kind()
	kept := make([]Source, 0, len(r.byKind[kind]))
	for _, s := range r.byKind[kind] {
		if s.Name() != name {
			kept = append(kept, s)
		}
	}
	r.byKind[kind] = kept

	return nil
}

// Get returns a source by name
func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, exists := r.sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}

	return src, nil
}

// GetVideo returns a registered source that resolves streams.
func (r *Registry) GetVideo(name string) (VideoSource, error) {
	src, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	v, ok := src.(VideoSource)
	if !ok {
		return nil, fmt.Errorf("source %s does not resolve streams", name)
	}
	return v, nil
}

// GetBook returns a registered source that resolves pages.
func (r *Registry) GetBook(name string) (BookSource, error) {
	src, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	b, ok := src.(BookSource)
	if !ok {
		return nil, fmt.Errorf("source %s does not resolve pages", name)
	}
	return b, nil
}

// GetByKind returns all sources of the given kind
func (r *Registry) GetByKind(kind MediaKind) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Source, len(r.byKind[kind]))
	copy(result, r.byKind[kind])
	return result
}

// List returns the names of all registered sources, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered sources
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sources)
}

// Clear removes all sources from the registry
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = make(map[string]Source)
	r.byKind = make(map[MediaKind][]Source)
	r.statuses = make(map[string]*SourceStatus)
}

// CheckAll runs a health check on every registered source concurrently.
func (r *Registry) CheckAll(ctx context.Context) {
	r.mu.RLock()
	all := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		all = append(all, s)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			err := src.HealthCheck(checkCtx)

			r.mu.Lock()
			defer r.mu.Unlock()
			status, ok := r.statuses[src.Name()]
			if !ok {
				return
			}
			status.LastCheck = time.Now()
			if err != nil {
				status.Healthy = false
				status.Status = fmt.Sprintf("Offline: %v", err)
			} else {
				status.Healthy = true
				status.Status = "Online"
			}
		}(s)
	}
	wg.Wait()
}

// Statuses returns the health status of all registered sources.
func (r *Registry) Statuses() []*SourceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]*SourceStatus, 0, len(r.statuses))
	for _, status := range r.statuses {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].SourceName < statuses[j].SourceName
	})
	return statuses
}

// Global registry functions

// Register adds a source to the global registry
func Register(src Source) error {
	return globalRegistry.Register(src)
}

// Get returns a source by name from the global registry
func Get(name string) (Source, error) {
	return globalRegistry.Get(name)
}

// GetVideo returns a stream-capable source from the global registry
func GetVideo(name string) (VideoSource, error) {
	return globalRegistry.GetVideo(name)
}

// GetBook returns a page-capable source from the global registry
func GetBook(name string) (BookSource, error) {
	return globalRegistry.GetBook(name)
}

// GetByKind returns all sources of the given kind from the global registry
func GetByKind(kind MediaKind) []Source {
	return globalRegistry.GetByKind(kind)
}

// List returns the names of all sources in the global registry
func List() []string {
	return globalRegistry.List()
}

// Clear removes all sources from the global registry
func Clear() {
	globalRegistry.Clear()
}

// CheckAllSources runs health checks on every source in the global registry
func CheckAllSources(ctx context.Context) {
	globalRegistry.CheckAll(ctx)
}

// Statuses returns health statuses from the global registry
func Statuses() []*SourceStatus {
	return globalRegistry.Statuses()
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}

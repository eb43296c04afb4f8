package engine

import "sync"

// Factory builds an engine for a user id on first use.
type Factory func(userID string) (*Engine, error)

// Registry hands out one engine and one lock per user. Callers that hold
// the lock via [Registry.RunExclusive] get the serialization the engine
// itself does not provide: two passes for one user never overlap, and
// different users never contend.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	engines map[string]*Engine
	locks   map[string]*sync.Mutex
}

// NewRegistry creates a [Registry] backed by the given factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		engines: make(map[string]*Engine),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Get returns the user's engine, building it on first use.
func (r *Registry) Get(userID string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[userID]; ok {
		return engine, nil
	}

	engine, err := r.factory(userID)
	if err != nil {
		return nil, err
	}

	r.engines[userID] = engine
	r.locks[userID] = &sync.Mutex{}
	return engine, nil
}

// RunExclusive runs fn with the user's engine while holding that user's
// lock.
func (r *Registry) RunExclusive(userID string, fn func(*Engine) error) error {
	engine, err := r.Get(userID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	lock := r.locks[userID]
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(engine)
}

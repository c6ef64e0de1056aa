// Package sandbox provides the isolated evaluation primitive: a Realm is
// a caller-owned execution context that may be reused across executions to
// carry state forward, and Execute links and runs compiled modules inside
// it under a wall-clock timeout.
package sandbox

import (
	"math/rand"
	"sync"

	"github.com/dop251/goja"
)

// maxCallStackDepth bounds the VM call stack to keep runaway recursion
// from exhausting the host stack.
const maxCallStackDepth = 500

// RealmOption configures a Realm at construction.
type RealmOption func(*realmConfig)

type realmConfig struct {
	maxCallStack int
	randSeed     *int64
}

// WithMaxCallStack overrides the default VM call stack depth limit.
func WithMaxCallStack(n int) RealmOption {
	return func(c *realmConfig) {
		c.maxCallStack = n
	}
}

// WithDeterministicRand seeds Math.random with a fixed source so repeated
// executions are reproducible.
func WithDeterministicRand(seed int64) RealmOption {
	return func(c *realmConfig) {
		c.randSeed = &seed
	}
}

// Realm is a mutable execution context. Global bindings injected with Set
// persist across executions; the pipeline installs its two ambient
// bindings around each call and removes them afterwards, leaving the rest
// untouched.
//
// A Realm must not be shared by concurrent executions; the internal mutex
// serializes accidental overlap.
type Realm struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	cfg     realmConfig
	tainted bool
}

func NewRealm(opts ...RealmOption) *Realm {
	cfg := realmConfig{maxCallStack: maxCallStackDepth}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Realm{cfg: cfg}
	r.vm = newVM(cfg)
	return r
}

func newVM(cfg realmConfig) *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(cfg.maxCallStack)
	if cfg.randSeed != nil {
		src := rand.New(rand.NewSource(*cfg.randSeed))
		vm.SetRandSource(func() float64 { return src.Float64() })
	}
	return vm
}

// Set injects a named global binding, visible to every subsequent
// execution in this realm.
func (r *Realm) Set(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vm.Set(name, value)
}

// Get reads a global binding, exported to a plain Go value. Missing
// bindings yield nil.
func (r *Realm) Get(name string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	return v.Export()
}

// Delete removes a global binding.
func (r *Realm) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.vm.GlobalObject().Delete(name)
}

// Tainted reports whether a previous execution was interrupted. An
// interrupted VM may hold partially evaluated state; hosts that care call
// Reset before reuse.
func (r *Realm) Tainted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tainted
}

// Reset discards the VM, and with it every injected binding and all state
// accumulated by previous executions.
func (r *Realm) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = newVM(r.cfg)
	r.tainted = false
}

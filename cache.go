package enclave

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"enclave/frontend"
)

// ArtifactCache memoizes successful preprocessing keyed by a digest of
// the source, the declared types, the auxiliary units and the compiler
// options. Concurrent preprocessing of identical input is deduplicated so
// the front end compiles each submission once.
//
// Failed compilations are not cached; diagnostics are recomputed per
// call.
type ArtifactCache struct {
	mu      sync.RWMutex
	entries map[string]*Artifact
	group   singleflight.Group
}

func NewArtifactCache() *ArtifactCache {
	return &ArtifactCache{entries: make(map[string]*Artifact)}
}

// Len reports the number of cached artifacts.
func (c *ArtifactCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type cachedOutcome struct {
	artifact *Artifact
	errs     []Error
}

func (c *ArtifactCache) lookup(key string) (*Artifact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[key]
	return a, ok
}

func (c *ArtifactCache) store(key string, a *Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = a
}

// do returns the cached artifact for key, or runs compile once even under
// concurrent callers.
func (c *ArtifactCache) do(key string, compile func() (*Artifact, []Error, error)) (*Artifact, []Error, error) {
	if a, ok := c.lookup(key); ok {
		return a, nil, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if a, ok := c.lookup(key); ok {
			return &cachedOutcome{artifact: a}, nil
		}
		a, errs, cerr := compile()
		if cerr != nil {
			return nil, cerr
		}
		if a != nil {
			c.store(key, a)
		}
		return &cachedOutcome{artifact: a, errs: errs}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	out := v.(*cachedOutcome)
	return out.artifact, out.errs, nil
}

// cacheKey digests everything that influences compilation output.
func cacheKey(source string, cc *callConfig, opts frontend.Options) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(source)
	write(cc.returnType)
	for _, t := range cc.argTypes {
		write(t)
	}
	for _, u := range cc.aux {
		write(u.ID)
		write(u.Text)
		if u.DeclarationOnly {
			write("d")
		}
	}
	write(opts.Target)
	if opts.Strict {
		write("strict")
	}
	keys := make([]string, 0, len(opts.Raw))
	for k := range opts.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k)
		write(opts.Raw[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

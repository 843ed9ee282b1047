package binding

import (
	"fmt"
	"sync"

	"github.com/gogpu/rhi/cache"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// Specializer binds concrete types to the existential parameters of a
// program. reflection.Compiler is the reference implementation.
type Specializer interface {
	Specialize(p *reflection.Program, args []reflection.SpecializationArg) (*reflection.Program, error)
}

// specializeLayout specializes p with args and builds the layout of the
// result.
func specializeLayout(device gpucore.Device, p *reflection.Program, args []reflection.SpecializationArg, s Specializer) (*RootShaderObjectLayout, error) {
	sp, err := s.Specialize(p, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s<%s>: %w", ErrSpecializationFailure, p.Name, reflection.ArgsKey(args), err)
	}
	l, err := NewRootShaderObjectLayout(device, sp)
	if err != nil {
		return nil, err
	}
	if l.NeedsSpecialization() {
		l.Release()
		return nil, fmt.Errorf("%w: %s still has unresolved parameters", ErrSpecializationFailure, sp.Name)
	}
	slogger().Debug("binding: specialized layout", "program", p.Name, "args", reflection.ArgsKey(args))
	return l, nil
}

// ProgramCache shares specialized layouts between root objects, keyed by
// program and argument list.
//
// Thread Safety: ProgramCache is safe for concurrent use.
type ProgramCache struct {
	layouts *cache.ShardedCache[string, *RootShaderObjectLayout]

	mu sync.Mutex
	// retired holds evicted layouts. Objects may still bind with them, so
	// they are only destroyed by Release.
	retired []*RootShaderObjectLayout
}

// NewProgramCache creates a cache holding up to capacity layouts per shard.
func NewProgramCache(capacity int) *ProgramCache {
	c := &ProgramCache{layouts: cache.NewSharded[string, *RootShaderObjectLayout](capacity, cache.StringHasher)}
	c.layouts.OnEvict(func(_ string, l *RootShaderObjectLayout) {
		c.mu.Lock()
		c.retired = append(c.retired, l)
		c.mu.Unlock()
	})
	return c
}

func programKey(p *reflection.Program, args []reflection.SpecializationArg) string {
	return p.ID.String() + "|" + reflection.ArgsKey(args)
}

// Layout returns the specialized layout of p for args, building it on a
// miss.
func (c *ProgramCache) Layout(device gpucore.Device, p *reflection.Program, args []reflection.SpecializationArg, s Specializer) (*RootShaderObjectLayout, error) {
	return c.layouts.GetOrCreateErr(programKey(p, args), func() (*RootShaderObjectLayout, error) {
		slogger().Debug("binding: program cache miss", "program", p.Name, "args", reflection.ArgsKey(args))
		return specializeLayout(device, p, args, s)
	})
}

// Len returns the number of cached layouts.
func (c *ProgramCache) Len() int { return c.layouts.Len() }

// Stats returns the cache counters.
func (c *ProgramCache) Stats() cache.Stats { return c.layouts.Stats() }

// Release destroys every cached and evicted layout and empties the cache.
func (c *ProgramCache) Release() {
	c.layouts.Range(func(_ string, l *RootShaderObjectLayout) bool {
		l.Release()
		return true
	})
	c.layouts.Clear()

	c.mu.Lock()
	for _, l := range c.retired {
		l.Release()
	}
	c.retired = nil
	c.mu.Unlock()
}

package binding

import (
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gogpu/rhi/cache"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

// LayoutCache shares layouts between objects of the same type. Type layouts
// are keyed by session and type name, so type names must be unique within a
// session. Root layouts are keyed by program.
//
// Thread Safety: LayoutCache is safe for concurrent use.
type LayoutCache struct {
	device gpucore.Device
	types  *cache.ShardedCache[string, *ShaderObjectLayout]
	roots  *cache.ShardedCache[string, *RootShaderObjectLayout]

	mu      sync.Mutex
	retired []interface{ Release() }
}

// NewLayoutCache creates a cache building layouts on device. capacity is
// per shard; zero selects the default.
func NewLayoutCache(device gpucore.Device, capacity int) *LayoutCache {
	c := &LayoutCache{
		device: device,
		types:  cache.NewSharded[string, *ShaderObjectLayout](capacity, cache.StringHasher),
		roots:  cache.NewSharded[string, *RootShaderObjectLayout](capacity, cache.StringHasher),
	}
	c.types.OnEvict(func(_ string, l *ShaderObjectLayout) { c.retire(l) })
	c.roots.OnEvict(func(_ string, l *RootShaderObjectLayout) { c.retire(l) })
	return c
}

func (c *LayoutCache) retire(l interface{ Release() }) {
	c.mu.Lock()
	c.retired = append(c.retired, l)
	c.mu.Unlock()
}

func typeKey(s *reflection.Session, tl *reflection.TypeLayout) string {
	return s.ID.String() + "/" + tl.Name()
}

// Layout returns the layout of objects of type tl, building it on a miss.
func (c *LayoutCache) Layout(s *reflection.Session, tl *reflection.TypeLayout) (*ShaderObjectLayout, error) {
	return c.types.GetOrCreateErr(typeKey(s, tl), func() (*ShaderObjectLayout, error) {
		slogger().Debug("binding: layout cache miss", "type", tl.Name())
		return NewShaderObjectLayout(c.device, s, tl)
	})
}

// RootLayout returns the layout of program p, building it on a miss.
func (c *LayoutCache) RootLayout(p *reflection.Program) (*RootShaderObjectLayout, error) {
	return c.roots.GetOrCreateErr(p.ID.String(), func() (*RootShaderObjectLayout, error) {
		slogger().Debug("binding: layout cache miss", "program", p.Name)
		return NewRootShaderObjectLayout(c.device, p)
	})
}

// Prewarm builds the layouts of types on up to workers goroutines. It
// returns once every build has finished, with the errors of failed builds
// joined.
func (c *LayoutCache) Prewarm(s *reflection.Session, types []*reflection.TypeLayout, workers int) error {
	if len(types) == 0 {
		return nil
	}
	pool := worker.NewDynamicWorkerPool(workers, len(types), time.Second)
	defer pool.Stop()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i, tl := range types {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: tl.Name(),
			Do: func() (any, error) {
				defer wg.Done()
				l, err := c.Layout(s, tl)
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return l, err
			},
		})
	}
	wg.Wait()

	slogger().Debug("binding: prewarmed layouts", "types", len(types), "failed", len(errs))
	return errors.Join(errs...)
}

// TypeStats returns the counters of the type layout cache.
func (c *LayoutCache) TypeStats() cache.Stats { return c.types.Stats() }

// RootStats returns the counters of the root layout cache.
func (c *LayoutCache) RootStats() cache.Stats { return c.roots.Stats() }

// Release destroys every cached and evicted layout.
func (c *LayoutCache) Release() {
	c.types.Range(func(_ string, l *ShaderObjectLayout) bool {
		l.Release()
		return true
	})
	c.types.Clear()
	c.roots.Range(func(_ string, l *RootShaderObjectLayout) bool {
		l.Release()
		return true
	})
	c.roots.Clear()

	c.mu.Lock()
	for _, l := range c.retired {
		l.Release()
	}
	c.retired = nil
	c.mu.Unlock()
}

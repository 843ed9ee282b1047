// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"errors"
	"sync"

	"github.com/gogpu/rhi/backend"
	"github.com/gogpu/rhi/binding"
	"github.com/gogpu/rhi/cache"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

var (
	// ErrClosed is returned by a Device after Close.
	ErrClosed = errors.New("rhi: device closed")

	// ErrNilDevice is returned by NewDevice without a GPU device.
	ErrNilDevice = errors.New("rhi: nil GPU device")
)

// Device is the entry point of the binding engine on one GPU device. It owns
// the layout and program caches, the constant-buffer pool and the object
// identity counter, and releases all of them on Close.
//
// Thread Safety: Device is safe for concurrent use. Shader objects are not;
// each object tree must be written and bound from one goroutine at a time.
type Device struct {
	gpu     gpucore.Device
	ownsGPU bool
	label   string
	session *reflection.Session

	layouts  *binding.LayoutCache
	programs *binding.ProgramCache
	pool     *gpucore.ConstantBufferPool
	ids      binding.IdentityCounter
	binder   binding.Binder

	prewarmWorkers int

	// bindMu serializes binds, which share the constant-buffer pool.
	bindMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// NewDevice creates a Device on gpu. The caller keeps ownership of gpu.
func NewDevice(gpu gpucore.Device, opts ...DeviceOption) (*Device, error) {
	if gpu == nil {
		return nil, ErrNilDevice
	}
	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var poolOpts []gpucore.PoolOption
	if o.pageSize > 0 {
		poolOpts = append(poolOpts, gpucore.WithPageSize(o.pageSize))
	}
	d := &Device{
		gpu:            gpu,
		label:          o.label,
		session:        reflection.NewSession(),
		layouts:        binding.NewLayoutCache(gpu, o.layoutCapacity),
		pool:           gpucore.NewConstantBufferPool(gpu, poolOpts...),
		prewarmWorkers: o.prewarmWorkers,
	}
	if !o.disablePrograms {
		d.programs = binding.NewProgramCache(o.programCapacity)
	}
	d.binder = binding.Binder{
		Device:      gpu,
		Allocator:   d.pool,
		Specializer: o.specializer,
		Programs:    d.programs,
		Label:       o.label,
	}
	slogger().Debug("rhi: device created", "label", o.label, "gpu", gpu.Name())
	return d, nil
}

// Open opens a GPU device on the named backend and creates a Device that
// owns it.
func Open(name string, opts ...DeviceOption) (*Device, error) {
	return open(func(cfg backend.Config) (gpucore.Device, error) {
		return backend.Open(name, cfg)
	}, opts)
}

// OpenDefault opens the best available backend: native, then webgpu, then
// the in-memory recording device.
func OpenDefault(opts ...DeviceOption) (*Device, error) {
	return open(backend.OpenDefault, opts)
}

func open(openGPU func(backend.Config) (gpucore.Device, error), opts []DeviceOption) (*Device, error) {
	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	gpu, err := openGPU(backend.Config{Label: o.label, Logger: Logger()})
	if err != nil {
		return nil, err
	}
	d, err := NewDevice(gpu, opts...)
	if err != nil {
		gpu.Destroy()
		return nil, err
	}
	d.ownsGPU = true
	return d, nil
}

// GPU returns the backend device.
func (d *Device) GPU() gpucore.Device { return d.gpu }

// Session returns the reflection session of the Device. Programs and types
// built in it share layouts through the layout cache.
func (d *Device) Session() *reflection.Session { return d.session }

func (d *Device) checkOpen() error {
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Layout returns the cached layout of objects of type tl in session s.
func (d *Device) Layout(s *reflection.Session, tl *reflection.TypeLayout) (*binding.ShaderObjectLayout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.layouts.Layout(s, tl)
}

// RootLayout returns the cached layout of program p.
func (d *Device) RootLayout(p *reflection.Program) (*binding.RootShaderObjectLayout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.layouts.RootLayout(p)
}

// NewObject creates a shader object of type tl in session s.
func (d *Device) NewObject(s *reflection.Session, tl *reflection.TypeLayout) (*binding.ShaderObject, error) {
	l, err := d.Layout(s, tl)
	if err != nil {
		return nil, err
	}
	return binding.NewShaderObject(l, &d.ids), nil
}

// NewRootObject creates the root object of program p.
func (d *Device) NewRootObject(p *reflection.Program) (*binding.RootShaderObject, error) {
	l, err := d.RootLayout(p)
	if err != nil {
		return nil, err
	}
	return binding.NewRootShaderObject(l, &d.ids), nil
}

// Bind realizes the bind groups of root. The returned data is valid until
// the next BeginFrame; release it once the GPU is done with it.
func (d *Device) Bind(root *binding.RootShaderObject) (*binding.BindingData, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	d.bindMu.Lock()
	defer d.bindMu.Unlock()
	return d.binder.BindRoot(root)
}

// BeginFrame recycles the constant-buffer pool. Objects re-upload their
// ordinary data on their next bind.
func (d *Device) BeginFrame() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.bindMu.Lock()
	d.pool.Reset()
	d.bindMu.Unlock()
}

// Prewarm builds the layouts of types ahead of first use.
func (d *Device) Prewarm(s *reflection.Session, types []*reflection.TypeLayout) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.layouts.Prewarm(s, types, d.prewarmWorkers)
}

// Stats reports cache and pool counters.
type Stats struct {
	Layouts     cache.Stats
	RootLayouts cache.Stats
	Programs    cache.Stats
	Pool        gpucore.PoolStats
}

// Stats returns a snapshot of the Device counters.
func (d *Device) Stats() Stats {
	s := Stats{
		Layouts:     d.layouts.TypeStats(),
		RootLayouts: d.layouts.RootStats(),
		Pool:        d.pool.Stats(),
	}
	if d.programs != nil {
		s.Programs = d.programs.Stats()
	}
	return s
}

// Close releases the caches and the pool, then the GPU device if the Device
// opened it. Objects and binding data created earlier must not be used
// afterwards. Close is idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if d.programs != nil {
		d.programs.Release()
	}
	d.layouts.Release()
	d.pool.Destroy()
	if d.ownsGPU {
		d.gpu.Destroy()
	}
	slogger().Info("rhi: device closed", "label", d.label)
}

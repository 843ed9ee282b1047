package recording

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/backend"
	"github.com/gogpu/rhi/gpucore"
)

func init() {
	backend.Register(backend.BackendRecording, func(cfg backend.Config) (gpucore.Device, error) {
		return New(WithLabel(cfg.Label)), nil
	})
}

// Op identifies a recorded device call.
type Op uint8

const (
	OpCreateBuffer Op = iota
	OpWriteBuffer
	OpDestroyBuffer
	OpCreateBindGroupLayout
	OpDestroyBindGroupLayout
	OpCreatePipelineLayout
	OpDestroyPipelineLayout
	OpCreateBindGroup
	OpDestroyBindGroup
)

var opNames = [...]string{
	OpCreateBuffer:           "CreateBuffer",
	OpWriteBuffer:            "WriteBuffer",
	OpDestroyBuffer:          "DestroyBuffer",
	OpCreateBindGroupLayout:  "CreateBindGroupLayout",
	OpDestroyBindGroupLayout: "DestroyBindGroupLayout",
	OpCreatePipelineLayout:   "CreatePipelineLayout",
	OpDestroyPipelineLayout:  "DestroyPipelineLayout",
	OpCreateBindGroup:        "CreateBindGroup",
	OpDestroyBindGroup:       "DestroyBindGroup",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Command is one recorded device call.
type Command struct {
	Op    Op
	ID    uint64
	Label string

	// Offset and Size describe WriteBuffer calls.
	Offset uint64
	Size   uint64
}

// Option configures a Device.
type Option func(*Device)

// WithLabel sets the device name suffix.
func WithLabel(label string) Option {
	return func(d *Device) { d.label = label }
}

// Device is an in-memory gpucore.Device. It keeps every descriptor it is
// given, validates bind groups against their layouts, and records all calls
// so tests can inspect what the binding engine produced.
//
// Thread Safety: Device is safe for concurrent use.
type Device struct {
	label string

	mu              sync.RWMutex
	buffers         map[gpucore.BufferID][]byte
	layouts         map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc
	pipelineLayouts map[gpucore.PipelineLayoutID]gpucore.PipelineLayoutDesc
	bindGroups      map[gpucore.BindGroupID]gpucore.BindGroupDesc
	commands        []Command
	failures        map[Op]error

	nextID atomic.Uint64
}

// New creates an empty recording device.
func New(opts ...Option) *Device {
	d := &Device{
		buffers:         make(map[gpucore.BufferID][]byte),
		layouts:         make(map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc),
		pipelineLayouts: make(map[gpucore.PipelineLayoutID]gpucore.PipelineLayoutDesc),
		bindGroups:      make(map[gpucore.BindGroupID]gpucore.BindGroupDesc),
		failures:        make(map[Op]error),
	}
	d.nextID.Store(1)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// newID allocates the next object ID. IDs are shared by all object kinds
// so that a misrouted ID is never valid by accident.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// Name implements gpucore.Device.
func (d *Device) Name() string {
	if d.label == "" {
		return backend.BackendRecording
	}
	return backend.BackendRecording + ":" + d.label
}

// FailOn makes every later call of op return err. A nil err clears it.
func (d *Device) FailOn(op Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// record appends a command and returns the injected failure for op.
// Callers hold d.mu.
func (d *Device) record(c Command) error {
	if err := d.failures[c.Op]; err != nil {
		return err
	}
	d.commands = append(d.commands, c)
	return nil
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.BufferID(d.newID())
	if err := d.record(Command{Op: OpCreateBuffer, ID: uint64(id), Label: desc.Label, Size: desc.Size}); err != nil {
		return gpucore.InvalidID, err
	}
	d.buffers[id] = make([]byte, desc.Size)
	return id, nil
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidID, id)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("recording: write of %d bytes at %d overflows buffer %d of %d bytes",
			len(data), offset, id, len(buf))
	}
	if err := d.record(Command{Op: OpWriteBuffer, ID: uint64(id), Offset: offset, Size: uint64(len(data))}); err != nil {
		return err
	}
	copy(buf[offset:], data)
	return nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[id]; !ok {
		return
	}
	delete(d.buffers, id)
	_ = d.record(Command{Op: OpDestroyBuffer, ID: uint64(id)})
}

// CreateBindGroupLayout implements gpucore.Device.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return gpucore.InvalidID, fmt.Errorf("recording: layout %q binds %d twice", desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	if err := d.record(Command{Op: OpCreateBindGroupLayout, ID: uint64(id), Label: desc.Label}); err != nil {
		return gpucore.InvalidID, err
	}
	d.layouts[id] = gpucore.BindGroupLayoutDesc{Label: desc.Label, Entries: slices.Clone(desc.Entries)}
	return id, nil
}

// DestroyBindGroupLayout implements gpucore.Device.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.layouts[id]; !ok {
		return
	}
	delete(d.layouts, id)
	_ = d.record(Command{Op: OpDestroyBindGroupLayout, ID: uint64(id)})
}

// CreatePipelineLayout implements gpucore.Device.
func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range desc.BindGroupLayouts {
		if _, ok := d.layouts[l]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d at group %d", gpucore.ErrInvalidID, l, i)
		}
	}
	id := gpucore.PipelineLayoutID(d.newID())
	if err := d.record(Command{Op: OpCreatePipelineLayout, ID: uint64(id), Label: desc.Label}); err != nil {
		return gpucore.InvalidID, err
	}
	d.pipelineLayouts[id] = gpucore.PipelineLayoutDesc{Label: desc.Label, BindGroupLayouts: slices.Clone(desc.BindGroupLayouts)}
	return id, nil
}

// DestroyPipelineLayout implements gpucore.Device.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelineLayouts[id]; !ok {
		return
	}
	delete(d.pipelineLayouts, id)
	_ = d.record(Command{Op: OpDestroyPipelineLayout, ID: uint64(id)})
}

// CreateBindGroup implements gpucore.Device. Every entry must name a binding
// declared by the layout.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	layout, ok := d.layouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrInvalidID, desc.Layout)
	}
	for _, e := range desc.Entries {
		if !slices.ContainsFunc(layout.Entries, func(le gputypes.BindGroupLayoutEntry) bool { return le.Binding == e.Binding }) {
			return gpucore.InvalidID, fmt.Errorf("recording: bind group %q sets binding %d not in layout %q",
				desc.Label, e.Binding, layout.Label)
		}
	}
	id := gpucore.BindGroupID(d.newID())
	if err := d.record(Command{Op: OpCreateBindGroup, ID: uint64(id), Label: desc.Label}); err != nil {
		return gpucore.InvalidID, err
	}
	d.bindGroups[id] = gpucore.BindGroupDesc{Label: desc.Label, Layout: desc.Layout, Entries: slices.Clone(desc.Entries)}
	return id, nil
}

// DestroyBindGroup implements gpucore.Device.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.bindGroups[id]; !ok {
		return
	}
	delete(d.bindGroups, id)
	_ = d.record(Command{Op: OpDestroyBindGroup, ID: uint64(id)})
}

// Destroy implements gpucore.Device.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.bindGroups)
	clear(d.pipelineLayouts)
	clear(d.layouts)
	clear(d.buffers)
}

package rhi

import (
	"testing"

	"github.com/gogpu/rhi/reflection"
)

func TestDefaultDeviceOptions(t *testing.T) {
	o := defaultDeviceOptions()
	if o.label != "rhi" {
		t.Errorf("label = %q, want %q", o.label, "rhi")
	}
	if o.disablePrograms {
		t.Error("program cache should be enabled by default")
	}
	if o.prewarmWorkers <= 0 {
		t.Errorf("prewarmWorkers = %d, want positive", o.prewarmWorkers)
	}
}

func TestDeviceOptions(t *testing.T) {
	spec := &reflection.Compiler{}
	o := defaultDeviceOptions()
	for _, opt := range []DeviceOption{
		WithLabel("scene"),
		WithLayoutCacheCapacity(32),
		WithProgramCacheCapacity(8),
		WithSpecializer(spec),
		WithConstantBufferPageSize(4096),
		WithPrewarmWorkers(3),
	} {
		opt(&o)
	}

	if o.label != "scene" {
		t.Errorf("label = %q", o.label)
	}
	if o.layoutCapacity != 32 || o.programCapacity != 8 {
		t.Errorf("capacities = %d, %d", o.layoutCapacity, o.programCapacity)
	}
	if o.specializer != spec {
		t.Error("specializer not applied")
	}
	if o.pageSize != 4096 || o.prewarmWorkers != 3 {
		t.Errorf("pageSize = %d, prewarmWorkers = %d", o.pageSize, o.prewarmWorkers)
	}
}

func TestDeviceOptionsIgnoreInvalid(t *testing.T) {
	o := defaultDeviceOptions()
	WithLabel("")(&o)
	WithPrewarmWorkers(-1)(&o)
	if o.label != "rhi" || o.prewarmWorkers != 4 {
		t.Errorf("invalid options changed defaults: %+v", o)
	}

	WithProgramCacheCapacity(0)(&o)
	if !o.disablePrograms {
		t.Error("zero program cache capacity should disable the cache")
	}
}

func TestDeviceUsesSpecializer(t *testing.T) {
	spec := &reflection.Compiler{}
	d, _ := newTestDevice(t, WithSpecializer(spec), WithLabel("custom"))
	if d.binder.Specializer != spec {
		t.Error("binder does not use the configured specializer")
	}
	if d.binder.Label != "custom" {
		t.Errorf("binder label = %q", d.binder.Label)
	}
}

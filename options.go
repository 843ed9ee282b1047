package rhi

import "github.com/gogpu/rhi/binding"

// DeviceOption configures a Device during creation.
//
// Example:
//
//	dev, err := rhi.NewDevice(gpu,
//	    rhi.WithLayoutCacheCapacity(512),
//	    rhi.WithConstantBufferPageSize(64<<10),
//	)
type DeviceOption func(*deviceOptions)

type deviceOptions struct {
	label           string
	layoutCapacity  int
	programCapacity int
	pageSize        uint64
	prewarmWorkers  int
	specializer     binding.Specializer
	disablePrograms bool
}

func defaultDeviceOptions() deviceOptions {
	return deviceOptions{
		label:           "rhi",
		programCapacity: 256,
		prewarmWorkers:  4,
	}
}

// WithLabel sets the label prefix of the objects the Device creates.
func WithLabel(label string) DeviceOption {
	return func(o *deviceOptions) {
		if label != "" {
			o.label = label
		}
	}
}

// WithLayoutCacheCapacity sets how many layouts the Device keeps per shard
// before evicting. Zero or negative uses the cache default.
func WithLayoutCacheCapacity(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.layoutCapacity = n
	}
}

// WithProgramCacheCapacity sets how many specialized program layouts are
// cached. Zero disables the cache, keeping specializations on each root
// object instead.
func WithProgramCacheCapacity(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.programCapacity = n
		o.disablePrograms = n <= 0
	}
}

// WithSpecializer replaces the reference reflection.Compiler used to
// resolve interface-typed parameters.
func WithSpecializer(s binding.Specializer) DeviceOption {
	return func(o *deviceOptions) {
		o.specializer = s
	}
}

// WithConstantBufferPageSize sets the page size of the constant-buffer pool.
func WithConstantBufferPageSize(n uint64) DeviceOption {
	return func(o *deviceOptions) {
		o.pageSize = n
	}
}

// WithPrewarmWorkers sets how many goroutines Prewarm uses.
func WithPrewarmWorkers(n int) DeviceOption {
	return func(o *deviceOptions) {
		if n > 0 {
			o.prewarmWorkers = n
		}
	}
}

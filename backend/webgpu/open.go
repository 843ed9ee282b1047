//go:build !nowebgpu

package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/rhi/backend"
	"github.com/gogpu/rhi/gpucore"
)

func init() {
	backend.Register(backend.BackendWebGPU, func(cfg backend.Config) (gpucore.Device, error) {
		if cfg.Logger != nil {
			SetLogger(cfg.Logger)
		}
		return Open(cfg)
	})
}

// Open creates a headless wgpu-native device. Its instance, adapter and
// device are released with the returned Device.
func Open(cfg backend.Config) (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w", ErrNoAdapter, err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: cfg.Label})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", err)
	}
	queue := device.GetQueue()

	d, err := NewDevice(device, queue, cfg.Label)
	if err != nil {
		return nil, err
	}
	d.release = func() {
		queue.Release()
		device.Release()
		adapter.Release()
		instance.Release()
	}
	slogger().Info("webgpu: device opened", "device", d.name)
	return d, nil
}

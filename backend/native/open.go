//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/backend"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/wgpu/hal"
)

func init() {
	backend.Register(backend.BackendNative, func(cfg backend.Config) (gpucore.Device, error) {
		if cfg.Logger != nil {
			SetLogger(cfg.Logger)
		}
		return Open(cfg)
	})
}

// halProvider is implemented by device providers that expose their HAL
// objects, such as gogpu windows.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewFromProvider adopts the device and queue of a gpucontext provider. The
// provider keeps ownership of them.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALProvider)
	}
	d, err := NewDevice(device, queue, "native (shared)")
	if err != nil {
		return nil, err
	}
	slogger().Debug("native: adopted provider device")
	return d, nil
}

// Open creates a standalone device on the HAL backend named by cfg.Variant,
// Vulkan when unset. Discrete and integrated adapters are preferred. The
// device and instance are destroyed with the returned Device.
func Open(cfg backend.Config) (*Device, error) {
	var unset gputypes.Backend
	variant := cfg.Variant
	if variant == unset {
		variant = gputypes.BackendVulkan
	}
	hb, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBackend, variant)
	}
	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}

	name := cfg.Label
	if name == "" {
		name = selected.Info.Name
	}
	d, err := NewDevice(openDev.Device, openDev.Queue, name)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	slogger().Info("native: device opened", "adapter", selected.Info.Name, "backend", variant)
	return d, nil
}

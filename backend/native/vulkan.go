//go:build !nogpu && !novulkan

package native

import (
	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

package rhi

import (
	// Built-in backends register themselves with the backend registry.
	_ "github.com/gogpu/rhi/backend/native"
	_ "github.com/gogpu/rhi/backend/recording"
	_ "github.com/gogpu/rhi/backend/webgpu"
)

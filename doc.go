// Package rhi binds shader parameters to GPU binding objects.
//
// # Overview
//
// rhi maps the parameters a shader declares (uniforms, textures, buffers,
// samplers, nested constant buffers, parameter blocks and interface-typed
// fields) onto bind groups, then turns application-written parameter
// objects into the bind groups of a draw or dispatch.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/rhi"
//	    "github.com/gogpu/rhi/binding"
//	    "github.com/gogpu/rhi/reflection"
//	)
//
//	dev, err := rhi.OpenDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	prog, err := reflection.FromWGSL(dev.Session(), "lit", source)
//	root, err := dev.NewRootObject(prog)
//
//	off, _ := root.FieldOffset("time")
//	binding.SetScalar(&root.ShaderObject, off, float32(0.5))
//
//	data, err := dev.Bind(root)
//	defer data.Release()
//
// # Architecture
//
//   - reflection: the parameter description of a program
//   - binding: layouts, shader objects and the bind traversal
//   - gpucore: the device interface and the constant-buffer pool
//   - backend: device registry with native, webgpu and recording devices
//   - cache: sharded LRU cache behind the layout and program caches
//
// # Logging
//
// rhi is silent by default. Call SetLogger to route diagnostics from every
// sub-package to a slog.Logger.
package rhi

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package binding maps shader parameters onto bind groups.
//
// A ShaderObjectLayout is computed once per type from reflection by a
// LayoutBuilder. It records how the type's parameters split into binding
// ranges, which of them hold nested objects, and the bind group layout
// entries the type needs. Layouts are immutable and shared; LayoutCache
// keeps one per type.
//
// A ShaderObject holds the values of one parameter object:
//
//	obj := binding.NewShaderObject(layout, ids)
//	_ = binding.SetValue(obj, binding.ShaderOffset{UniformOffset: 0}, &mvp)
//	_ = obj.SetBinding(binding.ShaderOffset{BindingRangeIndex: 0}, binding.TextureBinding(view))
//
// Binding walks a RootShaderObject and everything it references and writes
// bind group entries:
//
//   - the ordinary data of an object bound as a constant buffer goes into a
//     uniform buffer at the first binding, followed by its resources
//   - each parameter block gets bind groups of its own, allocated in
//     traversal order after all earlier ones
//   - resources of values bound to existential fields go to the pending
//     bindings, after all primary bindings of the enclosing scope
//
// Programs with existential parameters are specialized on first bind with
// the concrete types of the bound objects. The specialized layout is kept on
// the root object, and in a ProgramCache when the Binder has one.
//
// Objects are not safe for concurrent use. Layouts and caches are.
package binding

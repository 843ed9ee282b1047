// Command rhilayout prints the binding layout of a WGSL program and,
// optionally, the bind groups a sample bind produces.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/backend"
	"github.com/gogpu/rhi/backend/recording"
	"github.com/gogpu/rhi/binding"
	"github.com/gogpu/rhi/gpucore"
	"github.com/gogpu/rhi/reflection"
)

const sampleWGSL = `
struct Camera {
    view_proj: mat4x4<f32>,
    eye: vec4<f32>,
}

struct Material {
    tint: vec4<f32>,
    roughness: f32,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var shadow_map: texture_depth_2d;
@group(0) @binding(2) var shadow_sampler: sampler_comparison;
@group(1) @binding(0) var<uniform> material: Material;
@group(1) @binding(1) var albedo: texture_2d<f32>;
@group(1) @binding(2) var albedo_sampler: sampler;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return camera.view_proj * vec4<f32>(f32(i), 0.0, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) p: vec4<f32>) -> @location(0) vec4<f32> {
    let c = textureSample(albedo, albedo_sampler, p.xy);
    return c * material.tint;
}
`

func main() {
	var (
		input   = flag.String("wgsl", "", "WGSL source file (default: built-in sample)")
		name    = flag.String("name", "program", "program name")
		bk      = flag.String("backend", backend.BackendRecording, "device backend")
		bind    = flag.Bool("bind", false, "bind sample values and print the bind groups (recording backend only)")
		verbose = flag.Bool("v", false, "debug logging to stderr")
	)
	flag.Parse()

	if *verbose {
		rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	source := sampleWGSL
	if *input != "" {
		b, err := os.ReadFile(*input)
		if err != nil {
			log.Fatalf("read %s: %v", *input, err)
		}
		source = string(b)
	}

	dev, err := rhi.Open(*bk, rhi.WithLabel("rhilayout"))
	if err != nil {
		log.Fatalf("open %s: %v", *bk, err)
	}
	defer dev.Close()

	if err := run(os.Stdout, dev, *name, source, *bind); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer, dev *rhi.Device, name, source string, bind bool) error {
	prog, err := reflection.FromWGSL(dev.Session(), name, source)
	if err != nil {
		return err
	}
	root, err := dev.NewRootObject(prog)
	if err != nil {
		return err
	}
	defer root.Release()
	fmt.Fprint(w, root.RootLayout())

	if !bind {
		return nil
	}
	gpu, ok := dev.GPU().(*recording.Device)
	if !ok {
		return fmt.Errorf("-bind needs the %s backend, have %s", backend.BackendRecording, dev.GPU().Name())
	}
	f := filler{gpu: gpu}
	if err := f.fill(&root.ShaderObject); err != nil {
		return err
	}
	for i := range root.EntryPointCount() {
		if err := f.fill(root.EntryPoint(i)); err != nil {
			return err
		}
	}

	data, err := dev.Bind(root)
	if err != nil {
		return err
	}
	defer data.Release()
	printBindGroups(w, gpu, data)
	return nil
}

// filler writes sample values into an object tree.
type filler struct {
	gpu *recording.Device
	ids binding.IdentityCounter
}

func (f *filler) fill(o *binding.ShaderObject) error {
	if n := len(o.Data()); n > 0 {
		if err := o.SetData(binding.ShaderOffset{}, sampleData(n)); err != nil {
			return err
		}
	}

	l := o.Layout()
	for i := range l.BindingRangeCount() {
		r := l.BindingRange(i)
		if r.Type.CarriesSubObject() {
			continue
		}
		for k := range r.Count {
			b, err := f.resource(r.Type)
			if err != nil {
				return err
			}
			if b.IsZero() {
				continue
			}
			off := binding.ShaderOffset{BindingRangeIndex: i, BindingArrayIndex: k}
			if err := o.SetBinding(off, b); err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
		}
	}

	for i := range l.SubObjectRangeCount() {
		sub := l.SubObjectRange(i)
		sl, ok := sub.Layout.Layout()
		if !ok {
			// interface-typed fields need a concrete object from the caller
			continue
		}
		r := l.BindingRange(sub.BindingRangeIndex)
		if !r.Type.CarriesSubObject() {
			// structured buffer elements are described, not stored
			continue
		}
		for k := range r.Count {
			child := binding.NewShaderObject(sl, &f.ids)
			if err := f.fill(child); err != nil {
				return err
			}
			off := binding.ShaderOffset{BindingRangeIndex: sub.BindingRangeIndex, BindingArrayIndex: k}
			if err := o.SetObject(off, child); err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
		}
	}
	return nil
}

func (f *filler) resource(t reflection.BindingType) (binding.Binding, error) {
	switch t {
	case reflection.BindingTypeTexture, reflection.BindingTypeMutableTexture, reflection.BindingTypeInputRenderTarget:
		return binding.TextureBinding(f.gpu.NewTextureView()), nil
	case reflection.BindingTypeSampler:
		return binding.SamplerBinding(f.gpu.NewSampler()), nil
	case reflection.BindingTypeRawBuffer, reflection.BindingTypeMutableRawBuffer,
		reflection.BindingTypeTypedBuffer, reflection.BindingTypeMutableTypedBuffer:
		buf, err := f.gpu.CreateBuffer(&gpucore.BufferDesc{Label: "sample", Size: 256, Usage: gpucore.ConstantBufferUsage})
		if err != nil {
			return binding.Binding{}, err
		}
		return binding.BufferBinding(buf), nil
	}
	return binding.Binding{}, nil
}

// sampleData returns n bytes of a perspective camera matrix, repeated.
func sampleData(n int) []byte {
	m := mgl32.Perspective(mgl32.DegToRad(45), 16.0/9.0, 0.1, 100).
		Mul4(mgl32.LookAtV(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
	out := make([]byte, 0, n+len(m)*4)
	for len(out) < n {
		for _, v := range m {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out[:n]
}

func printBindGroups(w io.Writer, gpu *recording.Device, data *binding.BindingData) {
	fmt.Fprintf(w, "pipeline layout %d\n", data.PipelineLayout)
	for g, id := range data.BindGroups {
		desc, ok := gpu.BindGroup(id)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "group %d (%s)\n", g, desc.Label)
		for _, e := range desc.Entries {
			switch {
			case e.Buffer != gpucore.InvalidID:
				fmt.Fprintf(w, "  %d: buffer %d [%d, +%d)\n", e.Binding, e.Buffer, e.Offset, e.Size)
			case e.TextureView != gpucore.InvalidID:
				fmt.Fprintf(w, "  %d: texture view %d\n", e.Binding, e.TextureView)
			case e.Sampler != gpucore.InvalidID:
				fmt.Fprintf(w, "  %d: sampler %d\n", e.Binding, e.Sampler)
			}
		}
	}
}

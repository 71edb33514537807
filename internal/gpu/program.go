package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	polyoutline "github.com/mache102/gl-poly-outline"
)

// Program errors.
var (
	// ErrUnknownUniform is returned by SetUniform for a name the program
	// does not declare.
	ErrUnknownUniform = errors.New("gpu: unknown uniform")

	// ErrUniformType is returned by SetUniform when the value does not
	// match the declared size of the uniform.
	ErrUniformType = errors.New("gpu: uniform value does not match declaration")

	// ErrUnknownAttribute is returned by AttributeSlot for an undeclared
	// vertex attribute.
	ErrUnknownAttribute = errors.New("gpu: unknown vertex attribute")

	// ErrNoTexture is returned by Use when the program samples a texture
	// that was never bound.
	ErrNoTexture = errors.New("gpu: program texture not bound")
)

// CompileError reports a WGSL program that failed to parse, lower or
// validate.
type CompileError struct {
	Label string
	Stage string // "parse", "lower", "validate" or "module"
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: compile %s: %s: %v", e.Label, e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// UniformField is a named member of a program's uniform block.
type UniformField struct {
	Name   string
	Offset uint32
	Size   uint32
}

// AttributeBinding names the vertex buffer slot an attribute is read from.
type AttributeBinding struct {
	Name string
	Slot uint32
}

// ProgramDescriptor describes a render program: one WGSL module with a
// vs_main/fs_main pair, a uniform block at binding 0 and an optional
// signed-integer 2D texture at binding 1.
type ProgramDescriptor struct {
	Label  string
	Source string

	UniformSize uint32
	Uniforms    []UniformField

	Attributes []AttributeBinding
	Buffers    []gputypes.VertexBufferLayout

	// Texture adds a texture_2d<i32> binding at index 1.
	Texture bool

	TargetFormat gputypes.TextureFormat
	SampleCount  uint32
}

// Program is a compiled render pipeline with a CPU-side uniform block.
// SetUniform only touches the CPU copy; Use flushes it when dirty.
type Program struct {
	device hal.Device
	queue  hal.Queue
	label  string

	shader       hal.ShaderModule
	bindLayout   hal.BindGroupLayout
	pipeLayout   hal.PipelineLayout
	pipeline     hal.RenderPipeline
	uniformBuf   hal.Buffer
	bindGroup    hal.BindGroup
	needsTexture bool
	boundTexture hal.TextureView

	uniforms   map[string]UniformField
	attributes map[string]uint32
	block      []byte
	dirty      bool
}

// ValidateWGSL runs the naga front end over source: parse, lower to IR and
// validate. Errors are returned as *CompileError.
func ValidateWGSL(label, source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return &CompileError{Label: label, Stage: "parse", Err: err}
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return &CompileError{Label: label, Stage: "lower", Err: err}
	}
	problems, err := naga.Validate(module)
	if err != nil {
		return &CompileError{Label: label, Stage: "validate", Err: err}
	}
	if len(problems) > 0 {
		return &CompileError{Label: label, Stage: "validate", Err: problems[0]}
	}
	return nil
}

// CompileProgram validates desc.Source and creates the pipeline, layouts
// and uniform buffer.
func CompileProgram(device hal.Device, queue hal.Queue, desc *ProgramDescriptor) (*Program, error) {
	if desc.Source == "" {
		return nil, &CompileError{Label: desc.Label, Stage: "parse", Err: errors.New("empty source")}
	}
	if err := ValidateWGSL(desc.Label, desc.Source); err != nil {
		return nil, err
	}

	p := &Program{
		device:       device,
		queue:        queue,
		label:        desc.Label,
		needsTexture: desc.Texture,
		uniforms:     make(map[string]UniformField, len(desc.Uniforms)),
		attributes:   make(map[string]uint32, len(desc.Attributes)),
		block:        make([]byte, desc.UniformSize),
		dirty:        true,
	}
	for _, f := range desc.Uniforms {
		if f.Offset+f.Size > desc.UniformSize {
			return nil, fmt.Errorf("gpu: %s: uniform %q overruns block of %d bytes", desc.Label, f.Name, desc.UniformSize)
		}
		p.uniforms[f.Name] = f
	}
	for _, a := range desc.Attributes {
		p.attributes[a.Name] = a.Slot
	}

	if err := p.createPipeline(desc); err != nil {
		p.Destroy()
		return nil, err
	}
	slogger().Debug("gpu: program compiled", "label", desc.Label,
		"uniforms", len(desc.Uniforms), "attributes", len(desc.Attributes))
	return p, nil
}

// createPipeline creates the shader module, layouts, pipeline and uniform
// buffer.
func (p *Program) createPipeline(desc *ProgramDescriptor) error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label + "_shader",
		Source: hal.ShaderSource{WGSL: desc.Source},
	})
	if err != nil {
		return &CompileError{Label: desc.Label, Stage: "module", Err: err}
	}
	p.shader = shader

	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
	}
	if desc.Texture {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    1,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeSint,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create %s bind layout: %w", desc.Label, err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create %s pipeline layout: %w", desc.Label, err)
	}
	p.pipeLayout = pipeLayout

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label + "_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    desc.Buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    desc.TargetFormat,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: desc.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create %s pipeline: %w", desc.Label, err)
	}
	p.pipeline = pipeline

	uniformBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label + "_uniforms",
		Size:  uint64(desc.UniformSize),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create %s uniform buffer: %w", desc.Label, err)
	}
	p.uniformBuf = uniformBuf
	return nil
}

// SetUniform stores value in the CPU uniform block. Accepted values are
// float32, int32, uint32, bool, [2]float32, [4]float32, mgl32.Vec2,
// mgl32.Vec4 and polyoutline.Color (as a normalized vec4).
func (p *Program) SetUniform(name string, value any) error {
	f, ok := p.uniforms[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownUniform, p.label, name)
	}

	var words []uint32
	switch v := value.(type) {
	case float32:
		words = []uint32{math.Float32bits(v)}
	case int32:
		words = []uint32{uint32(v)}
	case uint32:
		words = []uint32{v}
	case bool:
		words = []uint32{0}
		if v {
			words[0] = 1
		}
	case [2]float32:
		words = floatWords(v[:])
	case [4]float32:
		words = floatWords(v[:])
	case mgl32.Vec2:
		words = floatWords(v[:])
	case mgl32.Vec4:
		words = floatWords(v[:])
	case polyoutline.Color:
		n := v.Normalized()
		words = floatWords(n[:])
	default:
		return fmt.Errorf("%w: %s.%s: unsupported type %T", ErrUniformType, p.label, name, value)
	}
	if uint32(len(words))*4 != f.Size {
		return fmt.Errorf("%w: %s.%s is %d bytes, got %T", ErrUniformType, p.label, name, f.Size, value)
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(p.block[f.Offset+uint32(i)*4:], w)
	}
	p.dirty = true
	return nil
}

func floatWords(vs []float32) []uint32 {
	words := make([]uint32, len(vs))
	for i, v := range vs {
		words[i] = math.Float32bits(v)
	}
	return words
}

// AttributeSlot returns the vertex buffer slot of the named attribute.
func (p *Program) AttributeSlot(name string) (uint32, error) {
	slot, ok := p.attributes[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, p.label, name)
	}
	return slot, nil
}

// BindTexture sets the texture read at binding 1. The bind group is
// rebuilt on the next Use.
func (p *Program) BindTexture(view hal.TextureView) {
	if p.boundTexture == view {
		return
	}
	p.boundTexture = view
	p.releaseBindGroup()
}

// Use flushes the uniform block if needed and binds the pipeline and its
// bind group on rp.
func (p *Program) Use(rp hal.RenderPassEncoder) error {
	if err := p.flush(); err != nil {
		return err
	}
	if err := p.ensureBindGroup(); err != nil {
		return err
	}
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	return nil
}

// flush writes the uniform block to the GPU when it changed.
func (p *Program) flush() error {
	if !p.dirty {
		return nil
	}
	if err := p.queue.WriteBuffer(p.uniformBuf, 0, p.block); err != nil {
		return fmt.Errorf("write %s uniforms: %w", p.label, err)
	}
	p.dirty = false
	return nil
}

func (p *Program) ensureBindGroup() error {
	if p.bindGroup != nil {
		return nil
	}
	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.BufferBinding{
			Buffer: p.uniformBuf.NativeHandle(), Offset: 0, Size: uint64(len(p.block)),
		}},
	}
	if p.needsTexture {
		if p.boundTexture == nil {
			return fmt.Errorf("%w: %s", ErrNoTexture, p.label)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  1,
			Resource: gputypes.TextureViewBinding{TextureView: p.boundTexture.NativeHandle()},
		})
	}
	bindGroup, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.label + "_bind",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create %s bind group: %w", p.label, err)
	}
	p.bindGroup = bindGroup
	return nil
}

func (p *Program) releaseBindGroup() {
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
}

// Destroy releases all GPU objects in reverse creation order. Safe to call
// multiple times.
func (p *Program) Destroy() {
	if p.device == nil {
		return
	}
	p.releaseBindGroup()
	if p.uniformBuf != nil {
		p.device.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

package gpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	polyoutline "github.com/mache102/gl-poly-outline"
)

const testProgramWGSL = `
struct Uniforms {
    tint: vec4<f32>,
    scale: f32,
    flags: u32,
    _pad0: f32,
    _pad1: f32,
}

@group(0) @binding(0) var<uniform> u: Uniforms;

@vertex
fn vs_main(@location(0) pos: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos * u.scale, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return u.tint;
}
`

func testProgramDesc() *ProgramDescriptor {
	return &ProgramDescriptor{
		Label:       "test",
		Source:      testProgramWGSL,
		UniformSize: 32,
		Uniforms: []UniformField{
			{Name: "tint", Offset: 0, Size: 16},
			{Name: "scale", Offset: 16, Size: 4},
			{Name: "flags", Offset: 20, Size: 4},
		},
		Attributes: []AttributeBinding{{Name: "pos", Slot: 0}},
		Buffers: []gputypes.VertexBufferLayout{{
			ArrayStride: 8,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		}},
		TargetFormat: TargetFormat,
		SampleCount:  1,
	}
}

func compileTestProgram(t *testing.T) (*Program, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	p, err := CompileProgram(device, queue, testProgramDesc())
	if err != nil {
		cleanup()
		skipOnNagaLimitation(t, err)
		t.Fatalf("CompileProgram: %v", err)
	}
	return p, func() {
		p.Destroy()
		cleanup()
	}
}

func TestCompileProgramInvalidSource(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name   string
		source string
	}{
		{"empty", ""},
		{"syntax", "fn vs_main( -> {"},
		{"undefined identifier", "@fragment fn fs_main() -> @location(0) vec4<f32> { return missing; }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := testProgramDesc()
			desc.Source = tt.source
			_, err := CompileProgram(device, queue, desc)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *CompileError", err)
			}
			if ce.Label != "test" || ce.Stage == "" {
				t.Errorf("CompileError = %+v", ce)
			}
		})
	}
}

func TestCompileProgramUniformOverrun(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	desc := testProgramDesc()
	desc.Uniforms = append(desc.Uniforms, UniformField{Name: "big", Offset: 24, Size: 16})
	if _, err := CompileProgram(device, queue, desc); err == nil {
		t.Fatal("expected error for uniform past the block")
	}
}

func TestProgramSetUniform(t *testing.T) {
	p, done := compileTestProgram(t)
	defer done()

	if err := p.SetUniform("tint", polyoutline.RGB(255, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := p.SetUniform("scale", float32(2.5)); err != nil {
		t.Fatal(err)
	}
	if err := p.SetUniform("flags", true); err != nil {
		t.Fatal(err)
	}

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(p.block[off:])) }
	if f(0) != 1 || f(4) != 0 || f(12) != 1 {
		t.Errorf("tint = %v %v %v %v", f(0), f(4), f(8), f(12))
	}
	if f(16) != 2.5 {
		t.Errorf("scale = %v, want 2.5", f(16))
	}
	if binary.LittleEndian.Uint32(p.block[20:]) != 1 {
		t.Error("flags not set")
	}

	if err := p.SetUniform("tint", mgl32.Vec4{0, 0, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if f(8) != 1 {
		t.Errorf("tint.b = %v after Vec4 update", f(8))
	}
}

func TestProgramSetUniformErrors(t *testing.T) {
	p, done := compileTestProgram(t)
	defer done()

	tests := []struct {
		name  string
		field string
		value any
		want  error
	}{
		{"unknown", "missing", float32(1), ErrUnknownUniform},
		{"size mismatch", "scale", mgl32.Vec2{1, 2}, ErrUniformType},
		{"unsupported type", "scale", 1.0, ErrUniformType},
		{"vec into scalar", "tint", float32(1), ErrUniformType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.SetUniform(tt.field, tt.value); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProgramAttributeSlot(t *testing.T) {
	p, done := compileTestProgram(t)
	defer done()

	if slot, err := p.AttributeSlot("pos"); err != nil || slot != 0 {
		t.Errorf("AttributeSlot(pos) = %d, %v", slot, err)
	}
	if _, err := p.AttributeSlot("normal"); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("err = %v, want ErrUnknownAttribute", err)
	}
}

func TestProgramUseFlushesUniforms(t *testing.T) {
	p, done := compileTestProgram(t)
	defer done()

	rp, end := beginPass(t, p.device)
	defer end()

	if err := p.SetUniform("scale", float32(4)); err != nil {
		t.Fatal(err)
	}
	if err := p.Use(rp); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if p.dirty {
		t.Error("uniform block still dirty after Use")
	}
	got := readBuffer(t, p.device, p.uniformBuf, 32)
	if math.Float32frombits(binary.LittleEndian.Uint32(got[16:])) != 4 {
		t.Errorf("uploaded scale = %v", got[16:20])
	}
	if p.bindGroup == nil {
		t.Error("bind group not created")
	}
}

func TestProgramUseRequiresTexture(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	desc := vstoreProgram()
	p, err := CompileProgram(device, queue, desc)
	if err != nil {
		skipOnNagaLimitation(t, err)
		var ce *CompileError
		if errors.As(err, &ce) {
			t.Skipf("Skipping: vstore shader rejected by naga: %v", err)
		}
		t.Fatal(err)
	}
	defer p.Destroy()

	rp, end := beginPass(t, device)
	defer end()
	if err := p.Use(rp); !errors.Is(err, ErrNoTexture) {
		t.Errorf("err = %v, want ErrNoTexture", err)
	}
}

func TestProgramDestroyIdempotent(t *testing.T) {
	p, done := compileTestProgram(t)
	defer done()
	p.Destroy()
	p.Destroy()
	if p.pipeline != nil || p.uniformBuf != nil {
		t.Error("Destroy left resources")
	}
}

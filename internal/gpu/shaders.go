package gpu

import (
	_ "embed"

	"github.com/gogpu/gputypes"
)

// Embedded WGSL shader sources.

//go:embed shaders/polygon.wgsl
var polygonShaderSource string

//go:embed shaders/vstore.wgsl
var vstoreShaderSource string

// Target defaults shared by both programs.
const (
	// SampleCount is the MSAA sample count of the color target.
	SampleCount = 4

	// TargetFormat is the resolved color format.
	TargetFormat = gputypes.TextureFormatBGRA8Unorm
)

// Uniform names shared by the attribute and vertex-store programs.
const (
	UniformOutlineColor = "outline_color"
	UniformWinres       = "winres"
	UniformOutlineSize  = "outline_size"
	UniformSmoothness   = "smoothness"
	UniformBlendFactor  = "blend_factor"
	UniformCoordScale   = "coord_scale"
	UniformTableWidth   = "table_width"
	UniformShowBounds   = "show_bounds"
)

const uniformBlockSize = 48

// polygonProgram describes the attribute pipeline: seven vertex buffers,
// one per attribute, and a uniform block mirroring Uniforms in
// polygon.wgsl.
func polygonProgram() *ProgramDescriptor {
	attrs := []struct {
		name   string
		format gputypes.VertexFormat
		stride uint64
	}{
		slotCoord:     {"coord", gputypes.VertexFormatSint16x2, 4},
		slotRotation:  {"rotation", gputypes.VertexFormatFloat32, 4},
		slotSize:      {"size", gputypes.VertexFormatFloat32, 4},
		slotOffset:    {"offset", gputypes.VertexFormatSint16x2, 4},
		slotDirection: {"outline_direction", gputypes.VertexFormatFloat32, 4},
		slotAttr:      {"attr", gputypes.VertexFormatUint32, 4},
		slotColor:     {"color", gputypes.VertexFormatUnorm8x4, 4},
	}

	desc := &ProgramDescriptor{
		Label:       "polygon",
		Source:      polygonShaderSource,
		UniformSize: uniformBlockSize,
		Uniforms: []UniformField{
			{Name: UniformOutlineColor, Offset: 0, Size: 16},
			{Name: UniformWinres, Offset: 16, Size: 8},
			{Name: UniformOutlineSize, Offset: 24, Size: 4},
			{Name: UniformSmoothness, Offset: 28, Size: 4},
			{Name: UniformBlendFactor, Offset: 32, Size: 4},
			{Name: UniformCoordScale, Offset: 36, Size: 4},
		},
		TargetFormat: TargetFormat,
		SampleCount:  SampleCount,
	}
	for slot, a := range attrs {
		desc.Attributes = append(desc.Attributes, AttributeBinding{Name: a.name, Slot: uint32(slot)})
		desc.Buffers = append(desc.Buffers, gputypes.VertexBufferLayout{
			ArrayStride: a.stride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: a.format, Offset: 0, ShaderLocation: uint32(slot)},
			},
		})
	}
	return desc
}

// vstoreProgram describes the vertex-store pipeline: one interleaved
// buffer of bounding-quad vertices and the polygon lookup texture.
func vstoreProgram() *ProgramDescriptor {
	return &ProgramDescriptor{
		Label:       "vstore",
		Source:      vstoreShaderSource,
		UniformSize: uniformBlockSize,
		Uniforms: []UniformField{
			{Name: UniformOutlineColor, Offset: 0, Size: 16},
			{Name: UniformWinres, Offset: 16, Size: 8},
			{Name: UniformOutlineSize, Offset: 24, Size: 4},
			{Name: UniformSmoothness, Offset: 28, Size: 4},
			{Name: UniformTableWidth, Offset: 32, Size: 4},
			{Name: UniformShowBounds, Offset: 36, Size: 4},
			{Name: UniformBlendFactor, Offset: 40, Size: 4},
		},
		Attributes: []AttributeBinding{
			{Name: "position", Slot: 0},
			{Name: "start", Slot: 0},
			{Name: "count", Slot: 0},
			{Name: "attr", Slot: 0},
			{Name: "color", Slot: 0},
		},
		Buffers: []gputypes.VertexBufferLayout{
			{
				ArrayStride: storeVertBytes,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatSint16x2, Offset: 0, ShaderLocation: 0},  // position
					{Format: gputypes.VertexFormatUint32, Offset: 4, ShaderLocation: 1},    // start
					{Format: gputypes.VertexFormatUint32, Offset: 8, ShaderLocation: 2},    // count
					{Format: gputypes.VertexFormatUint32, Offset: 12, ShaderLocation: 3},   // attr
					{Format: gputypes.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 4}, // color
				},
			},
		},
		Texture:      true,
		TargetFormat: TargetFormat,
		SampleCount:  SampleCount,
	}
}

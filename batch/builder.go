// Package batch packs polygons and circles into one flat vertex/index
// stream ready for a single indexed draw.
//
// Every polygon of N points expands to 9N vertices: N body vertices forming
// a triangle fan, N four-vertex rounded corner quads and N four-vertex edge
// quads. Each vertex carries an attribute value (see internal/attr) that
// selects its shading branch. Circles expand to a single four-vertex quad.
//
// Vertex fields are kept as parallel arrays so that a single field (the
// rotation) can be re-uploaded every frame without touching the rest.
package batch

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/internal/attr"
)

// MaxPolygonPoints is the largest ring AddPolygon accepts. Longer rings are
// truncated.
const MaxPolygonPoints = 255

// ErrDegeneratePolygon is returned for polygons with fewer than 3 points.
var ErrDegeneratePolygon = errors.New("batch: polygon needs at least 3 points")

// quadIndices triangulates a four-vertex quad emitted in corner order.
var quadIndices = [6]uint32{0, 1, 2, 0, 2, 3}

// unitSquare holds the quad corners in attr.QuadCorners order.
var unitSquare = [4]mgl32.Vec2{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}}

// Polygon describes one convex polygon to batch.
type Polygon struct {
	// Points is the local-space ring, convex, in either winding.
	Points []mgl32.Vec2
	// Rotation is applied first, in radians.
	Rotation float32
	// Size scales the rotated points uniformly.
	Size float32
	// Offset translates the polygon into world space.
	Offset mgl32.Vec2
	Color  polyoutline.Color
}

// Circle describes one circle to batch.
type Circle struct {
	// Size is the radius in world units.
	Size   float32
	Offset mgl32.Vec2
	Color  polyoutline.Color
}

// Builder accumulates batched geometry. The zero value is not usable;
// create one with NewBuilder. A Builder is not safe for concurrent use.
type Builder struct {
	coords     []mgl32.Vec2
	rotations  []float32
	sizes      []float32
	offsets    []mgl32.Vec2
	directions []float32
	attrs      []uint32
	colors     []polyoutline.Color
	indices    []uint32

	outline polyoutline.Color

	instances []Instance
	epoch     uint64
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &Builder{outline: o.outline}
	if n := o.capacity; n > 0 {
		b.coords = make([]mgl32.Vec2, 0, n)
		b.rotations = make([]float32, 0, n)
		b.sizes = make([]float32, 0, n)
		b.offsets = make([]mgl32.Vec2, 0, n)
		b.directions = make([]float32, 0, n)
		b.attrs = make([]uint32, 0, n)
		b.colors = make([]polyoutline.Color, 0, n)
		b.indices = make([]uint32, 0, n*3/2)
	}
	return b
}

// OutlineColor returns the color written into outline vertices.
func (b *Builder) OutlineColor() polyoutline.Color { return b.outline }

// SetOutlineColor changes the outline color for geometry added from now on.
func (b *Builder) SetOutlineColor(c polyoutline.Color) { b.outline = c }

// AddPolygon appends the body fan, corner quads and edge quads of p.
//
// Indices for N points:
//
//	fan:     (0, i+1, i+2) for i in [0, N-2)
//	corners: (0,1,2, 0,2,3) per point
//	edges:   (0,1,2, 0,2,3) per edge
//
// all offset by the vertex count at the time of the call.
func (b *Builder) AddPolygon(p Polygon) error {
	pts := p.Points
	if len(pts) < 3 {
		return fmt.Errorf("%w: got %d", ErrDegeneratePolygon, len(pts))
	}
	if len(pts) > MaxPolygonPoints {
		polyoutline.Logger().Debug("batch: polygon truncated",
			"points", len(pts), "max", MaxPolygonPoints)
		pts = pts[:MaxPolygonPoints]
	}
	n := len(pts)

	// 1. body fan
	base := b.vertexBase()
	for i := 0; i < n-2; i++ {
		b.indices = append(b.indices, base, base+uint32(i)+1, base+uint32(i)+2)
	}
	for _, v := range pts {
		b.push(v, p.Rotation, p.Size, p.Offset, 0, attr.Pack(attr.BodyVertex{}), p.Color)
	}

	// 2. rounded corners, centered on each point
	for _, v := range pts {
		b.pushQuadIndices()
		for _, c := range attr.QuadCorners {
			b.push(v, p.Rotation, p.Size, p.Offset, 0, attr.Pack(attr.CornerVertex{Corner: c}), b.outline)
		}
	}

	// 3. edge strips, extruded both ways along the edge normal
	quad := attr.Pack(attr.QuadVertex{})
	for i, v := range pts {
		nv := pts[(i+1)%n]
		d := edgeNormal(v, nv)
		b.pushQuadIndices()
		b.push(v, p.Rotation, p.Size, p.Offset, d, quad, b.outline)
		b.push(nv, p.Rotation, p.Size, p.Offset, d, quad, b.outline)
		b.push(nv, p.Rotation, p.Size, p.Offset, d+math32.Pi, quad, b.outline)
		b.push(v, p.Rotation, p.Size, p.Offset, d+math32.Pi, quad, b.outline)
	}
	return nil
}

// AddCircle appends a single quad spanning the unit square. The shading
// stage scales it by Size plus the outline thickness.
func (b *Builder) AddCircle(c Circle) {
	b.pushQuadIndices()
	bits := attr.Pack(attr.CircleVertex{})
	for _, corner := range unitSquare {
		b.push(corner, 0, c.Size, c.Offset, 0, bits, c.Color)
	}
}

// Reset clears all geometry and tracked instances. Instances handed out
// before the reset become stale.
func (b *Builder) Reset() {
	b.coords = b.coords[:0]
	b.rotations = b.rotations[:0]
	b.sizes = b.sizes[:0]
	b.offsets = b.offsets[:0]
	b.directions = b.directions[:0]
	b.attrs = b.attrs[:0]
	b.colors = b.colors[:0]
	b.indices = b.indices[:0]
	b.instances = b.instances[:0]
	b.epoch++
}

// Len returns the number of vertices.
func (b *Builder) Len() int { return len(b.coords) }

// Coords returns the local-space coordinate of every vertex.
func (b *Builder) Coords() []mgl32.Vec2 { return b.coords }

// Rotations returns the rotation of every vertex.
func (b *Builder) Rotations() []float32 { return b.rotations }

// Sizes returns the scale of every vertex.
func (b *Builder) Sizes() []float32 { return b.sizes }

// Offsets returns the world offset of every vertex.
func (b *Builder) Offsets() []mgl32.Vec2 { return b.offsets }

// OutlineDirections returns the extrusion angle of every vertex. Only
// outline edge vertices carry a non-zero value.
func (b *Builder) OutlineDirections() []float32 { return b.directions }

// Attrs returns the packed attribute of every vertex.
func (b *Builder) Attrs() []uint32 { return b.attrs }

// Colors returns the color of every vertex.
func (b *Builder) Colors() []polyoutline.Color { return b.colors }

// Indices returns the triangle list.
func (b *Builder) Indices() []uint32 { return b.indices }

func (b *Builder) vertexBase() uint32 {
	return uint32(len(b.coords))
}

func (b *Builder) pushQuadIndices() {
	base := b.vertexBase()
	for _, i := range quadIndices {
		b.indices = append(b.indices, base+i)
	}
}

func (b *Builder) push(coord mgl32.Vec2, rotation, size float32, offset mgl32.Vec2, direction float32, bits uint32, c polyoutline.Color) {
	b.coords = append(b.coords, coord)
	b.rotations = append(b.rotations, rotation)
	b.sizes = append(b.sizes, size)
	b.offsets = append(b.offsets, offset)
	b.directions = append(b.directions, direction)
	b.attrs = append(b.attrs, bits)
	b.colors = append(b.colors, c)
}

// edgeNormal returns the angle perpendicular to the edge v→nv.
func edgeNormal(v, nv mgl32.Vec2) float32 {
	e := nv.Sub(v)
	return math32.Atan2(e.Y(), e.X()) + math32.Pi/2
}

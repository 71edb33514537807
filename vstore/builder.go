package vstore

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/batch"
	"github.com/mache102/gl-poly-outline/internal/attr"
)

// DefaultPadding covers the default outline thickness plus its smoothing
// band.
const DefaultPadding = 3.5

// QuadVertex is one corner of a polygon's bounding quad.
type QuadVertex struct {
	X, Y  int16
	Start uint32
	Count uint32
	Attr  uint32
	Color polyoutline.Color
}

// Option configures a Builder.
type Option func(*Builder)

// WithPadding expands every bounding quad by px on each side. It must be
// at least the outline thickness plus smoothness or the outline is clipped.
func WithPadding(px float32) Option {
	return func(b *Builder) {
		if px >= 0 {
			b.padding = px
		}
	}
}

// Builder bakes polygons into a Table and emits one bounding quad each.
type Builder struct {
	table    *Table
	padding  float32
	vertices []QuadVertex
	indices  []uint32
	scratch  []Point
}

// NewBuilder creates a Builder writing into table.
func NewBuilder(table *Table, opts ...Option) *Builder {
	b := &Builder{table: table, padding: DefaultPadding}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bake applies rotate, scale and translate to every point of p and rounds
// to the nearest integer.
func Bake(p batch.Polygon) ([]Point, error) {
	return bakeInto(nil, p)
}

func bakeInto(dst []Point, p batch.Polygon) ([]Point, error) {
	rot := mgl32.Rotate2D(p.Rotation)
	dst = dst[:0]
	for i, v := range p.Points {
		w := rot.Mul2x1(v).Mul(p.Size).Add(p.Offset)
		x, okx := roundInt16(w.X())
		y, oky := roundInt16(w.Y())
		if !okx || !oky {
			return nil, fmt.Errorf("vstore: point %d (%g, %g) outside int16 range", i, w.X(), w.Y())
		}
		dst = append(dst, Point{X: x, Y: y})
	}
	return dst, nil
}

func roundInt16(v float32) (int16, bool) {
	r := math32.Round(v)
	if math32.IsNaN(r) || r < math.MinInt16 || r > math.MaxInt16 {
		return 0, false
	}
	return int16(r), true
}

// AddPolygon bakes p into the table and emits its bounding quad. Rings
// longer than batch.MaxPolygonPoints are truncated. On error neither the
// table nor the builder changes.
func (b *Builder) AddPolygon(p batch.Polygon) error {
	if len(p.Points) < 3 {
		return batch.ErrDegeneratePolygon
	}
	if len(p.Points) > batch.MaxPolygonPoints {
		polyoutline.Logger().Debug("vstore: polygon truncated",
			"points", len(p.Points), "max", batch.MaxPolygonPoints)
		p.Points = p.Points[:batch.MaxPolygonPoints]
	}
	pts, err := bakeInto(b.scratch, p)
	if err != nil {
		return err
	}
	b.scratch = pts

	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := -minX, -minY
	for _, q := range pts {
		x, y := float32(q.X), float32(q.Y)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	pad := math32.Ceil(b.padding)
	corners := [4][2]float32{
		{minX - pad, minY - pad},
		{minX - pad, maxY + pad},
		{maxX + pad, maxY + pad},
		{maxX + pad, minY - pad},
	}
	var quad [4]QuadVertex
	for i, c := range corners {
		x, okx := roundInt16(c[0])
		y, oky := roundInt16(c[1])
		if !okx || !oky {
			return fmt.Errorf("vstore: bounding quad (%g, %g) outside int16 range", c[0], c[1])
		}
		quad[i] = QuadVertex{X: x, Y: y, Count: uint32(len(pts)), Attr: attr.Encode(attr.Body, 0), Color: p.Color}
	}

	start, err := b.table.Write(pts)
	if err != nil {
		return err
	}
	base := uint32(len(b.vertices))
	for i := range quad {
		quad[i].Start = uint32(start)
	}
	b.vertices = append(b.vertices, quad[:]...)
	for _, idx := range [6]uint32{0, 1, 2, 0, 2, 3} {
		b.indices = append(b.indices, base+idx)
	}
	return nil
}

// Vertices returns the emitted quad vertices.
func (b *Builder) Vertices() []QuadVertex { return b.vertices }

// Indices returns the emitted quad indices.
func (b *Builder) Indices() []uint32 { return b.indices }

// Padding returns the bounding quad padding in pixels.
func (b *Builder) Padding() float32 { return b.padding }

// Table returns the lookup table the builder writes into.
func (b *Builder) Table() *Table { return b.table }

// Len returns the number of polygons added.
func (b *Builder) Len() int { return len(b.vertices) / 4 }

// Reset clears the quads and the table.
func (b *Builder) Reset() {
	b.vertices = b.vertices[:0]
	b.indices = b.indices[:0]
	b.table.Reset()
}

// Polygon returns the baked points of quad i.
func (b *Builder) Polygon(i int) ([]Point, error) {
	if i < 0 || i >= b.Len() {
		return nil, fmt.Errorf("vstore: polygon %d out of range [0,%d)", i, b.Len())
	}
	v := b.vertices[i*4]
	return b.table.Read(int(v.Start), int(v.Count))
}

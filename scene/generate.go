// Package scene generates the procedural polygon field: N copies of one
// shape scattered over the canvas, each with its own size, color and a
// rotation that steps by one degree per polygon.
package scene

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/batch"
	"github.com/mache102/gl-poly-outline/vstore"
)

// DefaultShape is the eight-point ring every generated polygon uses.
var DefaultShape = []mgl32.Vec2{
	{0.5, -2}, {2, -2}, {2.8, -1.2}, {3.9, 0},
	{2.8, 1.2}, {2, 2}, {0, 1.5}, {0, 0},
}

// TableWidth is the width of the generated vertex-store table.
const TableWidth = 1024

// Scene is a generated polygon field in both render layouts. Store is nil
// in circles mode.
type Scene struct {
	Batch *batch.Builder
	Store *vstore.Builder
}

type options struct {
	shape    []mgl32.Vec2
	progress func(done int)
}

// Option configures Generate.
type Option func(*options)

// WithShape replaces DefaultShape.
func WithShape(points []mgl32.Vec2) Option {
	return func(o *options) { o.shape = points }
}

// WithProgress calls fn after each generated polygon with the number done
// so far.
func WithProgress(fn func(done int)) Option {
	return func(o *options) { o.progress = fn }
}

// Generate builds s.Polygons shapes (or circles) with offsets uniform over
// the s.Width×s.Height canvas centered on the origin, sizes uniform in
// [s.MinSize, s.MaxSize) and colors drawn from s.Palette. Each shape is a
// tracked instance of the batch.
func Generate(s polyoutline.Settings, rng *rand.Rand, opts ...Option) (*Scene, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	o := options{shape: DefaultShape}
	for _, opt := range opts {
		opt(&o)
	}

	perShape := 4
	if !s.Circles {
		perShape = 9 * len(o.shape)
	}
	sc := &Scene{
		Batch: batch.NewBuilder(
			batch.WithOutlineColor(s.Outline),
			batch.WithCapacity(perShape*s.Polygons),
		),
	}
	if !s.Circles {
		cells := s.Polygons * len(o.shape)
		table, err := vstore.NewTable(TableWidth, max(1, (cells+TableWidth-1)/TableWidth))
		if err != nil {
			return nil, err
		}
		sc.Store = vstore.NewBuilder(table, vstore.WithPadding(s.OutlineThickness+s.Smoothness))
	}

	w, h := float32(s.Width), float32(s.Height)
	for i := 0; i < s.Polygons; i++ {
		offset := mgl32.Vec2{rng.Float32()*w - w/2, rng.Float32()*h - h/2}
		size := rng.Float32()*(s.MaxSize-s.MinSize) + s.MinSize
		color := s.Palette[rng.IntN(len(s.Palette))]

		if s.Circles {
			if _, err := sc.Batch.AddCircleInstance(batch.Circle{Size: size, Offset: offset, Color: color}); err != nil {
				return nil, err
			}
		} else {
			p := batch.Polygon{
				Points:   o.shape,
				Rotation: float32(i) * 2 * math32.Pi / 360,
				Size:     size,
				Offset:   offset,
				Color:    color,
			}
			if _, err := sc.Batch.AddPolygonInstance(p); err != nil {
				return nil, fmt.Errorf("scene: polygon %d: %w", i, err)
			}
			if err := sc.Store.AddPolygon(p); err != nil {
				return nil, fmt.Errorf("scene: polygon %d: %w", i, err)
			}
		}
		if o.progress != nil {
			o.progress(i + 1)
		}
	}

	polyoutline.Logger().Info("scene: generated",
		"polygons", s.Polygons, "circles", s.Circles, "batch", sc.Batch.Stats())
	return sc, nil
}

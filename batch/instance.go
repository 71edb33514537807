package batch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/internal/attr"
)

var (
	// ErrStaleInstance is returned when an Instance from before the last
	// Reset is used.
	ErrStaleInstance = errors.New("batch: stale instance")

	// ErrInstanceOrder is returned by End when the instance would overlap
	// one already tracked, e.g. when it is ended twice or out of order.
	ErrInstanceOrder = errors.New("batch: instance ends out of order")
)

// Instance is the contiguous vertex range of one logical polygon or circle.
type Instance struct {
	Start int
	Count int

	epoch uint64
	ended bool
}

// Begin starts an instance at the current vertex count.
func (b *Builder) Begin() Instance {
	return Instance{Start: len(b.coords), epoch: b.epoch}
}

// End closes inst at the current vertex count and starts tracking it.
func (b *Builder) End(inst *Instance) error {
	if err := b.checkEpoch(*inst); err != nil {
		return err
	}
	if inst.ended {
		return fmt.Errorf("%w: instance at %d already ended", ErrInstanceOrder, inst.Start)
	}
	if n := len(b.instances); n > 0 {
		last := b.instances[n-1]
		if inst.Start < last.Start+last.Count {
			return fmt.Errorf("%w: start %d precedes end %d of previous instance",
				ErrInstanceOrder, inst.Start, last.Start+last.Count)
		}
	}
	if inst.Start > len(b.coords) {
		return fmt.Errorf("%w: start %d past %d vertices", ErrStaleInstance, inst.Start, len(b.coords))
	}
	inst.Count = len(b.coords) - inst.Start
	inst.ended = true
	b.instances = append(b.instances, *inst)
	return nil
}

// Instances returns the tracked instances in insertion order.
func (b *Builder) Instances() []Instance { return b.instances }

// AddPolygonInstance wraps AddPolygon in Begin/End.
func (b *Builder) AddPolygonInstance(p Polygon) (Instance, error) {
	inst := b.Begin()
	if err := b.AddPolygon(p); err != nil {
		return Instance{}, err
	}
	if err := b.End(&inst); err != nil {
		return Instance{}, err
	}
	return inst, nil
}

// AddCircleInstance wraps AddCircle in Begin/End.
func (b *Builder) AddCircleInstance(c Circle) (Instance, error) {
	inst := b.Begin()
	b.AddCircle(c)
	if err := b.End(&inst); err != nil {
		return Instance{}, err
	}
	return inst, nil
}

// VertexRef addresses one vertex of a Builder.
type VertexRef struct {
	b *Builder
	i int
}

// Index returns the vertex position in the batch.
func (v VertexRef) Index() int { return v.i }

func (v VertexRef) Offset() mgl32.Vec2           { return v.b.offsets[v.i] }
func (v VertexRef) SetOffset(o mgl32.Vec2)       { v.b.offsets[v.i] = o }
func (v VertexRef) Color() polyoutline.Color     { return v.b.colors[v.i] }
func (v VertexRef) SetColor(c polyoutline.Color) { v.b.colors[v.i] = c }
func (v VertexRef) Kind() attr.Kind              { return attr.DecodeKind(v.b.attrs[v.i]) }

// ForEachVertex calls fn for each of the inst.Count vertices of inst, in
// order.
func (b *Builder) ForEachVertex(inst Instance, fn func(v VertexRef)) error {
	if err := b.checkRange(inst); err != nil {
		return err
	}
	for i := inst.Start; i < inst.Start+inst.Count; i++ {
		fn(VertexRef{b: b, i: i})
	}
	return nil
}

// Rotate adds delta to the rotation of every vertex in inst.
func (b *Builder) Rotate(inst Instance, delta float32) error {
	if err := b.checkRange(inst); err != nil {
		return err
	}
	r := b.rotations[inst.Start : inst.Start+inst.Count]
	for i := range r {
		r[i] += delta
	}
	return nil
}

// RotateAll adds delta to the rotation of every tracked instance.
func (b *Builder) RotateAll(delta float32) {
	for _, inst := range b.instances {
		r := b.rotations[inst.Start : inst.Start+inst.Count]
		for i := range r {
			r[i] += delta
		}
	}
}

func (b *Builder) checkEpoch(inst Instance) error {
	if inst.epoch != b.epoch {
		return fmt.Errorf("%w: epoch %d, builder at %d", ErrStaleInstance, inst.epoch, b.epoch)
	}
	return nil
}

func (b *Builder) checkRange(inst Instance) error {
	if err := b.checkEpoch(inst); err != nil {
		return err
	}
	if inst.Start < 0 || inst.Count < 0 || inst.Start+inst.Count > len(b.coords) {
		return fmt.Errorf("%w: range [%d, %d) outside %d vertices",
			ErrStaleInstance, inst.Start, inst.Start+inst.Count, len(b.coords))
	}
	return nil
}

// Stats summarizes the element count of every batch array.
type Stats struct {
	Vertices  int
	Indices   int
	Instances int
	Triangles int
	Epoch     uint64
}

// Stats reports the current batch size.
func (b *Builder) Stats() Stats {
	return Stats{
		Vertices:  len(b.coords),
		Indices:   len(b.indices),
		Instances: len(b.instances),
		Triangles: len(b.indices) / 3,
		Epoch:     b.epoch,
	}
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("vertices", s.Vertices),
		slog.Int("indices", s.Indices),
		slog.Int("instances", s.Instances),
		slog.Int("triangles", s.Triangles),
	)
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("%d vertices, %d indices (%d triangles), %d instances",
		s.Vertices, s.Indices, s.Triangles, s.Instances)
}

// Package attr packs the per-vertex attribute bitfield that routes every
// vertex in a batch to its shading branch.
//
// Layout of the packed value:
//
//	bits 0-1: Kind (Body, OutlineCorner, OutlineQuad, Circle)
//	bit  2:   corner X selector (0 = -1, 1 = +1), OutlineCorner only
//	bit  3:   corner Y selector (0 = -1, 1 = +1), OutlineCorner only
//
// Host code works with the Vertex variants and only flattens them with Pack
// when writing GPU buffers.
package attr

import "fmt"

// Kind selects the shading branch of a vertex.
type Kind uint8

const (
	// Body is a vertex of a polygon's filled fan.
	Body Kind = 0
	// OutlineCorner is a vertex of the rounded cap quad at a polygon vertex.
	OutlineCorner Kind = 1
	// OutlineQuad is a vertex of the extruded strip along a polygon edge.
	OutlineQuad Kind = 2
	// Circle is a vertex of a circle's bounding quad.
	Circle Kind = 3
)

const (
	kindMask    = 0b11
	cornerShift = 2
	cornerMask  = 0b11
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Body:
		return "Body"
	case OutlineCorner:
		return "OutlineCorner"
	case OutlineQuad:
		return "OutlineQuad"
	case Circle:
		return "Circle"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Corner indices in the order the quad vertices are emitted. Bit 0 of the
// index selects +x, bit 1 selects +y.
const (
	CornerBottomLeft  uint8 = 0b00
	CornerTopLeft     uint8 = 0b10
	CornerTopRight    uint8 = 0b11
	CornerBottomRight uint8 = 0b01
)

// QuadCorners lists the corner indices of a quad in emission order
// (bottom-left, top-left, top-right, bottom-right). Together with the index
// pattern 0,1,2,0,2,3 this yields two triangles covering the square.
var QuadCorners = [4]uint8{CornerBottomLeft, CornerTopLeft, CornerTopRight, CornerBottomRight}

// Encode packs kind and corner into the GPU attribute value.
// It panics if kind or corner does not fit in two bits.
func Encode(kind Kind, corner uint8) uint32 {
	if kind > kindMask {
		panic(fmt.Sprintf("attr: kind %d out of range", kind))
	}
	if corner > cornerMask {
		panic(fmt.Sprintf("attr: corner index %d out of range", corner))
	}
	return uint32(kind) | uint32(corner)<<cornerShift
}

// DecodeKind extracts the kind from a packed attribute.
func DecodeKind(bits uint32) Kind {
	return Kind(bits & kindMask)
}

// DecodeCorner extracts the corner index from a packed attribute. The value
// is only meaningful when the kind is OutlineCorner.
func DecodeCorner(bits uint32) uint8 {
	return uint8((bits >> cornerShift) & cornerMask)
}

// CornerOffset returns the unit offsets the shading stage derives from a
// corner index: -1 or +1 on each axis.
func CornerOffset(corner uint8) (x, y float32) {
	x, y = -1, -1
	if corner&0b01 != 0 {
		x = 1
	}
	if corner&0b10 != 0 {
		y = 1
	}
	return x, y
}

// Vertex is the host-side tagged form of a vertex kind.
type Vertex interface {
	Kind() Kind
	pack() uint32
}

// BodyVertex tags a filled-fan vertex.
type BodyVertex struct{}

// CornerVertex tags a rounded-cap vertex with its corner index.
type CornerVertex struct {
	Corner uint8
}

// QuadVertex tags an edge-strip vertex.
type QuadVertex struct{}

// CircleVertex tags a circle quad vertex.
type CircleVertex struct{}

func (BodyVertex) Kind() Kind   { return Body }
func (CornerVertex) Kind() Kind { return OutlineCorner }
func (QuadVertex) Kind() Kind   { return OutlineQuad }
func (CircleVertex) Kind() Kind { return Circle }

func (BodyVertex) pack() uint32     { return Encode(Body, 0) }
func (v CornerVertex) pack() uint32 { return Encode(OutlineCorner, v.Corner) }
func (QuadVertex) pack() uint32     { return Encode(OutlineQuad, 0) }
func (CircleVertex) pack() uint32   { return Encode(Circle, 0) }

// Pack flattens a tagged vertex into its GPU attribute value.
func Pack(v Vertex) uint32 {
	return v.pack()
}

// Unpack converts a packed attribute back to its tagged form.
func Unpack(bits uint32) Vertex {
	switch DecodeKind(bits) {
	case OutlineCorner:
		return CornerVertex{Corner: DecodeCorner(bits)}
	case OutlineQuad:
		return QuadVertex{}
	case Circle:
		return CircleVertex{}
	default:
		return BodyVertex{}
	}
}

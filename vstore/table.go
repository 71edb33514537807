// Package vstore implements the lookup-table rendering variant: polygon
// vertices are baked into world space and stored in a two-channel 16-bit
// integer texture, and each polygon is drawn as a single bounding quad whose
// fragments rebuild the polygon from the table and shade its outline by
// signed distance.
package vstore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CellBytes is the size of one RG16Sint table cell.
const CellBytes = 4

// ErrCapacityExceeded is returned when a write does not fit in the table.
// The table is left unchanged.
var ErrCapacityExceeded = errors.New("vstore: table capacity exceeded")

// Point is a baked world-space vertex.
type Point struct {
	X, Y int16
}

// Table is a fixed-size row-major grid of points, uploaded as an RG16Sint
// texture. Points are appended; a polygon occupies the contiguous cells
// [start, start+count).
type Table struct {
	width, height int
	cells         []byte
	next          int
}

// NewTable creates an empty width×height table.
func NewTable(width, height int) (*Table, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("vstore: invalid table size %dx%d", width, height)
	}
	return &Table{
		width:  width,
		height: height,
		cells:  make([]byte, width*height*CellBytes),
	}, nil
}

// Write appends points and returns the index of the first one.
func (t *Table) Write(points []Point) (start int, err error) {
	if len(points) > t.Capacity()-t.next {
		return 0, fmt.Errorf("%w: %d points, %d of %d cells free",
			ErrCapacityExceeded, len(points), t.Capacity()-t.next, t.Capacity())
	}
	start = t.next
	for i, p := range points {
		c := t.cells[(start+i)*CellBytes:]
		binary.LittleEndian.PutUint16(c[0:], uint16(p.X))
		binary.LittleEndian.PutUint16(c[2:], uint16(p.Y))
	}
	t.next += len(points)
	return start, nil
}

// At returns the point stored at cell i. It panics if i is outside
// [0, Capacity()).
func (t *Table) At(i int) Point {
	if i < 0 || i >= t.Capacity() {
		panic(fmt.Sprintf("vstore: cell %d outside table of %d", i, t.Capacity()))
	}
	c := t.cells[i*CellBytes:]
	return Point{
		X: int16(binary.LittleEndian.Uint16(c[0:])),
		Y: int16(binary.LittleEndian.Uint16(c[2:])),
	}
}

// Read returns n points starting at start.
func (t *Table) Read(start, n int) ([]Point, error) {
	if start < 0 || n < 0 || start+n > t.next {
		return nil, fmt.Errorf("vstore: read [%d,%d) outside written range [0,%d)", start, start+n, t.next)
	}
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = t.At(start + i)
	}
	return pts, nil
}

// Len returns the number of written cells.
func (t *Table) Len() int { return t.next }

// Capacity returns the total number of cells.
func (t *Table) Capacity() int { return t.width * t.height }

// Width returns the table width in cells.
func (t *Table) Width() int { return t.width }

// Height returns the table height in cells.
func (t *Table) Height() int { return t.height }

// Reset discards all points.
func (t *Table) Reset() {
	clear(t.cells[:t.next*CellBytes])
	t.next = 0
}

// Bytes returns the texel data, little endian and row-major. The slice
// aliases the table.
func (t *Table) Bytes() []byte { return t.cells }

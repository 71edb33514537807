package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/vstore"
)

// CoordScale is the number of fixed-point sub-units per local unit in the
// coordinate buffer. Local coordinates must stay within ±32767/CoordScale.
const CoordScale = 256

// ErrCoordinateRange is returned when a coordinate or offset does not fit
// in a signed 16-bit integer after scaling and rounding.
var ErrCoordinateRange = errors.New("gpu: coordinate outside int16 range")

// Byte sizes of one element of each attribute buffer.
const (
	coordBytes     = 4 // Sint16x2
	float32Bytes   = 4
	offsetBytes    = 4 // Sint16x2
	attrBytes      = 4 // Uint32
	colorBytes     = 4 // Unorm8x4
	indexBytes     = 4 // Uint32
	storeVertBytes = 20
)

// toInt16 rounds v to the nearest integer and checks the int16 range.
func toInt16(v float32) (int16, bool) {
	r := math32.Round(v)
	if math32.IsNaN(r) || r < math.MinInt16 || r > math.MaxInt16 {
		return 0, false
	}
	return int16(r), true
}

// encodeCoords packs local coordinates as Sint16x2 fixed point.
func encodeCoords(dst []byte, coords []mgl32.Vec2) ([]byte, error) {
	return encodeVec2s(dst, coords, CoordScale, "coordinate")
}

// encodeOffsets packs world offsets as Sint16x2 pixels.
func encodeOffsets(dst []byte, offsets []mgl32.Vec2) ([]byte, error) {
	return encodeVec2s(dst, offsets, 1, "offset")
}

func encodeVec2s(dst []byte, vs []mgl32.Vec2, scale float32, what string) ([]byte, error) {
	dst = grow(dst, len(vs)*coordBytes)
	for i, v := range vs {
		x, okx := toInt16(v.X() * scale)
		y, oky := toInt16(v.Y() * scale)
		if !okx || !oky {
			return nil, fmt.Errorf("%w: %s %d = (%v, %v)", ErrCoordinateRange, what, i, v.X(), v.Y())
		}
		binary.LittleEndian.PutUint16(dst[i*4:], uint16(x))
		binary.LittleEndian.PutUint16(dst[i*4+2:], uint16(y))
	}
	return dst, nil
}

// encodeFloat32s packs values as little-endian Float32.
func encodeFloat32s(dst []byte, vs []float32) []byte {
	dst = grow(dst, len(vs)*float32Bytes)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return dst
}

// encodeUint32s packs values as little-endian Uint32.
func encodeUint32s(dst []byte, vs []uint32) []byte {
	dst = grow(dst, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(dst[i*4:], v)
	}
	return dst
}

// encodeColors packs colors as Unorm8x4 in RGBA order.
func encodeColors(dst []byte, cs []polyoutline.Color) []byte {
	dst = grow(dst, len(cs)*colorBytes)
	for i, c := range cs {
		dst[i*4+0] = c.R
		dst[i*4+1] = c.G
		dst[i*4+2] = c.B
		dst[i*4+3] = c.A
	}
	return dst
}

// encodeStoreVertices interleaves vertex-store quad vertices.
// Layout per vertex:
//
//	position (vec2<i32>, Sint16x2) = 4 bytes  (location 0)
//	start    (u32)                 = 4 bytes  (location 1)
//	count    (u32)                 = 4 bytes  (location 2)
//	attr     (u32)                 = 4 bytes  (location 3)
//	color    (Unorm8x4)            = 4 bytes  (location 4)
//
// Total = 20 bytes per vertex.
func encodeStoreVertices(dst []byte, vs []vstore.QuadVertex) []byte {
	dst = grow(dst, len(vs)*storeVertBytes)
	for i, v := range vs {
		b := dst[i*storeVertBytes:]
		binary.LittleEndian.PutUint16(b[0:], uint16(v.X))
		binary.LittleEndian.PutUint16(b[2:], uint16(v.Y))
		binary.LittleEndian.PutUint32(b[4:], v.Start)
		binary.LittleEndian.PutUint32(b[8:], v.Count)
		binary.LittleEndian.PutUint32(b[12:], v.Attr)
		b[16], b[17], b[18], b[19] = v.Color.R, v.Color.G, v.Color.B, v.Color.A
	}
	return dst
}

// grow returns dst resized to n bytes, reusing its backing array when it
// is large enough.
func grow(dst []byte, n int) []byte {
	if cap(dst) < n {
		return make([]byte, n)
	}
	return dst[:n]
}

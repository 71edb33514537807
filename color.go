package polyoutline

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/chewxy/math32"
	"golang.org/x/image/colornames"
)

// ErrInvalidColor is returned when a color string cannot be parsed.
var ErrInvalidColor = errors.New("polyoutline: invalid color")

// Color is a non-premultiplied RGBA color with 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

// RGB creates an opaque color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 255}
}

// FromUint32 unpacks a 0xRRGGBBAA value.
func FromUint32(v uint32) Color {
	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}
}

// Uint32 packs the color as 0xRRGGBBAA.
func (c Color) Uint32() uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// FromColor converts a standard color.Color.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

// Normalized returns the channels scaled to [0, 1], in RGBA order.
func (c Color) Normalized() [4]float32 {
	return [4]float32{
		float32(c.R) / 255,
		float32(c.G) / 255,
		float32(c.B) / 255,
		float32(c.A) / 255,
	}
}

// Lerp blends c toward other. t = 0 returns c, t = 1 returns other.
// Channels are clamped to [0, 255] for any t.
func (c Color) Lerp(other Color, t float32) Color {
	mix := func(a, b uint8) uint8 {
		return clamp255(float32(a)*(1-t) + float32(b)*t)
	}
	return Color{
		R: mix(c.R, other.R),
		G: mix(c.G, other.G),
		B: mix(c.B, other.B),
		A: mix(c.A, other.A),
	}
}

// Scale multiplies the color channels by factor, leaving alpha unchanged.
func (c Color) Scale(factor float32) Color {
	return Color{
		R: clamp255(float32(c.R) * factor),
		G: clamp255(float32(c.G) * factor),
		B: clamp255(float32(c.B) * factor),
		A: c.A,
	}
}

// Hex formats the color as #rrggbb, or #rrggbbaa when not opaque.
func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// String implements fmt.Stringer.
func (c Color) String() string { return c.Hex() }

// ParseColor parses "#RGB", "#RGBA", "#RRGGBB", "#RRGGBBAA" or an SVG color
// name such as "lightblue" or "light blue".
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}
	name := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	if nc, ok := colornames.Map[name]; ok {
		return FromColor(nc), nil
	}
	return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// MustParseColor is like ParseColor but panics on error.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func parseHexColor(hex string) (Color, error) {
	var digits [8]uint8
	if len(hex) > len(digits) {
		return Color{}, fmt.Errorf("%w: #%s", ErrInvalidColor, hex)
	}
	for i := 0; i < len(hex); i++ {
		d, ok := hexDigit(hex[i])
		if !ok {
			return Color{}, fmt.Errorf("%w: #%s", ErrInvalidColor, hex)
		}
		digits[i] = d
	}

	switch len(hex) {
	case 3: // RGB
		return Color{R: digits[0] * 17, G: digits[1] * 17, B: digits[2] * 17, A: 255}, nil
	case 4: // RGBA
		return Color{R: digits[0] * 17, G: digits[1] * 17, B: digits[2] * 17, A: digits[3] * 17}, nil
	case 6: // RRGGBB
		return Color{R: digits[0]<<4 | digits[1], G: digits[2]<<4 | digits[3], B: digits[4]<<4 | digits[5], A: 255}, nil
	case 8: // RRGGBBAA
		return Color{R: digits[0]<<4 | digits[1], G: digits[2]<<4 | digits[3], B: digits[4]<<4 | digits[5], A: digits[6]<<4 | digits[7]}, nil
	default:
		return Color{}, fmt.Errorf("%w: #%s", ErrInvalidColor, hex)
	}
}

func hexDigit(c byte) (uint8, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// clamp255 rounds x and restricts it to [0, 255].
func clamp255(x float32) uint8 {
	x = math32.Round(x)
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// Common colors
var (
	Black = RGB(0, 0, 0)
	White = RGB(255, 255, 255)
)

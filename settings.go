package polyoutline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("polyoutline: invalid settings")

// Mode selects the rendering design.
type Mode string

const (
	// ModeAttribute renders the bit-packed attribute batch.
	ModeAttribute Mode = "attr"
	// ModeVertexStore renders bounding quads over the vertex lookup table.
	ModeVertexStore Mode = "vstore"
)

// Settings holds the user-tunable parameters of a scene and its shading.
type Settings struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`

	Background       Color   `toml:"background"`
	Outline          Color   `toml:"outline"`
	OutlineThickness float32 `toml:"outline_thickness"`
	Smoothness       float32 `toml:"smoothness"`
	// BlendFactor mixes the fill color into the outline color.
	// 0 keeps the outline color, 1 uses the fill color.
	BlendFactor float32 `toml:"blend_factor"`

	Polygons int     `toml:"polygons"`
	MinSize  float32 `toml:"min_size"`
	MaxSize  float32 `toml:"max_size"`
	Palette  []Color `toml:"palette"`
	Seed     int64   `toml:"seed"`
	Circles  bool    `toml:"circles"`

	Animate      bool    `toml:"animate"`
	RotationStep float32 `toml:"rotation_step"`

	Mode       Mode `toml:"mode"`
	ShowBounds bool `toml:"show_bounds"`
}

// DefaultSettings returns the stock scene: 10000 polygons on a 1920x1080
// target with the four-color palette.
func DefaultSettings() Settings {
	return Settings{
		Width:            1920,
		Height:           1080,
		Background:       MustParseColor("#dbdbdb"),
		Outline:          MustParseColor("#484848"),
		OutlineThickness: 2.5,
		Smoothness:       1.0,
		Polygons:         10000,
		MinSize:          2,
		MaxSize:          30,
		Palette: []Color{
			MustParseColor("#3ca4cb"),
			MustParseColor("#8abc3f"),
			MustParseColor("#e03e41"),
			MustParseColor("#cc669c"),
		},
		RotationStep: 0.01,
		Mode:         ModeAttribute,
	}
}

// Validate reports the first inconsistent field.
func (s *Settings) Validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: target size %dx%d", ErrInvalidSettings, s.Width, s.Height)
	case s.OutlineThickness < 0:
		return fmt.Errorf("%w: negative outline thickness %v", ErrInvalidSettings, s.OutlineThickness)
	case s.Smoothness < 0:
		return fmt.Errorf("%w: negative smoothness %v", ErrInvalidSettings, s.Smoothness)
	case s.BlendFactor < 0 || s.BlendFactor > 1:
		return fmt.Errorf("%w: blend factor %v outside [0, 1]", ErrInvalidSettings, s.BlendFactor)
	case s.Polygons < 0:
		return fmt.Errorf("%w: negative polygon count %d", ErrInvalidSettings, s.Polygons)
	case s.MinSize <= 0 || s.MaxSize < s.MinSize:
		return fmt.Errorf("%w: size range [%v, %v)", ErrInvalidSettings, s.MinSize, s.MaxSize)
	case len(s.Palette) == 0:
		return fmt.Errorf("%w: empty palette", ErrInvalidSettings)
	case s.Mode != ModeAttribute && s.Mode != ModeVertexStore:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s.Mode)
	}
	return nil
}

// DecodeSettings reads TOML from r on top of DefaultSettings. Unknown keys
// are rejected.
func DecodeSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads a TOML settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	s, err := DecodeSettings(bytes.NewReader(data))
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Encode writes s as TOML.
func (s Settings) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s)
}

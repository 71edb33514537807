package render

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/batch"
	"github.com/mache102/gl-poly-outline/internal/attr"
	"github.com/mache102/gl-poly-outline/internal/gpu"
	"github.com/mache102/gl-poly-outline/vstore"
)

// ErrNoStore is returned when the vertex-store mode is requested but the
// driver has no vertex store.
var ErrNoStore = errors.New("render: no vertex store for vstore mode")

// Renderer is the GPU side the driver feeds. *gpu.Renderer implements it.
type Renderer interface {
	Resize(width, height uint32) error
	SetShading(s gpu.Shading) error
	Upload(b *batch.Builder) error
	UpdateRotations(b *batch.Builder) error
	UpdateColors(b *batch.Builder) error
	UploadStore(s *vstore.Builder) error
	Draw(mode polyoutline.Mode, background polyoutline.Color) error
}

var _ Renderer = (*gpu.Renderer)(nil)

// Driver owns the frame loop state. Frame and Run must be called from one
// goroutine; Resize, ApplySettings, Stats and the event callbacks may be
// called from any goroutine.
type Driver struct {
	renderer Renderer
	batch    *batch.Builder
	store    *vstore.Builder
	settings polyoutline.Settings

	// mu guards the pending fields and stats, and writes to settings.
	mu            sync.Mutex
	pendingSize   *[2]uint32
	pendingConfig *polyoutline.Settings
	stats         frameStats

	now func() time.Time
}

// NewDriver uploads b and, when non-nil, s, then applies settings. The
// initial resize to settings.Width×settings.Height is queued for the first
// Frame.
func NewDriver(r Renderer, b *batch.Builder, s *vstore.Builder, settings polyoutline.Settings) (*Driver, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Mode == polyoutline.ModeVertexStore && s == nil {
		return nil, ErrNoStore
	}
	d := &Driver{
		renderer: r,
		batch:    b,
		store:    s,
		settings: settings,
		now:      time.Now,
	}
	d.recolorOutlines()
	if err := r.Upload(b); err != nil {
		return nil, fmt.Errorf("render: upload batch: %w", err)
	}
	if s != nil {
		if err := r.UploadStore(s); err != nil {
			return nil, fmt.Errorf("render: upload vertex store: %w", err)
		}
	}
	if err := r.SetShading(gpu.ShadingFromSettings(settings)); err != nil {
		return nil, err
	}
	d.Resize(uint32(settings.Width), uint32(settings.Height))
	d.stats.reset(d.now())

	polyoutline.Logger().Info("render: driver ready",
		"mode", settings.Mode, "batch", b.Stats(), "animate", settings.Animate)
	return d, nil
}

// Resize queues a viewport change for the next frame. Later calls replace
// earlier ones.
func (d *Driver) Resize(width, height uint32) {
	d.mu.Lock()
	d.pendingSize = &[2]uint32{width, height}
	d.mu.Unlock()
}

// ApplySettings validates s and queues it for the next frame. A change of
// Width or Height queues a resize. The fields that shape the scene
// (Polygons, MinSize, MaxSize, Palette, Circles) were consumed when the
// batch was built; changes to them are logged and otherwise ignored.
func (d *Driver) ApplySettings(s polyoutline.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Mode == polyoutline.ModeVertexStore && d.store == nil {
		return ErrNoStore
	}
	d.mu.Lock()
	d.pendingConfig = &s
	d.mu.Unlock()
	return nil
}

// Settings returns the settings in effect.
func (d *Driver) Settings() polyoutline.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// AttachEvents subscribes to host window events. Resizes are queued;
// Space toggles the animation, B the bounding boxes and M the render mode.
func (d *Driver) AttachEvents(src gpucontext.EventSource) {
	src.OnResize(func(width, height int) {
		if width > 0 && height > 0 {
			d.Resize(uint32(width), uint32(height))
		}
	})
	src.OnKeyPress(func(key gpucontext.Key, _ gpucontext.Modifiers) {
		d.toggle(key)
	})
}

func (d *Driver) toggle(key gpucontext.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.settings
	if d.pendingConfig != nil {
		s = *d.pendingConfig
	}
	switch key {
	case gpucontext.KeySpace:
		s.Animate = !s.Animate
	case gpucontext.KeyB:
		s.ShowBounds = !s.ShowBounds
	case gpucontext.KeyM:
		if d.store == nil {
			return
		}
		if s.Mode == polyoutline.ModeAttribute {
			s.Mode = polyoutline.ModeVertexStore
		} else {
			s.Mode = polyoutline.ModeAttribute
		}
	default:
		return
	}
	d.pendingConfig = &s
}

// Frame renders one frame: pending resize and settings first, then the
// animation step and rotation upload, then the draw.
func (d *Driver) Frame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := d.now()

	d.mu.Lock()
	size, config := d.pendingSize, d.pendingConfig
	d.pendingSize, d.pendingConfig = nil, nil
	d.mu.Unlock()

	if size == nil && config != nil && (config.Width != d.settings.Width || config.Height != d.settings.Height) {
		size = &[2]uint32{uint32(config.Width), uint32(config.Height)}
	}

	if size != nil {
		if err := d.renderer.Resize(size[0], size[1]); err != nil {
			d.mu.Lock()
			if d.pendingSize == nil {
				d.pendingSize = size
			}
			if d.pendingConfig == nil {
				d.pendingConfig = config
			}
			d.mu.Unlock()
			return fmt.Errorf("render: resize: %w", err)
		}
		polyoutline.Logger().Debug("render: resized", "width", size[0], "height", size[1])
	}
	if config != nil {
		if err := d.apply(*config); err != nil {
			return err
		}
	}

	if d.settings.Animate && d.settings.Mode == polyoutline.ModeAttribute && d.batch.Len() > 0 {
		d.batch.RotateAll(d.settings.RotationStep)
		if err := d.renderer.UpdateRotations(d.batch); err != nil {
			return fmt.Errorf("render: update rotations: %w", err)
		}
	}

	if err := d.renderer.Draw(d.settings.Mode, d.settings.Background); err != nil {
		return fmt.Errorf("render: draw: %w", err)
	}
	end := d.now()
	d.mu.Lock()
	d.stats.record(start, end)
	d.mu.Unlock()
	return nil
}

// apply makes s current. Outline recoloring re-uploads only the color
// buffer.
func (d *Driver) apply(s polyoutline.Settings) error {
	prev := d.settings
	d.mu.Lock()
	d.settings = s
	d.mu.Unlock()
	if err := d.renderer.SetShading(gpu.ShadingFromSettings(s)); err != nil {
		return fmt.Errorf("render: shading: %w", err)
	}
	if s.Outline != prev.Outline || s.BlendFactor != prev.BlendFactor {
		d.recolorOutlines()
		if d.batch.Len() > 0 {
			if err := d.renderer.UpdateColors(d.batch); err != nil {
				return fmt.Errorf("render: update colors: %w", err)
			}
		}
	}
	if s.Mode != prev.Mode {
		polyoutline.Logger().Info("render: mode changed", "from", prev.Mode, "to", s.Mode)
	}
	if changed := sceneChanges(prev, s); len(changed) > 0 {
		polyoutline.Logger().Warn("render: scene settings need a rebuild, ignored", "fields", changed)
	}
	if d.store != nil && s.OutlineThickness+s.Smoothness > d.store.Padding() {
		polyoutline.Logger().Warn("render: outline wider than vertex store padding, clipped",
			"outline", s.OutlineThickness+s.Smoothness, "padding", d.store.Padding())
	}
	return nil
}

func sceneChanges(prev, s polyoutline.Settings) []string {
	var changed []string
	if s.Polygons != prev.Polygons {
		changed = append(changed, "polygons")
	}
	if s.MinSize != prev.MinSize || s.MaxSize != prev.MaxSize {
		changed = append(changed, "size")
	}
	if !slices.Equal(s.Palette, prev.Palette) {
		changed = append(changed, "palette")
	}
	if s.Circles != prev.Circles {
		changed = append(changed, "circles")
	}
	return changed
}

// recolorOutlines writes the outline color, blended toward each
// instance's fill by BlendFactor, into its corner and edge vertices.
func (d *Driver) recolorOutlines() {
	outline := d.settings.Outline
	blend := d.settings.BlendFactor
	d.batch.SetOutlineColor(outline)
	attrs, colors := d.batch.Attrs(), d.batch.Colors()
	for _, inst := range d.batch.Instances() {
		kinds := attrs[inst.Start : inst.Start+inst.Count]
		fills := colors[inst.Start : inst.Start+inst.Count]
		body := slices.IndexFunc(kinds, func(a uint32) bool { return attr.DecodeKind(a) == attr.Body })
		if body < 0 {
			continue
		}
		c := outline.Lerp(fills[body], blend)
		for i, a := range kinds {
			if k := attr.DecodeKind(a); k == attr.OutlineCorner || k == attr.OutlineQuad {
				fills[i] = c
			}
		}
	}
}

// Run calls Frame until ctx is done or maxFrames frames have been drawn
// (0 means no limit). Settings received on updates are applied between
// frames; a rejected update is logged and skipped.
func (d *Driver) Run(ctx context.Context, updates <-chan polyoutline.Settings, maxFrames int) error {
	for n := 0; maxFrames <= 0 || n < maxFrames; n++ {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-updates:
			if !ok {
				updates = nil
				break
			}
			if err := d.ApplySettings(s); err != nil {
				polyoutline.Logger().Warn("render: settings rejected", "err", err)
			}
		default:
		}
		if err := d.Frame(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

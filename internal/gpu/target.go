package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// renderTarget owns the multisampled color texture and its single-sample
// resolve texture. Both are recreated when the size changes.
type renderTarget struct {
	device hal.Device

	width, height uint32

	msaaTex     hal.Texture
	msaaView    hal.TextureView
	resolveTex  hal.Texture
	resolveView hal.TextureView
}

// ensure makes the target w×h, recreating textures on a size change.
func (t *renderTarget) ensure(w, h uint32) error {
	if w == 0 || h == 0 {
		return fmt.Errorf("gpu: render target size %dx%d", w, h)
	}
	if t.width == w && t.height == h && t.msaaTex != nil {
		return nil
	}
	t.destroy()

	var err error
	t.msaaTex, t.msaaView, err = t.createColor("polygon_msaa", w, h, SampleCount,
		gputypes.TextureUsageRenderAttachment)
	if err != nil {
		t.destroy()
		return err
	}
	t.resolveTex, t.resolveView, err = t.createColor("polygon_resolve", w, h, 1,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc|gputypes.TextureUsageTextureBinding)
	if err != nil {
		t.destroy()
		return err
	}

	t.width, t.height = w, h
	slogger().Debug("gpu: render target resized", "width", w, "height", h)
	return nil
}

func (t *renderTarget) createColor(label string, w, h, samples uint32, usage gputypes.TextureUsage) (hal.Texture, hal.TextureView, error) {
	tex, err := t.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        TargetFormat,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := t.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        TargetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return tex, view, nil
}

// destroy releases all textures and resets the size.
func (t *renderTarget) destroy() {
	for _, v := range []*hal.TextureView{&t.resolveView, &t.msaaView} {
		if *v != nil {
			t.device.DestroyTextureView(*v)
			*v = nil
		}
	}
	for _, tex := range []*hal.Texture{&t.resolveTex, &t.msaaTex} {
		if *tex != nil {
			t.device.DestroyTexture(*tex)
			*tex = nil
		}
	}
	t.width, t.height = 0, 0
}

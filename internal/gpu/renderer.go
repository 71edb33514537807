package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/batch"
	"github.com/mache102/gl-poly-outline/vstore"
)

// ErrRendererClosed is returned when operating on a destroyed renderer.
var ErrRendererClosed = errors.New("gpu: renderer closed")

// Shading holds the outline parameters shared by both programs.
type Shading struct {
	Outline          polyoutline.Color
	OutlineThickness float32
	Smoothness       float32
	BlendFactor      float32
	ShowBounds       bool
}

// ShadingFromSettings extracts the shading parameters of s.
func ShadingFromSettings(s polyoutline.Settings) Shading {
	return Shading{
		Outline:          s.Outline,
		OutlineThickness: s.OutlineThickness,
		Smoothness:       s.Smoothness,
		BlendFactor:      s.BlendFactor,
		ShowBounds:       s.ShowBounds,
	}
}

type inFlight struct {
	index uint64
	cmd   hal.CommandBuffer
}

// Renderer draws an uploaded batch or vertex store in one indexed draw
// call per frame. Command buffers are returned to the device once the
// queue reports their submission complete.
//
// Renderer is safe for concurrent use.
type Renderer struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	polygon *Program
	vstore  *Program

	uploader *Uploader
	target   renderTarget

	pending []inFlight
	frames  uint64
	closed  bool
}

// NewRenderer compiles both programs and prepares an empty uploader.
func NewRenderer(device hal.Device, queue hal.Queue) (*Renderer, error) {
	polygon, err := CompileProgram(device, queue, polygonProgram())
	if err != nil {
		return nil, err
	}
	store, err := CompileProgram(device, queue, vstoreProgram())
	if err != nil {
		polygon.Destroy()
		return nil, err
	}
	if err := polygon.SetUniform(UniformCoordScale, float32(CoordScale)); err != nil {
		polygon.Destroy()
		store.Destroy()
		return nil, err
	}
	r := &Renderer{
		device:   device,
		queue:    queue,
		polygon:  polygon,
		vstore:   store,
		uploader: NewUploader(device, queue),
		target:   renderTarget{device: device},
	}
	if err := r.applyShading(ShadingFromSettings(polyoutline.DefaultSettings())); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

// Resize recreates the color targets and updates the window resolution
// uniform of both programs.
func (r *Renderer) Resize(width, height uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	if err := r.target.ensure(width, height); err != nil {
		return err
	}
	winres := [2]float32{float32(width), float32(height)}
	for _, p := range []*Program{r.polygon, r.vstore} {
		if err := p.SetUniform(UniformWinres, winres); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the current target size.
func (r *Renderer) Size() (width, height uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target.width, r.target.height
}

// SetShading updates the outline uniforms. Values take effect on the next
// Draw.
func (r *Renderer) SetShading(s Shading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	return r.applyShading(s)
}

func (r *Renderer) applyShading(s Shading) error {
	for _, p := range []*Program{r.polygon, r.vstore} {
		if err := p.SetUniform(UniformOutlineColor, s.Outline); err != nil {
			return err
		}
		if err := p.SetUniform(UniformOutlineSize, s.OutlineThickness); err != nil {
			return err
		}
		if err := p.SetUniform(UniformSmoothness, s.Smoothness); err != nil {
			return err
		}
		if err := p.SetUniform(UniformBlendFactor, s.BlendFactor); err != nil {
			return err
		}
	}
	return r.vstore.SetUniform(UniformShowBounds, s.ShowBounds)
}

// Upload replaces the attribute batch on the GPU.
func (r *Renderer) Upload(b *batch.Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	return r.uploader.Upload(b)
}

// UpdateRotations rewrites only the rotation buffer of the uploaded batch.
func (r *Renderer) UpdateRotations(b *batch.Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	return r.uploader.UpdateRotations(b)
}

// UpdateColors rewrites only the color buffer of the uploaded batch.
func (r *Renderer) UpdateColors(b *batch.Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	return r.uploader.UpdateColors(b)
}

// UploadStore replaces the vertex store quads and lookup table.
func (r *Renderer) UploadStore(s *vstore.Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	if err := r.uploader.UploadStore(s); err != nil {
		return err
	}
	r.vstore.BindTexture(r.uploader.TableView())
	return r.vstore.SetUniform(UniformTableWidth, r.uploader.TableWidth())
}

// Draw clears the target to background and issues one indexed draw for the
// data uploaded for mode. Nothing but the clear is recorded when that data
// is empty.
func (r *Renderer) Draw(mode polyoutline.Mode, background polyoutline.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	if r.target.msaaView == nil {
		return fmt.Errorf("gpu: draw before Resize")
	}
	r.reclaim(r.queue.PollCompleted())

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "polygon_frame_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("polygon_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	c := background.Normalized()
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "polygon_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:          r.target.msaaView,
			ResolveTarget: r.target.resolveView,
			LoadOp:        gputypes.LoadOpClear,
			StoreOp:       gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3]),
			},
		}},
	})

	if err := r.record(rp, mode); err != nil {
		rp.End()
		encoder.DiscardEncoding()
		return err
	}
	rp.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	index, err := r.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		r.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("submit: %w", err)
	}
	r.pending = append(r.pending, inFlight{index: index, cmd: cmd})
	r.frames++
	return nil
}

// record binds the program for mode and issues its draw call.
func (r *Renderer) record(rp hal.RenderPassEncoder, mode polyoutline.Mode) error {
	switch mode {
	case polyoutline.ModeAttribute:
		if r.uploader.IndexCount() == 0 {
			return nil
		}
		if err := r.polygon.Use(rp); err != nil {
			return err
		}
		r.uploader.bindBatch(rp)
		rp.DrawIndexed(r.uploader.IndexCount(), 1, 0, 0, 0)
	case polyoutline.ModeVertexStore:
		if r.uploader.StoreIndexCount() == 0 {
			return nil
		}
		if err := r.vstore.Use(rp); err != nil {
			return err
		}
		r.uploader.bindStore(rp)
		rp.DrawIndexed(r.uploader.StoreIndexCount(), 1, 0, 0, 0)
	default:
		return fmt.Errorf("gpu: unknown render mode %q", mode)
	}
	return nil
}

// reclaim frees command buffers whose submission index is at most done.
func (r *Renderer) reclaim(done uint64) {
	n := 0
	for _, f := range r.pending {
		if f.index <= done {
			r.device.FreeCommandBuffer(f.cmd)
			continue
		}
		r.pending[n] = f
		n++
	}
	clear(r.pending[n:])
	r.pending = r.pending[:n]
}

// Wait blocks until the GPU is idle and frees all in-flight command
// buffers.
func (r *Renderer) Wait() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	return r.waitIdle()
}

func (r *Renderer) waitIdle() error {
	if err := r.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	r.reclaim(^uint64(0))
	return nil
}

// Frames returns the number of submitted frames.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// InFlight returns the number of submitted command buffers not yet
// reclaimed.
func (r *Renderer) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Destroy waits for the GPU and releases all resources. Safe to call
// multiple times.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if err := r.waitIdle(); err != nil {
		slogger().Warn("gpu: destroy renderer", "err", err)
	}
	r.uploader.Destroy()
	r.target.destroy()
	r.vstore.Destroy()
	r.polygon.Destroy()
}

// Package render drives the per-frame loop: it applies queued resizes and
// settings, advances the rotation animation, re-uploads the rotation
// buffer and issues the single draw call through internal/gpu.
//
// The host window, if any, talks to a Driver through a
// gpucontext.EventSource; its callbacks only queue work, which the next
// Frame applies. A draw therefore never sees a half-updated viewport.
//
// # Usage
//
//	sc, _ := scene.Generate(settings, rand.New(rand.NewPCG(1, 2)))
//	d, err := render.NewDriver(renderer, sc.Batch, sc.Store, settings)
//	if err != nil {
//	    return err
//	}
//	d.AttachEvents(window)
//	return d.Run(ctx, updates, 0)
package render

package gpu

import (
	"errors"
	"strings"
	"testing"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop backend. Buffers on it keep
// their contents in memory, so uploads can be read back with readBuffer.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("noop backend exposes no adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	return openDev.Device, openDev.Queue, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

// readBuffer copies size bytes out of a noop buffer.
func readBuffer(t *testing.T, device hal.Device, buf hal.Buffer, size int) []byte {
	t.Helper()
	if buf == nil {
		t.Fatal("readBuffer: nil buffer")
	}
	m, err := device.MapBuffer(buf, 0, uint64(size))
	if err != nil {
		t.Fatalf("MapBuffer: %v", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), size))
	return out
}

// beginPass opens a render pass on a throwaway encoder.
func beginPass(t *testing.T, device hal.Device) (hal.RenderPassEncoder, func()) {
	t.Helper()
	enc, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "test"})
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	if err := enc.BeginEncoding("test"); err != nil {
		t.Fatalf("BeginEncoding: %v", err)
	}
	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{Label: "test_pass"})
	return rp, func() {
		rp.End()
		enc.DiscardEncoding()
	}
}

// skipOnNagaLimitation skips the test when err is a shader diagnostic for a
// WGSL feature naga does not implement yet.
func skipOnNagaLimitation(t *testing.T, err error) {
	t.Helper()
	var ce *CompileError
	if !errors.As(err, &ce) {
		return
	}
	msg := ce.Err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "unsupported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

// newTestRenderer creates a Renderer on the noop device. Shader diagnostics
// are covered by the compile tests, so any naga rejection skips here.
func newTestRenderer(t *testing.T, device hal.Device, queue hal.Queue) *Renderer {
	t.Helper()
	r, err := NewRenderer(device, queue)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			t.Skipf("Skipping: shader rejected by naga: %v", err)
		}
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

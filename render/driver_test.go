package render

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/batch"
	"github.com/mache102/gl-poly-outline/internal/attr"
	"github.com/mache102/gl-poly-outline/internal/gpu"
	"github.com/mache102/gl-poly-outline/vstore"
)

// recorder is a Renderer that logs calls.
type recorder struct {
	calls     []string
	shading   gpu.Shading
	rotations []float32
	drawErr   error
	resizeErr error
}

func (r *recorder) log(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) Resize(w, h uint32) error {
	r.log("resize %dx%d", w, h)
	return r.resizeErr
}

func (r *recorder) SetShading(s gpu.Shading) error {
	r.shading = s
	r.log("shading")
	return nil
}

func (r *recorder) Upload(*batch.Builder) error {
	r.log("upload")
	return nil
}

func (r *recorder) UpdateRotations(b *batch.Builder) error {
	r.rotations = slices.Clone(b.Rotations())
	r.log("rotations")
	return nil
}

func (r *recorder) UpdateColors(*batch.Builder) error {
	r.log("colors")
	return nil
}

func (r *recorder) UploadStore(*vstore.Builder) error {
	r.log("store")
	return nil
}

func (r *recorder) Draw(m polyoutline.Mode, _ polyoutline.Color) error {
	r.log("draw %s", m)
	return r.drawErr
}

func (r *recorder) reset() { r.calls = nil }

func testSettings() polyoutline.Settings {
	s := polyoutline.DefaultSettings()
	s.Width, s.Height = 640, 480
	return s
}

func testBatch(t *testing.T) *batch.Builder {
	t.Helper()
	b := batch.NewBuilder()
	_, err := b.AddPolygonInstance(batch.Polygon{
		Points: []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}},
		Size:   10,
		Color:  polyoutline.RGB(200, 0, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newTestDriver(t *testing.T, s polyoutline.Settings) (*Driver, *recorder) {
	t.Helper()
	rec := &recorder{}
	d, err := NewDriver(rec, testBatch(t), nil, s)
	if err != nil {
		t.Fatal(err)
	}
	return d, rec
}

func TestNewDriverUploadsBeforeDraw(t *testing.T) {
	d, rec := newTestDriver(t, testSettings())
	if !slices.Equal(rec.calls, []string{"upload", "shading"}) {
		t.Errorf("setup calls = %v", rec.calls)
	}
	rec.reset()

	if err := d.Frame(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"resize 640x480", "draw attr"}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("first frame calls = %v, want %v", rec.calls, want)
	}
}

func TestNewDriverRejects(t *testing.T) {
	s := testSettings()
	s.Mode = polyoutline.ModeVertexStore
	if _, err := NewDriver(&recorder{}, testBatch(t), nil, s); !errors.Is(err, ErrNoStore) {
		t.Errorf("err = %v, want ErrNoStore", err)
	}

	s = testSettings()
	s.BlendFactor = 2
	if _, err := NewDriver(&recorder{}, testBatch(t), nil, s); !errors.Is(err, polyoutline.ErrInvalidSettings) {
		t.Errorf("err = %v, want ErrInvalidSettings", err)
	}
}

func TestFrameAnimation(t *testing.T) {
	s := testSettings()
	s.Animate = true
	s.RotationStep = 0.5
	d, rec := newTestDriver(t, s)

	for i := 0; i < 2; i++ {
		if err := d.Frame(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	for i, r := range rec.rotations {
		if r != 1 {
			t.Fatalf("rotation %d = %v after two frames, want 1", i, r)
		}
	}
	if d.Stats().Frames != 2 {
		t.Errorf("Frames = %d", d.Stats().Frames)
	}
}

func TestResizeAppliedOnce(t *testing.T) {
	d, rec := newTestDriver(t, testSettings())
	d.Resize(100, 100)
	d.Resize(200, 150)
	_ = d.Frame(context.Background())
	_ = d.Frame(context.Background())

	var resizes []string
	for _, c := range rec.calls {
		if len(c) > 6 && c[:6] == "resize" {
			resizes = append(resizes, c)
		}
	}
	if !slices.Equal(resizes, []string{"resize 200x150"}) {
		t.Errorf("resizes = %v, want only the last request", resizes)
	}
}

func TestResizeRetriedAfterError(t *testing.T) {
	d, rec := newTestDriver(t, testSettings())
	rec.resizeErr = errors.New("device lost")
	if err := d.Frame(context.Background()); err == nil {
		t.Fatal("Frame() succeeded with a failing resize")
	}
	rec.resizeErr = nil
	rec.reset()

	if err := d.Frame(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"resize 640x480", "draw attr"}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestApplySettingsDimensions(t *testing.T) {
	d, rec := newTestDriver(t, testSettings())
	_ = d.Frame(context.Background())
	rec.reset()

	s := d.Settings()
	s.Width, s.Height = 800, 600
	s.Polygons = 5
	if err := d.ApplySettings(s); err != nil {
		t.Fatal(err)
	}
	if err := d.Frame(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.calls[0] != "resize 800x600" {
		t.Errorf("calls = %v, want a resize first", rec.calls)
	}
	if slices.Contains(rec.calls, "upload") {
		t.Errorf("calls = %v, scene change should not rebuild", rec.calls)
	}
}

func TestSceneChanges(t *testing.T) {
	prev := testSettings()
	s := prev
	s.Palette = append(slices.Clone(prev.Palette), polyoutline.RGB(1, 2, 3))
	s.MaxSize = prev.MaxSize + 1
	s.Circles = !prev.Circles
	got := sceneChanges(prev, s)
	if want := []string{"size", "palette", "circles"}; !slices.Equal(got, want) {
		t.Errorf("sceneChanges() = %v, want %v", got, want)
	}
	if got := sceneChanges(prev, prev); len(got) != 0 {
		t.Errorf("sceneChanges(same) = %v", got)
	}
}

func TestApplySettingsRecolorsOutline(t *testing.T) {
	d, rec := newTestDriver(t, testSettings())
	_ = d.Frame(context.Background())
	rec.reset()

	s := d.Settings()
	s.Outline = polyoutline.RGB(0, 0, 0)
	s.BlendFactor = 0.5
	if err := d.ApplySettings(s); err != nil {
		t.Fatal(err)
	}
	if d.Settings().BlendFactor != 0 {
		t.Error("settings applied before the next frame")
	}
	if err := d.Frame(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(rec.calls, "colors") {
		t.Errorf("calls = %v, want a color upload", rec.calls)
	}
	if rec.shading.BlendFactor != 0.5 {
		t.Errorf("shading blend = %v", rec.shading.BlendFactor)
	}

	want := polyoutline.RGB(0, 0, 0).Lerp(polyoutline.RGB(200, 0, 0), 0.5)
	for _, inst := range d.batch.Instances() {
		_ = d.batch.ForEachVertex(inst, func(v batch.VertexRef) {
			if v.Kind() == attr.OutlineQuad && v.Color() != want {
				t.Fatalf("outline vertex %d = %v, want %v", v.Index(), v.Color(), want)
			}
		})
	}
}

func TestApplySettingsValidates(t *testing.T) {
	d, _ := newTestDriver(t, testSettings())
	s := d.Settings()
	s.MinSize = -1
	if err := d.ApplySettings(s); !errors.Is(err, polyoutline.ErrInvalidSettings) {
		t.Errorf("err = %v, want ErrInvalidSettings", err)
	}
	s = d.Settings()
	s.Mode = polyoutline.ModeVertexStore
	if err := d.ApplySettings(s); !errors.Is(err, ErrNoStore) {
		t.Errorf("err = %v, want ErrNoStore", err)
	}
}

// events captures the callbacks a Driver registers.
type events struct {
	gpucontext.NullEventSource
	resize func(int, int)
	key    func(gpucontext.Key, gpucontext.Modifiers)
}

func (e *events) OnResize(fn func(int, int))                               { e.resize = fn }
func (e *events) OnKeyPress(fn func(gpucontext.Key, gpucontext.Modifiers)) { e.key = fn }

func TestAttachEvents(t *testing.T) {
	rec := &recorder{}
	tbl, _ := vstore.NewTable(8, 8)
	d, err := NewDriver(rec, testBatch(t), vstore.NewBuilder(tbl), testSettings())
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Frame(context.Background())

	src := &events{}
	d.AttachEvents(src)
	if src.resize == nil || src.key == nil {
		t.Fatal("driver did not subscribe")
	}

	src.resize(1024, 768)
	src.resize(0, 10) // minimized
	src.key(gpucontext.KeySpace, 0)
	src.key(gpucontext.KeyM, 0)
	src.key(gpucontext.KeyB, 0)
	src.key(gpucontext.KeyZ, 0)
	rec.reset()

	if err := d.Frame(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := d.Settings()
	if !got.Animate || !got.ShowBounds || got.Mode != polyoutline.ModeVertexStore {
		t.Errorf("settings after keys = animate:%v bounds:%v mode:%v", got.Animate, got.ShowBounds, got.Mode)
	}
	if rec.calls[0] != "resize 1024x768" {
		t.Errorf("calls = %v", rec.calls)
	}
	if rec.calls[len(rec.calls)-1] != "draw vstore" {
		t.Errorf("last call = %s, want draw vstore", rec.calls[len(rec.calls)-1])
	}
}

func TestRunStopsAtFrameLimit(t *testing.T) {
	d, _ := newTestDriver(t, testSettings())
	updates := make(chan polyoutline.Settings, 1)
	s := d.Settings()
	s.ShowBounds = true
	updates <- s
	close(updates)

	if err := d.Run(context.Background(), updates, 5); err != nil {
		t.Fatal(err)
	}
	if d.Stats().Frames != 5 {
		t.Errorf("Frames = %d, want 5", d.Stats().Frames)
	}
	if !d.Settings().ShowBounds {
		t.Error("update from channel not applied")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d, _ := newTestDriver(t, testSettings())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx, nil, 0); err != nil {
		t.Errorf("Run = %v, want nil on cancel", err)
	}
	if d.Stats().Frames != 0 {
		t.Errorf("Frames = %d after cancelled run", d.Stats().Frames)
	}
}

func TestRunReturnsDrawError(t *testing.T) {
	d, rec := newTestDriver(t, testSettings())
	rec.drawErr = errors.New("device lost")
	if err := d.Run(context.Background(), nil, 3); err == nil {
		t.Error("expected draw error")
	}
}

func TestStatsFPS(t *testing.T) {
	var f frameStats
	t0 := time.Unix(0, 0)
	f.reset(t0)
	for i := 1; i <= 61; i++ {
		end := t0.Add(time.Duration(i) * time.Second / 60)
		f.record(end.Add(-time.Millisecond), end)
	}
	if f.fps < 59 || f.fps > 61 {
		t.Errorf("fps = %v, want ~60", f.fps)
	}
	if f.last != time.Millisecond {
		t.Errorf("last = %v", f.last)
	}
}

package render

import (
	"fmt"
	"log/slog"
	"time"
)

// Stats reports frame timing.
type Stats struct {
	Frames    uint64
	FPS       float64
	LastFrame time.Duration
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frames", s.Frames),
		slog.Float64("fps", s.FPS),
		slog.Duration("last_frame", s.LastFrame),
	)
}

func (s Stats) String() string {
	return fmt.Sprintf("%d frames, %.1f fps, last %v", s.Frames, s.FPS, s.LastFrame)
}

// fpsWindow is the span over which FPS is averaged.
const fpsWindow = time.Second

type frameStats struct {
	frames      uint64
	last        time.Duration
	windowStart time.Time
	windowCount int
	fps         float64
}

func (f *frameStats) reset(now time.Time) {
	*f = frameStats{windowStart: now}
}

func (f *frameStats) record(start, end time.Time) {
	f.frames++
	f.last = end.Sub(start)
	f.windowCount++
	if elapsed := end.Sub(f.windowStart); elapsed >= fpsWindow {
		f.fps = float64(f.windowCount) / elapsed.Seconds()
		f.windowStart = end
		f.windowCount = 0
	}
}

// Stats returns the frame statistics so far. It is safe to call while
// frames are being rendered.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Frames: d.stats.frames, FPS: d.stats.fps, LastFrame: d.stats.last}
}

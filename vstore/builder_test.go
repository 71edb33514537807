package vstore

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/batch"
	"github.com/mache102/gl-poly-outline/internal/attr"
)

func square() []mgl32.Vec2 {
	return []mgl32.Vec2{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}}
}

func TestBake(t *testing.T) {
	tests := []struct {
		name string
		poly batch.Polygon
		want []Point
	}{
		{
			name: "scale and translate",
			poly: batch.Polygon{Points: square(), Size: 10, Offset: mgl32.Vec2{100, 50}},
			want: []Point{{90, 40}, {90, 60}, {110, 60}, {110, 40}},
		},
		{
			name: "quarter turn",
			poly: batch.Polygon{Points: []mgl32.Vec2{{1, 0}, {0, 1}, {-1, 0}}, Rotation: math.Pi / 2, Size: 4},
			want: []Point{{0, 4}, {-4, 0}, {0, -4}},
		},
		{
			name: "rounds to nearest",
			poly: batch.Polygon{Points: []mgl32.Vec2{{0.26, 0}, {0, 0.74}, {-0.26, -0.74}}, Size: 10},
			want: []Point{{3, 0}, {0, 7}, {-3, -7}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Bake(tt.poly)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("point %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBakeOutOfRange(t *testing.T) {
	_, err := Bake(batch.Polygon{Points: square(), Size: 1, Offset: mgl32.Vec2{40000, 0}})
	if err == nil {
		t.Fatal("expected int16 range error")
	}
}

func TestAddPolygonQuad(t *testing.T) {
	tbl, _ := NewTable(16, 16)
	b := NewBuilder(tbl, WithPadding(2.5))
	red := polyoutline.RGB(255, 0, 0)

	if err := b.AddPolygon(batch.Polygon{Points: square(), Size: 10, Offset: mgl32.Vec2{100, 50}, Color: red}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddPolygon(batch.Polygon{Points: square()[:3], Size: 2, Color: red}); err != nil {
		t.Fatal(err)
	}

	vs := b.Vertices()
	if len(vs) != 8 || len(b.Indices()) != 12 {
		t.Fatalf("vertices=%d indices=%d, want 8, 12", len(vs), len(b.Indices()))
	}

	// padding 2.5 rounds up to 3 pixels
	wantPos := [4]Point{{87, 37}, {87, 63}, {113, 63}, {113, 37}}
	for i, v := range vs[:4] {
		if (Point{v.X, v.Y}) != wantPos[i] {
			t.Errorf("corner %d = (%d, %d), want %v", i, v.X, v.Y, wantPos[i])
		}
		if v.Start != 0 || v.Count != 4 {
			t.Errorf("corner %d range = [%d,+%d), want [0,+4)", i, v.Start, v.Count)
		}
		if attr.DecodeKind(v.Attr) != attr.Body || v.Color != red {
			t.Errorf("corner %d attr=%d color=%v", i, v.Attr, v.Color)
		}
	}
	if vs[4].Start != 4 || vs[4].Count != 3 {
		t.Errorf("second quad range = [%d,+%d), want [4,+3)", vs[4].Start, vs[4].Count)
	}

	wantIdx := []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}
	for i, idx := range b.Indices() {
		if idx != wantIdx[i] {
			t.Errorf("index %d = %d, want %d", i, idx, wantIdx[i])
		}
	}

	pts, err := b.Polygon(0)
	if err != nil {
		t.Fatal(err)
	}
	if pts[2] != (Point{110, 60}) {
		t.Errorf("stored point 2 = %v, want {110 60}", pts[2])
	}
}

func TestAddPolygonOverflow(t *testing.T) {
	tbl, _ := NewTable(3, 2)
	b := NewBuilder(tbl)
	poly := batch.Polygon{Points: square(), Size: 5}

	if err := b.AddPolygon(poly); err != nil {
		t.Fatal(err)
	}
	err := b.AddPolygon(poly)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if b.Len() != 1 || len(b.Indices()) != 6 || tbl.Len() != 4 {
		t.Errorf("after overflow: quads=%d indices=%d cells=%d, want 1, 6, 4",
			b.Len(), len(b.Indices()), tbl.Len())
	}
}

func TestAddPolygonDegenerate(t *testing.T) {
	tbl, _ := NewTable(4, 4)
	b := NewBuilder(tbl)
	err := b.AddPolygon(batch.Polygon{Points: square()[:2], Size: 1})
	if !errors.Is(err, batch.ErrDegeneratePolygon) {
		t.Errorf("err = %v, want ErrDegeneratePolygon", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("table written on rejected polygon")
	}
}

func TestAddPolygonTruncates(t *testing.T) {
	ring := make([]mgl32.Vec2, 300)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(len(ring))
		ring[i] = mgl32.Vec2{float32(math.Cos(a)), float32(math.Sin(a))}
	}
	tbl, _ := NewTable(1024, 1)
	b := NewBuilder(tbl)
	if err := b.AddPolygon(batch.Polygon{Points: ring, Size: 100}); err != nil {
		t.Fatal(err)
	}
	if got := b.Vertices()[0].Count; got != batch.MaxPolygonPoints {
		t.Errorf("quad count = %d, want %d", got, batch.MaxPolygonPoints)
	}
	if got := tbl.Len(); got != batch.MaxPolygonPoints {
		t.Errorf("table cells = %d, want %d", got, batch.MaxPolygonPoints)
	}
}

func TestBuilderReset(t *testing.T) {
	tbl, _ := NewTable(4, 4)
	b := NewBuilder(tbl)
	_ = b.AddPolygon(batch.Polygon{Points: square(), Size: 5})
	b.Reset()
	if b.Len() != 0 || len(b.Indices()) != 0 || tbl.Len() != 0 {
		t.Errorf("Reset left quads=%d indices=%d cells=%d", b.Len(), len(b.Indices()), tbl.Len())
	}
	if _, err := b.Polygon(0); err == nil {
		t.Error("Polygon(0) after Reset should fail")
	}
}

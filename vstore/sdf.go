package vstore

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SignedDistance returns the distance from p to the polygon boundary,
// negative inside and positive outside. It mirrors sd_polygon in the
// vertex-store shader and accepts either winding.
func SignedDistance(p mgl32.Vec2, poly []Point) float32 {
	n := len(poly)
	if n == 0 {
		return math32.Inf(1)
	}
	at := func(i int) mgl32.Vec2 { return mgl32.Vec2{float32(poly[i].X), float32(poly[i].Y)} }

	first := p.Sub(at(0))
	d := first.Dot(first)
	s := float32(1)
	vj := at(n - 1)
	for i := 0; i < n; i++ {
		vi := at(i)
		e := vj.Sub(vi)
		w := p.Sub(vi)
		t := float32(0)
		if ee := e.Dot(e); ee > 0 {
			t = mgl32.Clamp(w.Dot(e)/ee, 0, 1)
		}
		bv := w.Sub(e.Mul(t))
		d = min(d, bv.Dot(bv))

		c0 := p.Y() >= vi.Y()
		c1 := p.Y() < vj.Y()
		c2 := e.X()*w.Y() > e.Y()*w.X()
		if (c0 && c1 && c2) || (!c0 && !c1 && !c2) {
			s = -s
		}
		vj = vi
	}
	return s * math32.Sqrt(d)
}

// ShadeParams holds the uniforms of the outline shading.
type ShadeParams struct {
	Fill        mgl32.Vec4
	Outline     mgl32.Vec4
	OutlineSize float32
	Smoothness  float32
	BlendFactor float32
	ShowBounds  bool
}

// Shade returns the straight-alpha color the vertex-store shader produces
// at signed distance d.
func Shade(d float32, p ShadeParams) mgl32.Vec4 {
	outline := mix(p.Outline, p.Fill, p.BlendFactor)

	var c mgl32.Vec4
	if d > 0 {
		b1 := max(0, p.OutlineSize-p.Smoothness)
		b2 := p.OutlineSize + p.Smoothness
		c = mix(outline, mgl32.Vec4{}, smoothstep(b1, b2, d))
	} else {
		a1 := -p.OutlineSize - p.Smoothness
		a2 := min(0, p.OutlineSize+p.Smoothness)
		c = mix(p.Fill, outline, smoothstep(a1, a2, d))
	}
	if p.ShowBounds && c.W() < 0.25 {
		c = mgl32.Vec4{p.Fill.X(), p.Fill.Y(), p.Fill.Z(), 0.25}
	}
	return c
}

func mix(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

// smoothstep matches the WGSL builtin.
func smoothstep(e0, e1, x float32) float32 {
	if e0 == e1 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := mgl32.Clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

package batch

import polyoutline "github.com/mache102/gl-poly-outline"

// Option configures a Builder during creation.
//
// Example:
//
//	b := batch.NewBuilder(
//	    batch.WithOutlineColor(polyoutline.Black),
//	    batch.WithCapacity(9*8*10000),
//	)
type Option func(*options)

// options holds optional configuration for Builder creation.
type options struct {
	outline  polyoutline.Color
	capacity int
}

// defaultOptions returns the default builder options.
func defaultOptions() options {
	return options{
		outline: polyoutline.MustParseColor("#484848"),
	}
}

// WithOutlineColor sets the color written into outline corner and edge
// vertices.
func WithOutlineColor(c polyoutline.Color) Option {
	return func(o *options) {
		o.outline = c
	}
}

// WithCapacity preallocates room for n vertices. A polygon of N points
// emits 9N vertices and a circle emits 4.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// Package gpu owns the GPU side of polyoutline: typed buffer upload,
// shader programs with named uniforms, the offscreen render target and
// the two draw paths (attribute batch and vertex store).
//
// All objects are built on the gogpu/wgpu HAL and are driven from a
// single rendering goroutine.
package gpu

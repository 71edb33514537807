// Package polyoutline renders large batches of convex polygons and circles
// with anti-aliased, configurable outlines.
//
// # Overview
//
// Geometry is packed on the CPU into one flat vertex/index stream. Every
// vertex carries a small attribute bitfield that routes it to one of four
// shading branches: polygon body, rounded outline corner, outline edge quad,
// or circle. A single indexed draw call then renders bodies and outlines
// together.
//
// An alternative vertex-store design keeps baked polygon vertices in a
// signed 16-bit texture and reconstructs each polygon per fragment to shade
// its outline from a signed distance.
//
// # Packages
//
//   - polyoutline: colors, settings, logging
//   - batch: geometry batcher and instance index tracker
//   - vstore: lookup-table vertex store and bounding-quad batcher
//   - render: per-frame driver (resize, animate, upload, draw)
//   - scene: procedural scene generation
//
// GPU resources live in internal/gpu and are built on gogpu/wgpu HAL.
//
// # Coordinate System
//
// World coordinates are pixels with the origin at the center of the target:
//   - X increases right
//   - Y increases up
//   - Angles in radians, counter-clockwise
package polyoutline

// Version is the current version of the library.
const Version = "0.1.0"

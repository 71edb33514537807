package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/mache102/gl-poly-outline/batch"
	"github.com/mache102/gl-poly-outline/vstore"
)

// ErrBatchChanged is returned by the partial update methods when the batch
// no longer has the vertex count of the last full Upload.
var ErrBatchChanged = errors.New("gpu: batch changed since last upload")

// Vertex buffer slots of the attribute pipeline, one field per buffer.
const (
	slotCoord = iota
	slotRotation
	slotSize
	slotOffset
	slotDirection
	slotAttr
	slotColor
	slotCount
)

var slotLabels = [slotCount]string{
	"batch_coords", "batch_rotations", "batch_sizes", "batch_offsets",
	"batch_outline_directions", "batch_attrs", "batch_colors",
}

// Uploader converts builder arrays into typed byte slices and owns the
// GPU buffers that hold them.
//
// Upload replaces every buffer. UpdateRotations and UpdateColors rewrite a
// single buffer in place and are meant for the per-frame path.
type Uploader struct {
	device hal.Device
	queue  hal.Queue

	vertex      [slotCount]hal.Buffer
	index       hal.Buffer
	vertexCount uint32
	indexCount  uint32

	storeVertex     hal.Buffer
	storeIndex      hal.Buffer
	storeIndexCount uint32
	table           hal.Texture
	tableView       hal.TextureView
	tableW, tableH  uint32

	// staging is reused by the partial updates.
	staging []byte
}

// NewUploader creates an Uploader with no buffers.
func NewUploader(device hal.Device, queue hal.Queue) *Uploader {
	return &Uploader{device: device, queue: queue}
}

// Upload encodes every array of b and replaces the batch buffers.
// An empty batch releases the buffers and draws nothing.
func (u *Uploader) Upload(b *batch.Builder) error {
	coords, err := encodeCoords(nil, b.Coords())
	if err != nil {
		return err
	}
	offsets, err := encodeOffsets(nil, b.Offsets())
	if err != nil {
		return err
	}
	data := [slotCount][]byte{
		slotCoord:     coords,
		slotRotation:  encodeFloat32s(nil, b.Rotations()),
		slotSize:      encodeFloat32s(nil, b.Sizes()),
		slotOffset:    offsets,
		slotDirection: encodeFloat32s(nil, b.OutlineDirections()),
		slotAttr:      encodeUint32s(nil, b.Attrs()),
		slotColor:     encodeColors(nil, b.Colors()),
	}
	indices := encodeUint32s(nil, b.Indices())

	u.destroyBatch()
	if b.Len() == 0 || len(b.Indices()) == 0 {
		return nil
	}

	for slot := range data {
		buf, err := u.createAndUploadBuffer(slotLabels[slot], data[slot],
			gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			u.destroyBatch()
			return err
		}
		u.vertex[slot] = buf
	}
	index, err := u.createAndUploadBuffer("batch_indices", indices,
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		u.destroyBatch()
		return err
	}
	u.index = index
	u.vertexCount = uint32(b.Len())
	u.indexCount = uint32(len(b.Indices()))

	total := len(indices)
	for _, d := range data {
		total += len(d)
	}
	slogger().Debug("gpu: batch uploaded",
		"vertices", u.vertexCount, "indices", u.indexCount, "bytes", total)
	return nil
}

// UpdateRotations rewrites only the rotation buffer.
func (u *Uploader) UpdateRotations(b *batch.Builder) error {
	if err := u.checkBatch(b); err != nil {
		return err
	}
	u.staging = encodeFloat32s(u.staging, b.Rotations())
	if err := u.queue.WriteBuffer(u.vertex[slotRotation], 0, u.staging); err != nil {
		return fmt.Errorf("write rotations: %w", err)
	}
	return nil
}

// UpdateColors rewrites only the color buffer.
func (u *Uploader) UpdateColors(b *batch.Builder) error {
	if err := u.checkBatch(b); err != nil {
		return err
	}
	u.staging = encodeColors(u.staging, b.Colors())
	if err := u.queue.WriteBuffer(u.vertex[slotColor], 0, u.staging); err != nil {
		return fmt.Errorf("write colors: %w", err)
	}
	return nil
}

func (u *Uploader) checkBatch(b *batch.Builder) error {
	if u.vertexCount == 0 || b.Len() != int(u.vertexCount) {
		return fmt.Errorf("%w: %d vertices uploaded, batch has %d", ErrBatchChanged, u.vertexCount, b.Len())
	}
	return nil
}

// UploadStore replaces the vertex-store quad buffers and writes the lookup
// table into an RG16Sint texture.
func (u *Uploader) UploadStore(s *vstore.Builder) error {
	u.destroyStore()
	if len(s.Indices()) == 0 {
		return nil
	}

	vb, err := u.createAndUploadBuffer("store_vertices", encodeStoreVertices(nil, s.Vertices()),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	u.storeVertex = vb
	ib, err := u.createAndUploadBuffer("store_indices", encodeUint32s(nil, s.Indices()),
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		u.destroyStore()
		return err
	}
	u.storeIndex = ib
	u.storeIndexCount = uint32(len(s.Indices()))

	if err := u.writeTable(s.Table()); err != nil {
		u.destroyStore()
		return err
	}
	slogger().Debug("gpu: vertex store uploaded",
		"quads", len(s.Indices())/6, "table_cells", s.Table().Len())
	return nil
}

func (u *Uploader) writeTable(t *vstore.Table) error {
	w, h := uint32(t.Width()), uint32(t.Height())
	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}
	tex, err := u.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "store_table",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRG16Sint,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create table texture: %w", err)
	}
	u.table = tex

	view, err := u.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "store_table_view",
		Format:        gputypes.TextureFormatRG16Sint,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create table view: %w", err)
	}
	u.tableView = view
	u.tableW, u.tableH = w, h

	err = u.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, Aspect: gputypes.TextureAspectAll},
		t.Bytes(),
		&hal.ImageDataLayout{BytesPerRow: w * vstore.CellBytes, RowsPerImage: h},
		&size,
	)
	if err != nil {
		return fmt.Errorf("write table texture: %w", err)
	}
	return nil
}

// VertexCount returns the number of uploaded batch vertices.
func (u *Uploader) VertexCount() uint32 { return u.vertexCount }

// IndexCount returns the number of uploaded batch indices.
func (u *Uploader) IndexCount() uint32 { return u.indexCount }

// StoreIndexCount returns the number of uploaded vertex-store indices.
func (u *Uploader) StoreIndexCount() uint32 { return u.storeIndexCount }

// TableView returns the lookup table view, or nil before UploadStore.
func (u *Uploader) TableView() hal.TextureView { return u.tableView }

// TableWidth returns the lookup table width in cells.
func (u *Uploader) TableWidth() uint32 { return u.tableW }

// bindBatch sets the attribute pipeline buffers on rp.
func (u *Uploader) bindBatch(rp hal.RenderPassEncoder) {
	for slot, buf := range u.vertex {
		rp.SetVertexBuffer(uint32(slot), buf, 0)
	}
	rp.SetIndexBuffer(u.index, gputypes.IndexFormatUint32, 0)
}

// bindStore sets the vertex-store pipeline buffers on rp.
func (u *Uploader) bindStore(rp hal.RenderPassEncoder) {
	rp.SetVertexBuffer(0, u.storeVertex, 0)
	rp.SetIndexBuffer(u.storeIndex, gputypes.IndexFormatUint32, 0)
}

// Destroy releases every buffer and texture. Safe to call multiple times.
func (u *Uploader) Destroy() {
	u.destroyBatch()
	u.destroyStore()
}

func (u *Uploader) destroyBatch() {
	for i, buf := range u.vertex {
		if buf != nil {
			u.device.DestroyBuffer(buf)
			u.vertex[i] = nil
		}
	}
	if u.index != nil {
		u.device.DestroyBuffer(u.index)
		u.index = nil
	}
	u.vertexCount = 0
	u.indexCount = 0
}

func (u *Uploader) destroyStore() {
	if u.tableView != nil {
		u.device.DestroyTextureView(u.tableView)
		u.tableView = nil
	}
	if u.table != nil {
		u.device.DestroyTexture(u.table)
		u.table = nil
	}
	if u.storeIndex != nil {
		u.device.DestroyBuffer(u.storeIndex)
		u.storeIndex = nil
	}
	if u.storeVertex != nil {
		u.device.DestroyBuffer(u.storeVertex)
		u.storeVertex = nil
	}
	u.storeIndexCount = 0
	u.tableW, u.tableH = 0, 0
}

// createAndUploadBuffer creates a GPU buffer and uploads data.
func (u *Uploader) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := u.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := u.queue.WriteBuffer(buf, 0, data); err != nil {
		u.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("write %s: %w", label, err)
	}
	return buf, nil
}

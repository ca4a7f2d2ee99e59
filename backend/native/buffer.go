//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// minBufferSize is the smallest GPU buffer the backend allocates.
const minBufferSize = 4096

// gpuBuffer is a GPU buffer that grows geometrically. A grown buffer
// replaces the old one; the old buffer is handed to retire because the
// previous frame may still reference it.
type gpuBuffer struct {
	label string
	usage gputypes.BufferUsage
	buf   hal.Buffer
	size  uint64
}

func newGPUBuffer(label string, usage gputypes.BufferUsage) *gpuBuffer {
	return &gpuBuffer{label: label, usage: usage | gputypes.BufferUsageCopyDst}
}

// nextBufferSize returns the size a buffer of cur bytes grows to when need
// bytes must fit: at least twice cur, rounded up to 4 bytes.
func nextBufferSize(cur, need uint64) uint64 {
	size := max(cur*2, minBufferSize)
	for size < need {
		size *= 2
	}
	return (size + 3) &^ 3
}

// ensure makes the buffer hold at least need bytes. It reports whether the
// underlying buffer was replaced.
func (b *gpuBuffer) ensure(device hal.Device, need uint64, retire func(func())) (bool, error) {
	if b.buf != nil && need <= b.size {
		return false, nil
	}
	size := nextBufferSize(b.size, need)
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label,
		Size:  size,
		Usage: b.usage,
	})
	if err != nil {
		return false, fmt.Errorf("create %s buffer (%d bytes): %w", b.label, size, err)
	}
	if old := b.buf; old != nil {
		retire(func() { device.DestroyBuffer(old) })
	}
	slogger().Debug("native: buffer grown", "buffer", b.label, "from", b.size, "to", size)
	b.buf = buf
	b.size = size
	return true, nil
}

// upload grows the buffer to fit data and writes it at offset 0.
func (b *gpuBuffer) upload(device hal.Device, queue hal.Queue, data []byte, retire func(func())) (bool, error) {
	grown, err := b.ensure(device, uint64(len(data)), retire)
	if err != nil {
		return false, err
	}
	if len(data) > 0 {
		if err := queue.WriteBuffer(b.buf, 0, data); err != nil {
			return grown, fmt.Errorf("write %s buffer: %w", b.label, err)
		}
	}
	return grown, nil
}

func (b *gpuBuffer) destroy(device hal.Device) {
	if b.buf != nil {
		device.DestroyBuffer(b.buf)
		b.buf = nil
		b.size = 0
	}
}

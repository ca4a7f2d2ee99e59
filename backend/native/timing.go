//go:build !nogpu

package native

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Timestamp query slots written by the terrain pass.
const (
	queryPassBegin uint32 = iota
	queryPassEnd
	queryCount
)

// timestampBytes is the size of the resolved queries.
const timestampBytes = uint64(queryCount) * 8

// gpuTimer measures the terrain pass with two timestamp queries. The
// queries are resolved into a GPU buffer and copied into a mappable one
// that is read once the frame has completed.
type gpuTimer struct {
	querySet hal.QuerySet
	resolve  hal.Buffer
	readback hal.Buffer
	period   float32
}

// newGPUTimer creates the timer. It returns nil and no error when the
// device does not support timestamp queries.
func newGPUTimer(device hal.Device, queue hal.Queue) (*gpuTimer, error) {
	qs, err := device.CreateQuerySet(&hal.QuerySetDescriptor{
		Label: "terrain_pass_timestamps",
		Type:  hal.QueryTypeTimestamp,
		Count: queryCount,
	})
	if errors.Is(err, hal.ErrTimestampsNotSupported) {
		slogger().Info("native: timestamp queries unsupported, GPU time is measured on the host")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create timestamp query set: %w", err)
	}
	t := &gpuTimer{querySet: qs, period: queue.GetTimestampPeriod()}

	t.resolve, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "terrain_timestamps_resolve",
		Size:  timestampBytes,
		Usage: gputypes.BufferUsageQueryResolve | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		t.destroy(device)
		return nil, fmt.Errorf("create timestamp resolve buffer: %w", err)
	}
	t.readback, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "terrain_timestamps_readback",
		Size:  timestampBytes,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.destroy(device)
		return nil, fmt.Errorf("create timestamp readback buffer: %w", err)
	}
	return t, nil
}

// passWrites returns the timestamp writes of the terrain pass.
func (t *gpuTimer) passWrites() *hal.RenderPassTimestampWrites {
	begin, end := queryPassBegin, queryPassEnd
	return &hal.RenderPassTimestampWrites{
		QuerySet:                  t.querySet,
		BeginningOfPassWriteIndex: &begin,
		EndOfPassWriteIndex:       &end,
	}
}

// recordResolve resolves the pass queries and copies them to the readback
// buffer. It must be recorded after the pass has ended.
func (t *gpuTimer) recordResolve(encoder hal.CommandEncoder) {
	encoder.ResolveQuerySet(t.querySet, 0, queryCount, t.resolve, 0)
	encoder.CopyBufferToBuffer(t.resolve, t.readback, []hal.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      timestampBytes,
	}})
}

// read returns the duration of the last resolved pass. The frame that
// wrote the queries must have completed.
func (t *gpuTimer) read(device hal.Device) (time.Duration, error) {
	m, err := device.MapBuffer(t.readback, 0, timestampBytes)
	if err != nil {
		return 0, fmt.Errorf("map timestamps: %w", err)
	}
	raw := unsafe.Slice((*byte)(m.Ptr), timestampBytes) //nolint:gosec // mapped readback range
	begin := binary.LittleEndian.Uint64(raw[queryPassBegin*8:])
	end := binary.LittleEndian.Uint64(raw[queryPassEnd*8:])
	if err := device.UnmapBuffer(t.readback); err != nil {
		return 0, fmt.Errorf("unmap timestamps: %w", err)
	}
	return ticksToDuration(begin, end, t.period), nil
}

// ticksToDuration converts a begin/end tick pair to a duration. period is
// the length of one tick in nanoseconds. A counter that did not advance
// yields zero.
func ticksToDuration(begin, end uint64, period float32) time.Duration {
	if end <= begin {
		return 0
	}
	return time.Duration(float64(end-begin) * float64(period))
}

func (t *gpuTimer) destroy(device hal.Device) {
	if t.readback != nil {
		device.DestroyBuffer(t.readback)
		t.readback = nil
	}
	if t.resolve != nil {
		device.DestroyBuffer(t.resolve)
		t.resolve = nil
	}
	if t.querySet != nil {
		device.DestroyQuerySet(t.querySet)
		t.querySet = nil
	}
}

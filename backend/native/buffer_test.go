//go:build !nogpu

package native

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestNextBufferSize(t *testing.T) {
	tests := []struct {
		name      string
		cur, need uint64
		want      uint64
	}{
		{"empty small", 0, 10, minBufferSize},
		{"empty exact min", 0, minBufferSize, minBufferSize},
		{"empty large", 0, 10000, 16384},
		{"double", 8192, 8193, 16384},
		{"double covers", 8192, 100, 16384},
		{"far beyond", 4096, 100000, 131072},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextBufferSize(tt.cur, tt.need)
			if got != tt.want {
				t.Errorf("nextBufferSize(%d, %d) = %d, want %d", tt.cur, tt.need, got, tt.want)
			}
			if got < tt.need || got < 2*tt.cur || got%4 != 0 {
				t.Errorf("nextBufferSize(%d, %d) = %d violates growth rule", tt.cur, tt.need, got)
			}
		})
	}
}

func TestGPUBufferGrowRetiresOld(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	b := newGPUBuffer("test_vertices", gputypes.BufferUsageVertex)
	var retired []func()
	retire := func(f func()) { retired = append(retired, f) }

	grown, err := b.upload(device, queue, make([]byte, 100), retire)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !grown || b.size != minBufferSize {
		t.Fatalf("first upload: grown=%v size=%d", grown, b.size)
	}
	if len(retired) != 0 {
		t.Fatalf("first allocation retired %d buffers", len(retired))
	}

	grown, err = b.upload(device, queue, make([]byte, 200), retire)
	if err != nil || grown {
		t.Fatalf("fitting upload: grown=%v err=%v", grown, err)
	}

	grown, err = b.upload(device, queue, make([]byte, 3*minBufferSize), retire)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !grown || b.size != 4*minBufferSize {
		t.Fatalf("growing upload: grown=%v size=%d", grown, b.size)
	}
	if len(retired) != 1 {
		t.Fatalf("retired = %d, want 1", len(retired))
	}
	for _, f := range retired {
		f()
	}
	b.destroy(device)
	if b.buf != nil || b.size != 0 {
		t.Error("destroy did not reset buffer")
	}
}

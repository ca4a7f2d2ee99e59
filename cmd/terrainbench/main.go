// Command terrainbench renders a synthetic terrain through the batch
// renderer and reports per-frame statistics.
//
// Usage:
//
//	terrainbench -backend=vulkan -frames=1200 -chunks=256 -out=frame.webp
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/terrain"
	"github.com/gogpu/terrain/backend/native"
)

func main() {
	var (
		backendName = flag.String("backend", "noop", "GPU backend: noop or vulkan")
		frames      = flag.Int("frames", 600, "frames to render")
		chunks      = flag.Int("chunks", 256, "chunks in the scene")
		width       = flag.Int("width", 1280, "frame width")
		height      = flag.Int("height", 720, "frame height")
		distance    = flag.Int("distance", 12, "render distance in chunks")
		reimport    = flag.Int("reimport", 600, "re-import textures every N frames (0 disables)")
		output      = flag.String("out", "", "write the last frame to this WebP file")
		strict      = flag.Bool("strict", false, "panic on renderer contract violations")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	terrain.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	be, cleanup, err := openBackend(*backendName)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", *backendName, err)
	}
	defer cleanup()

	r := terrain.New(be, terrain.WithStrict(*strict))
	defer r.Close()

	if err := importTextures(r, 0); err != nil {
		log.Fatalf("Failed to import textures: %v", err)
	}

	meshes := buildScene(*chunks)
	side := int(math.Ceil(math.Sqrt(float64(*chunks))))
	center := mgl32.Vec3{float32(side * chunkSize / 2), 8, float32(side * chunkSize / 2)}
	aspect := float32(*width) / float32(*height)
	proj := clipDepthZeroToOne.Mul4(mgl32.Perspective(mgl32.DegToRad(70), aspect, 0.1, float32(*distance*chunkSize*2)))

	var (
		totals   [terrain.NumCategories]terrain.CategoryStats
		gpuTotal time.Duration
		gpuCount int
		lastGPU  uint64
	)
	start := time.Now()
	for f := 0; f < *frames; f++ {
		if *reimport > 0 && f > 0 && f%*reimport == 0 {
			if err := importTextures(r, f / *reimport); err != nil {
				log.Fatalf("Failed to re-import textures: %v", err)
			}
		}

		angle := float64(f) * 0.01
		radius := float64(side*chunkSize) * 0.6
		eye := mgl32.Vec3{
			center.X() + float32(radius*math.Cos(angle)),
			28,
			center.Z() + float32(radius*math.Sin(angle)),
		}
		viewProj := proj.Mul4(mgl32.LookAtV(eye, center, mgl32.Vec3{0, 1, 0}))

		for _, cat := range terrain.Categories() {
			r.Clear(cat)
		}
		appendScene(r, meshes, eye)

		if err := r.BeginFrame(*width, *height, false); err != nil {
			continue
		}
		for _, cat := range terrain.Categories() {
			if err := r.Render(cat, terrain.DefaultFrameParams(cat, viewProj, *distance)); err != nil {
				log.Printf("render %s: %v", cat, err)
			}
		}
		if err := r.EndFrame(); err != nil {
			log.Fatalf("Failed to end frame %d: %v", f, err)
		}

		s := r.Stats()
		for i, c := range s.Categories {
			totals[i].Draws += c.Draws
			totals[i].Vertices += c.Vertices
			totals[i].Chunks += c.Chunks
			totals[i].CPUTime += c.CPUTime
		}
		if s.GPUTimeFrame != lastGPU {
			lastGPU = s.GPUTimeFrame
			gpuTotal += s.GPUTime
			gpuCount++
		}
	}
	elapsed := time.Since(start)

	report(r.Stats(), totals, elapsed, gpuTotal, gpuCount, len(meshes))

	if *output != "" {
		if err := writeFrame(be, *output); err != nil {
			log.Fatalf("Failed to save frame: %v", err)
		}
		log.Printf("Frame saved to %s (%dx%d)\n", *output, *width, *height)
	}
}

// clipDepthZeroToOne maps OpenGL clip depth [-w, w] to [0, w].
var clipDepthZeroToOne = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// openBackend opens the named backend. The cleanup function releases any
// device the command created itself.
func openBackend(name string) (*native.Backend, func(), error) {
	switch name {
	case "vulkan":
		be, err := native.OpenVulkan()
		if err != nil {
			return nil, nil, err
		}
		return be, func() {}, nil
	case "noop":
		instance, err := noop.API{}.CreateInstance(nil)
		if err != nil {
			return nil, nil, err
		}
		adapters := instance.EnumerateAdapters(nil)
		openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
		if err != nil {
			instance.Destroy()
			return nil, nil, err
		}
		be, err := native.New(openDev.Device, openDev.Queue)
		if err != nil {
			openDev.Device.Destroy()
			instance.Destroy()
			return nil, nil, err
		}
		return be, func() {
			be.Close()
			openDev.Device.Destroy()
			instance.Destroy()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}

func importTextures(r *terrain.Renderer, variant int) error {
	atlas := buildAtlas(variant)
	if err := r.ImportTexture(terrain.SlotAtlas, atlas.Rect.Dx(), atlas.Rect.Dy(), atlas.Pix); err != nil {
		return err
	}
	lm := buildLightmap()
	return r.ImportTexture(terrain.SlotLightmap, lm.Rect.Dx(), lm.Rect.Dy(), lm.Pix)
}

func buildScene(n int) []*chunkMesh {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	meshes := make([]*chunkMesh, 0, n)
	for i := 0; i < n; i++ {
		meshes = append(meshes, buildChunk(i%side, i/side))
	}
	return meshes
}

// appendScene appends every chunk. Translucent chunks go farthest first.
func appendScene(r *terrain.Renderer, meshes []*chunkMesh, eye mgl32.Vec3) {
	for _, cat := range []terrain.Category{terrain.Opaque, terrain.AlphaMipped, terrain.AlphaSharp} {
		for _, m := range meshes {
			appendChunk(r, cat, m)
		}
	}

	order := make([]*chunkMesh, len(meshes))
	copy(order, meshes)
	dist := func(m *chunkMesh) float32 {
		c := mgl32.Vec3{m.origin[0] + chunkSize/2, m.origin[1], m.origin[2] + chunkSize/2}
		return c.Sub(eye).Len()
	}
	sortByDistanceDesc(order, dist)
	for _, m := range order {
		appendChunk(r, terrain.Translucent, m)
	}
}

func appendChunk(r *terrain.Renderer, cat terrain.Category, m *chunkMesh) {
	if m.vertices[cat] == 0 {
		return
	}
	// Dropped chunks are counted in Stats.
	_ = r.Append(cat, m.data[cat], m.vertices[cat], m.origin[0], m.origin[1], m.origin[2])
}

func sortByDistanceDesc(ms []*chunkMesh, dist func(*chunkMesh) float32) {
	// Insertion sort; the order barely changes between frames.
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && dist(ms[j]) > dist(ms[j-1]); j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

func report(s terrain.Stats, totals [terrain.NumCategories]terrain.CategoryStats, elapsed, gpuTotal time.Duration, gpuCount, chunks int) {
	p := message.NewPrinter(language.English)
	p.Printf("terrainbench: %d frames, %d chunks, %v elapsed (%.1f fps)\n",
		s.Frames, chunks, elapsed.Round(time.Millisecond), float64(s.Frames)/elapsed.Seconds())
	p.Printf("  skipped %d, dropped chunks %d, contract violations %d\n",
		s.SkippedFrames, s.DroppedChunks, s.ContractViolations)
	if gpuCount > 0 {
		p.Printf("  gpu time avg %v over %d frames\n", (gpuTotal / time.Duration(gpuCount)).Round(time.Microsecond), gpuCount)
	}
	n := max(int(s.Frames), 1)
	for _, cat := range terrain.Categories() {
		t := totals[cat]
		p.Printf("  %-13s draws/frame %.2f  vertices/frame %d  chunks/frame %d  cpu/frame %v\n",
			cat, float64(t.Draws)/float64(n), t.Vertices/n, t.Chunks/n, (t.CPUTime / time.Duration(n)).Round(time.Microsecond))
	}
}

func writeFrame(be *native.Backend, path string) error {
	img, err := be.ReadPixels()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

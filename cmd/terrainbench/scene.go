package main

import (
	"image"
	"image/color"
	"math"

	"github.com/gogpu/terrain"
)

const (
	chunkSize  = 16
	waterLevel = 6
	atlasTiles = 4
	tilePixels = 16
)

// Atlas tiles used by the scene.
const (
	tileGrass = iota
	tileStone
	tileLeaves
	tileFlower
	tileWater
)

// chunkMesh is the encoded geometry of one chunk, split by category.
type chunkMesh struct {
	origin   [3]float32
	data     [terrain.NumCategories][]byte
	vertices [terrain.NumCategories]int
}

func (m *chunkMesh) addQuad(cat terrain.Category, p [4][3]float32, c [4]uint8, tile int, light int16) {
	u0 := float32(tile%atlasTiles) / atlasTiles
	v0 := float32(tile/atlasTiles) / atlasTiles
	const d = 1.0 / atlasTiles
	uvs := [4][2]float32{{u0, v0 + d}, {u0 + d, v0 + d}, {u0 + d, v0}, {u0, v0}}
	for i := range p {
		v := terrain.Vertex{Position: p[i], Color: c, UV: uvs[i], Light: [2]int16{light, terrain.FullLight}}
		m.data[cat] = v.AppendTo(m.data[cat])
	}
	m.vertices[cat] += 4
}

// height returns the terrain column height at world (x, z).
func height(x, z int) int {
	fx, fz := float64(x), float64(z)
	h := 8 + 4*math.Sin(fx*0.11) + 3*math.Cos(fz*0.07) + 2*math.Sin((fx+fz)*0.23)
	return int(h)
}

// hash is a small integer hash for scattering decorations.
func hash(x, z int) uint32 {
	h := uint32(x)*73856093 ^ uint32(z)*19349663
	h ^= h >> 13
	h *= 0x5bd1e995
	return h ^ h>>15
}

// buildChunk generates the heightmap surface of the chunk at grid (cx, cz).
// Positions are chunk local; the chunk origin becomes its world offset.
func buildChunk(cx, cz int) *chunkMesh {
	m := &chunkMesh{origin: [3]float32{float32(cx * chunkSize), 0, float32(cz * chunkSize)}}
	for lz := 0; lz < chunkSize; lz++ {
		for lx := 0; lx < chunkSize; lx++ {
			wx, wz := cx*chunkSize+lx, cz*chunkSize+lz
			h := height(wx, wz)
			x, z, y := float32(lx), float32(lz), float32(h)
			top := [4][3]float32{{x, y, z + 1}, {x + 1, y, z + 1}, {x + 1, y, z}, {x, y, z}}

			tile := tileGrass
			if h < waterLevel+1 {
				tile = tileStone
			}
			shade := uint8(150 + 8*min(h, 12))
			m.addQuad(terrain.Opaque, top, [4]uint8{shade, shade, shade, 255}, tile, terrain.FullLight)

			// Exposed side towards +x.
			if nh := height(wx+1, wz); nh < h {
				side := [4][3]float32{{x + 1, float32(nh), z + 1}, {x + 1, float32(nh), z}, {x + 1, y, z}, {x + 1, y, z + 1}}
				m.addQuad(terrain.Opaque, side, [4]uint8{180, 180, 180, 255}, tileStone, terrain.FullLight*3/4)
			}

			if h < waterLevel {
				wy := float32(waterLevel) - 0.1
				water := [4][3]float32{{x, wy, z + 1}, {x + 1, wy, z + 1}, {x + 1, wy, z}, {x, wy, z}}
				m.addQuad(terrain.Translucent, water, [4]uint8{255, 255, 255, 160}, tileWater, terrain.FullLight)
				continue
			}

			switch r := hash(wx, wz); {
			case r%23 == 0:
				// Flowers are two crossed quads.
				c := [4]uint8{255, 255, 255, 255}
				y1 := y + 1
				m.addQuad(terrain.AlphaSharp, [4][3]float32{{x, y, z}, {x + 1, y, z + 1}, {x + 1, y1, z + 1}, {x, y1, z}}, c, tileFlower, terrain.FullLight)
				m.addQuad(terrain.AlphaSharp, [4][3]float32{{x + 1, y, z}, {x, y, z + 1}, {x, y1, z + 1}, {x + 1, y1, z}}, c, tileFlower, terrain.FullLight)
			case r%31 == 0:
				// A leaf canopy floating above the column.
				ly := y + 3
				leaf := [4][3]float32{{x - 1, ly, z + 2}, {x + 2, ly, z + 2}, {x + 2, ly, z - 1}, {x - 1, ly, z - 1}}
				m.addQuad(terrain.AlphaMipped, leaf, [4]uint8{120, 200, 90, 255}, tileLeaves, terrain.FullLight)
			}
		}
	}
	return m
}

// buildAtlas draws the tile atlas. variant shifts the palette so that
// re-imports are visible.
func buildAtlas(variant int) *image.RGBA {
	size := atlasTiles * tilePixels
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	tint := uint8(variant * 16)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			tile := (y/tilePixels)*atlasTiles + x/tilePixels
			tx, ty := x%tilePixels, y%tilePixels
			checker := uint8(((tx/4)+(ty/4))%2) * 24
			var c color.RGBA
			switch tile {
			case tileGrass:
				c = color.RGBA{70 + checker, 160 + checker, 60 + tint, 255}
			case tileStone:
				c = color.RGBA{130 + checker, 130 + checker, 135, 255}
			case tileLeaves:
				c = color.RGBA{60, 140 + checker, 50, 255}
				if (tx*7+ty*3)%5 == 0 {
					c.A = 0
				}
			case tileFlower:
				c = color.RGBA{230, 60 + tint, 90, 255}
				if tx < 6 || tx > 9 || ty < 4 {
					c.A = 0
				}
			case tileWater:
				c = color.RGBA{40, 90 + checker, 200, 255}
			default:
				c = color.RGBA{255, 0, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// buildLightmap is a 16x16 gradient indexed by block and sky light.
func buildLightmap() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			l := uint8(40 + max(x, y)*13)
			img.SetRGBA(x, y, color.RGBA{l, l, l, 255})
		}
	}
	return img
}

//go:build !nogpu

package native

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/terrain.wgsl
var terrainShaderSource string

// Shader entry points.
const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)

// TerrainShaderSource returns the WGSL source shared by all category
// pipelines.
func TerrainShaderSource() string { return terrainShaderSource }

// ValidateShaders compiles the terrain shader to SPIR-V with naga and
// reports the first error.
func ValidateShaders() error {
	spirv, err := naga.Compile(terrainShaderSource)
	if err != nil {
		return fmt.Errorf("compile terrain shader: %w", err)
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return fmt.Errorf("compile terrain shader: invalid SPIR-V size %d", len(spirv))
	}
	return nil
}

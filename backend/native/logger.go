//go:build !nogpu

package native

import (
	"log/slog"

	"github.com/gogpu/terrain"
)

// slogger returns the logger shared with the terrain package.
// All logging in backend/native goes through this function.
func slogger() *slog.Logger { return terrain.Logger() }

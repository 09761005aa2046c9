// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/pgo/internal/adapters/cas"
	_ "go.trai.ch/pgo/internal/adapters/config"
	_ "go.trai.ch/pgo/internal/adapters/logger"
	_ "go.trai.ch/pgo/internal/adapters/shell"
	_ "go.trai.ch/pgo/internal/adapters/telemetry/progrock"
	// Register app nodes.
	_ "go.trai.ch/pgo/internal/app"
)

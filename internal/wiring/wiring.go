// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/gantry/internal/adapters/cache"
	_ "go.trai.ch/gantry/internal/adapters/config"
	_ "go.trai.ch/gantry/internal/adapters/expr"
	_ "go.trai.ch/gantry/internal/adapters/fs"
	_ "go.trai.ch/gantry/internal/adapters/git"
	_ "go.trai.ch/gantry/internal/adapters/github"
	_ "go.trai.ch/gantry/internal/adapters/logger"
	_ "go.trai.ch/gantry/internal/adapters/shell"
	_ "go.trai.ch/gantry/internal/adapters/telemetry/progrock"
	_ "go.trai.ch/gantry/internal/adapters/toolchain"
	_ "go.trai.ch/gantry/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/gantry/internal/app"
	_ "go.trai.ch/gantry/internal/engine/planner"
	_ "go.trai.ch/gantry/internal/engine/runner"
	_ "go.trai.ch/gantry/internal/engine/scheduler"
)

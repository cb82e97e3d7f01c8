// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/geopose_telemetry/internal/app"
	"github.com/relabs-tech/geopose_telemetry/internal/cli"
)

func main() {
	cli.Execute(cli.NewCommand("web", "Serve the latest geopose and a live websocket stream over HTTP", app.RunWeb))
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/geopose_telemetry/internal/app"
	"github.com/relabs-tech/geopose_telemetry/internal/cli"
)

func main() {
	cli.Execute(cli.NewCommand("sync_probe", "Measure clock offset and round-trip delay against a time-sync responder", app.RunSyncProbe))
}

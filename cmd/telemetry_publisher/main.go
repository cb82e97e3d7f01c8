// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/geopose_telemetry/internal/app"
	"github.com/relabs-tech/geopose_telemetry/internal/cli"
)

func main() {
	cli.Execute(cli.NewCommand("telemetry_publisher", "Publish synthetic geopose telemetry over MQTT at a fixed rate", app.RunTelemetryPublisher))
}

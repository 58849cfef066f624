package main

import (
	"os"

	"github.com/Paintersrp/procwarden/internal/cli"
	"github.com/Paintersrp/procwarden/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	os.Exit(cli.Execute())
}

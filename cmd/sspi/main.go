package main

import (
	"os"

	"github.com/sspi-index/sspi-engine/internal/adapters/driving/cli"
	"github.com/sspi-index/sspi-engine/internal/app"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

func main() {
	cli.SetFactory(app.Factory)
	err := cli.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

package main

import (
	"github.com/edgestats/edgestats/internal/buildinfo"
	"github.com/edgestats/edgestats/internal/cli"
	"github.com/edgestats/edgestats/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	cli.Execute()
}

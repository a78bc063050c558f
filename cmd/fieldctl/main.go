package main

import (
	"github.com/robotalks/fieldlink/pkg/cli/sh"
	"github.com/robotalks/fieldlink/pkg/config"

	_ "github.com/robotalks/fieldlink/pkg/cli/cmds/device"
)

//go-build: CGO_ENABLED=0

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}

package main

import (
	"github.com/robotalks/radar.go/pkg/cli/sh"

	_ "github.com/robotalks/radar.go/pkg/cli/cmds/radar"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}

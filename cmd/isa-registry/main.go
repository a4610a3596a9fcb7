package main

import (
	"isa-registry/cmd/isa-registry/commands"
	"isa-registry/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/canonical/appstream-charms/cmd"
)

// Version is the version of the agent.
var Version = "0.1.0"

// NewAgentCommand returns the appstream-agent command with all its
// sub-commands registered.
func NewAgentCommand() *cmd.SuperCommand {
	agent := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "appstream-agent",
		Purpose: "converge hosts of the appstream metadata service",
		Doc: `
appstream-agent drives a host running either the metadata generator or a
web frontend serving its output towards the state its configuration and
relations describe. Lifecycle events and operator actions are handled one
at a time; an event whose preconditions are not met yet is deferred and
delivered again before the next one.
`,
		Version: Version,
	})
	agent.Register(&dispatchCommand{})
	agent.Register(&runCommand{})
	agent.Register(&statusCommand{})
	return agent
}

func main() {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		os.Exit(2)
	}
	os.Exit(NewAgentCommand().Main(ctx, os.Args[1:]))
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/juju/errors"
)

// SuperCommandParams describes a SuperCommand.
type SuperCommandParams struct {
	Name    string
	Purpose string
	Doc     string
	Version string
}

// SuperCommand is a Command that selects a sub-command by its first
// positional argument and hands it the remaining arguments.
type SuperCommand struct {
	CommandBase

	params   SuperCommandParams
	subcmds  map[string]Command
	selected Command
}

// NewSuperCommand returns a SuperCommand with no sub-commands.
func NewSuperCommand(params SuperCommandParams) *SuperCommand {
	return &SuperCommand{
		params:  params,
		subcmds: make(map[string]Command),
	}
}

// Register makes c available as a sub-command.
func (c *SuperCommand) Register(subcmd Command) {
	name := subcmd.Info().Name
	if _, found := c.subcmds[name]; found {
		panic(fmt.Sprintf("command already registered: %q", name))
	}
	c.subcmds[name] = subcmd
}

// Info implements Command.
func (c *SuperCommand) Info() *Info {
	return &Info{
		Name:    c.params.Name,
		Args:    "<command> ...",
		Purpose: c.params.Purpose,
		Doc:     strings.TrimSpace(c.params.Doc + "\n\n" + c.describeCommands()),
	}
}

func (c *SuperCommand) describeCommands() string {
	names := make([]string, 0, len(c.subcmds))
	longest := 0
	for name := range c.subcmds {
		names = append(names, name)
		if len(name) > longest {
			longest = len(name)
		}
	}
	sort.Strings(names)
	lines := []string{"commands:"}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("    %-*s - %s", longest, name, c.subcmds[name].Info().Purpose))
	}
	return strings.Join(lines, "\n")
}

// Init implements Command.
func (c *SuperCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no command specified")
	}
	if args[0] == "version" && c.params.Version != "" {
		c.selected = versionCommand{version: c.params.Version}
		return CheckEmpty(args[1:])
	}
	subcmd, found := c.subcmds[args[0]]
	if !found {
		return errors.Errorf("unrecognized command: %s %s", c.params.Name, args[0])
	}
	c.selected = subcmd
	return InitCommand(subcmd, args[1:])
}

// Run implements Command.
func (c *SuperCommand) Run(ctx *Context) error {
	if c.selected == nil {
		return errors.New("no command selected")
	}
	logger.Infof("running %s %s [%s %s %s]",
		c.params.Name, c.selected.Info().Name, c.params.Version, runtime.Compiler, runtime.Version())
	return c.selected.Run(ctx)
}

// Main runs c, printing the help of a sub-command when it is asked for.
func (c *SuperCommand) Main(ctx *Context, args []string) int {
	if len(args) > 1 {
		if subcmd, found := c.subcmds[args[0]]; found && isHelpFlag(args[1:]) {
			f := NewFlagSet(subcmd)
			info := *subcmd.Info()
			info.Name = c.params.Name + " " + info.Name
			ctx.Stdout.Write(info.Help(f))
			return 0
		}
	}
	return Main(c, ctx, args)
}

func isHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

type versionCommand struct {
	CommandBase
	version string
}

func (v versionCommand) Info() *Info {
	return &Info{Name: "version", Purpose: "print the current version"}
}

func (v versionCommand) Run(ctx *Context) error {
	_, err := fmt.Fprintln(ctx.Stdout, v.version)
	return err
}

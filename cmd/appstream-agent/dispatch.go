// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/utils/v4/keyvalues"

	"github.com/canonical/appstream-charms/cmd"
	"github.com/canonical/appstream-charms/internal/commands"
	"github.com/canonical/appstream-charms/internal/hook"
)

const (
	dispatchPathEnvKey = "JUJU_DISPATCH_PATH"
	remoteUnitEnvKey   = "JUJU_REMOTE_UNIT"
)

const dispatchDoc = `
Handle a single lifecycle event or operator action. The event is named as
the unit agent names hooks, for example:

    appstream-agent dispatch --charm generator install
    appstream-agent dispatch --charm frontend rsync-relation-joined --remote-unit appstream-generator/0
    appstream-agent dispatch --charm generator forget-action packages='["gimp"]'

When no event is given it is taken from $JUJU_DISPATCH_PATH. Action
parameters are given as key=value pairs after the event name or, with
--hook-tools, read with action-get.
`

type dispatchCommand struct {
	cmd.CommandBase
	agentFlags

	remoteUnit      string
	storageLocation string
	args            []string
}

func (c *dispatchCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:        "dispatch",
		Args:        "[<event> [<key>=<value> ...]]",
		Purpose:     "handle a lifecycle event or action",
		Doc:         dispatchDoc,
		Intersperse: true,
	}
}

func (c *dispatchCommand) SetFlags(f *gnuflag.FlagSet) {
	c.agentFlags.SetFlags(f)
	f.StringVar(&c.remoteUnit, "remote-unit", "", "Unit that triggered a relation event (default $"+remoteUnitEnvKey+")")
	f.StringVar(&c.storageLocation, "storage-location", "", "Mount point of the storage of a storage event")
}

func (c *dispatchCommand) Init(args []string) error {
	c.args = args
	return nil
}

func (c *dispatchCommand) Run(ctx *cmd.Context) error {
	info, err := c.event(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	a, err := newAgent(ctx, &c.agentFlags)
	if err != nil {
		return errors.Trace(err)
	}
	defer a.Close()

	if info.Kind == hook.Action && info.Params == nil && c.hookTools {
		if info.Params, err = actionParams(commands.DefaultRunner{}); err != nil {
			return errors.Trace(err)
		}
	}
	result, err := a.dispatcher.Dispatch(info)
	fmt.Fprintln(ctx.Stdout, describeResult(info.Name(), result))
	if err != nil {
		return cmd.ErrSilent
	}
	return nil
}

// event builds the event to dispatch from the arguments and environment.
func (c *dispatchCommand) event(ctx *cmd.Context) (hook.Info, error) {
	var name string
	var rest []string
	if len(c.args) > 0 {
		name, rest = c.args[0], c.args[1:]
	} else if name = hookNameFromDispatchPath(ctx.Getenv(dispatchPathEnvKey)); name == "" {
		return hook.Info{}, errors.New("no event specified")
	}
	info, err := hook.Parse(name)
	if err != nil {
		return hook.Info{}, errors.Trace(err)
	}
	switch {
	case info.Kind.IsRelation():
		info.RemoteUnit = c.remoteUnit
		if info.RemoteUnit == "" {
			info.RemoteUnit = ctx.Getenv(remoteUnitEnvKey)
		}
	case info.Kind.IsStorage():
		info.StorageLocation = ctx.AbsPath(c.storageLocation)
	}
	if len(rest) > 0 {
		if info.Kind != hook.Action {
			return hook.Info{}, errors.Errorf("%s takes no parameters", name)
		}
		if info.Params, err = keyvalues.Parse(rest, true); err != nil {
			return hook.Info{}, errors.Trace(err)
		}
	}
	return info, errors.Trace(info.Validate())
}

// hookNameFromDispatchPath maps a dispatch path such as "hooks/install"
// or "actions/forget" to an event name.
func hookNameFromDispatchPath(dispatchPath string) string {
	dir, base := path.Split(dispatchPath)
	switch strings.TrimSuffix(dir, "/") {
	case "hooks":
		return base
	case "actions":
		return base + "-" + string(hook.Action)
	}
	return ""
}

// actionParams reads the parameters of the running action. Values that
// are not strings are passed on JSON encoded.
func actionParams(runner commands.Runner) (map[string]string, error) {
	out, err := runner.RunCommand("action-get", "--format=json")
	if err != nil {
		return nil, errors.Trace(err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, errors.Annotate(err, "decoding action parameters")
	}
	params := make(map[string]string, len(raw))
	for key, value := range raw {
		if s, ok := value.(string); ok {
			params[key] = s
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Trace(err)
		}
		params[key] = string(data)
	}
	return params, nil
}

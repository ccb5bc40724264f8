// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package generator

import (
	"github.com/juju/errors"

	"github.com/canonical/appstream-charms/internal/actions"
	"github.com/canonical/appstream-charms/internal/dispatcher"
	"github.com/canonical/appstream-charms/internal/hook"
)

func (ch *Charm) clean(hook.Info) dispatcher.Result {
	return dispatcher.Fail(ch.config.Queue.Clean())
}

func (ch *Charm) forget(info hook.Info) dispatcher.Result {
	raw, ok := info.Params["packages"]
	if !ok {
		return dispatcher.Fail(errors.NotValidf("forget without packages"))
	}
	packages, err := actions.ParsePackageList(raw)
	if err != nil {
		return dispatcher.Fail(err)
	}
	return dispatcher.Fail(ch.config.Queue.Forget(packages))
}

func (ch *Charm) forgetTag(info hook.Info) dispatcher.Result {
	tag := info.Params["tag"]
	if tag == "" {
		return dispatcher.Fail(errors.NotValidf("forget-tag without tag"))
	}
	forgotten, err := ch.config.Queue.ForgetTag(tag)
	if err != nil {
		return dispatcher.Fail(err)
	}
	logger.Infof("forgot %d package(s) with tag %s", len(forgotten), tag)
	return dispatcher.Apply()
}

// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package files performs the idempotent filesystem mutations the agent
// converges a host with.
package files

import (
	"os"
	"os/user"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("appstream.files")

// ServiceUser is the account that owns the generator data.
const ServiceUser = "ubuntu"

// Owner identifies the user and group files are handed to.
type Owner struct {
	UID int
	GID int
}

// LookupOwner returns the owner for the named user and its primary group.
func LookupOwner(username string) (Owner, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return Owner{}, errors.Annotatef(err, "looking up user %q", username)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Owner{}, errors.NotValidf("uid %q of user %q", u.Uid, username)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Owner{}, errors.NotValidf("gid %q of user %q", u.Gid, username)
	}
	return Owner{UID: uid, GID: gid}, nil
}

// CurrentOwner returns the owner for the running process.
func CurrentOwner() Owner {
	return Owner{UID: os.Getuid(), GID: os.Getgid()}
}

// Chown hands path to the owner.
func (o Owner) Chown(path string) error {
	if err := os.Chown(path, o.UID, o.GID); err != nil {
		return errors.Annotatef(err, "changing ownership of %q", path)
	}
	return nil
}

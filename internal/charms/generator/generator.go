// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package generator drives a host running the metadata generator: it owns
// the data storage, installs the generator, exports its output over rsync
// and writes its configuration.
package generator

import (
	"path/filepath"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/appstream-charms/internal/actions"
	"github.com/canonical/appstream-charms/internal/charmconfig"
	"github.com/canonical/appstream-charms/internal/converge"
	"github.com/canonical/appstream-charms/internal/dispatcher"
	"github.com/canonical/appstream-charms/internal/files"
	"github.com/canonical/appstream-charms/internal/hook"
	"github.com/canonical/appstream-charms/internal/paths"
	"github.com/canonical/appstream-charms/internal/planner"
	"github.com/canonical/appstream-charms/internal/service/systemd"
	"github.com/canonical/appstream-charms/internal/state"
	"github.com/canonical/appstream-charms/internal/status"
)

var logger = loggo.GetLogger("appstream.charms.generator")

const (
	// Name is the name of the charm.
	Name = "appstream-generator"

	// StorageName is the storage holding the generated data.
	StorageName = "appstream"

	// GeneratorSnap is the snap providing the generator.
	GeneratorSnap = "appstream-generator"
)

const (
	waitingForStorage = "Waiting for storage to become attached."
	configNotSet      = "Config not set. Make sure config, hostname and mirror are set."
	setUpPending      = "Waiting for set up to complete."
)

var (
	packages     = []string{"jq"}
	snaps        = map[string]string{GeneratorSnap: ""}
	serviceUnits = []string{"appstream-generator.service", "appstream-generator.timer"}
	enableUnits  = []string{"appstream-generator.timer"}
)

// Config holds the dependencies of the generator charm.
type Config struct {
	Paths    paths.Paths
	Store    *state.Store
	Source   charmconfig.Source
	Executor *converge.Executor
	Services systemd.Manager
	Queue    actions.Queue
	Owner    files.Owner
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if config.Source == nil {
		return errors.NotValidf("nil Source")
	}
	if config.Executor == nil {
		return errors.NotValidf("nil Executor")
	}
	if config.Services == nil {
		return errors.NotValidf("nil Services")
	}
	return nil
}

// Charm is the generator controller.
type Charm struct {
	config Config
}

// New returns a generator Charm.
func New(config Config) (*Charm, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Charm{config: config}, nil
}

// Handlers implements dispatcher.Charm.
func (ch *Charm) Handlers() dispatcher.Handlers {
	return dispatcher.Handlers{
		string(hook.Install):       ch.ensureSetUp,
		string(hook.UpgradeCharm):  ch.ensureSetUp,
		string(hook.ConfigChanged): ch.configChanged,
		string(hook.Start):         ch.start,

		StorageName + "-" + string(hook.StorageAttached):  ch.storageAttached,
		StorageName + "-" + string(hook.StorageDetaching): ch.storageDetaching,

		"clean-action":      ch.clean,
		"forget-action":     ch.forget,
		"forget-tag-action": ch.forgetTag,
	}
}

// Target returns the convergence target for the declared configuration.
func (ch *Charm) Target(cfg *charmconfig.Config) planner.Target {
	public := ch.config.Paths.AppstreamPublic()
	return planner.Target{
		Declared:     cfg,
		Packages:     set.NewStrings(packages...),
		Snaps:        snaps,
		ManageProxy:  true,
		ServiceUnits: serviceUnits,
		LinkScripts:  true,
		Exports: []planner.Export{
			{Name: "appstream", Path: filepath.Join(public, "data")},
			{Name: "www", Path: public},
			{Name: "logs", Path: ch.config.Paths.AppstreamLogs()},
		},
		GenerateConfig: true,
	}
}

// ensureSetUp converges the host. It defers while the storage is detached
// or the configuration is incomplete.
func (ch *Charm) ensureSetUp(hook.Info) dispatcher.Result {
	st, err := ch.config.Store.Get()
	if err != nil {
		return dispatcher.Fail(err)
	}
	if !st.StorageAttached {
		return dispatcher.Defer(waitingForStorage)
	}
	cfg, err := charmconfig.Load(ch.config.Source)
	if errors.Is(err, charmconfig.ErrIncomplete) {
		logger.Infof("configuration not usable: %v", err)
		return dispatcher.Defer(configNotSet)
	} else if err != nil {
		return dispatcher.Fail(err)
	}
	err = ch.config.Executor.Converge(ch.Target(cfg))
	if errors.Is(err, charmconfig.ErrIncomplete) {
		logger.Infof("no config set, can't continue: %v", err)
		return dispatcher.Defer(configNotSet)
	}
	return dispatcher.Fail(err)
}

func (ch *Charm) configChanged(info hook.Info) dispatcher.Result {
	st, err := ch.config.Store.Get()
	if err != nil {
		return dispatcher.Fail(err)
	}
	if _, ok := st.SnapChannel(GeneratorSnap); !ok {
		logger.Debugf("%s not installed yet", GeneratorSnap)
		return dispatcher.Defer("")
	}
	return ch.ensureSetUp(info)
}

func (ch *Charm) start(info hook.Info) dispatcher.Result {
	if result := ch.ensureSetUp(info); result.Outcome != dispatcher.Applied {
		return result
	}
	if err := ch.config.Services.Enable(enableUnits...); err != nil {
		return dispatcher.Fail(err)
	}
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.ServicesEnabled = true
		return nil
	}))
}

func (ch *Charm) storageAttached(info hook.Info) dispatcher.Result {
	mountPoint := info.StorageLocation
	if mountPoint == "" {
		mountPoint = ch.config.Paths.AppstreamBase()
	}
	if err := files.PrepareStorage(mountPoint, ch.config.Paths.AppstreamWorkdir(), ch.config.Owner); err != nil {
		return dispatcher.Fail(err)
	}
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.StorageAttached = true
		return nil
	}))
}

func (ch *Charm) storageDetaching(hook.Info) dispatcher.Result {
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.StorageAttached = false
		return nil
	}))
}

// Status implements dispatcher.Charm.
func (ch *Charm) Status(st state.State) (status.Status, error) {
	if !st.StorageAttached {
		return status.NewBlocked(waitingForStorage), nil
	}
	cfg, err := charmconfig.Load(ch.config.Source)
	if err == nil {
		_, err = cfg.Generator()
	}
	if errors.Is(err, charmconfig.ErrIncomplete) {
		return status.NewBlocked(configNotSet), nil
	} else if err != nil {
		return status.Status{}, errors.Trace(err)
	}
	// Storage and config alone do not mean the host converged: a queued
	// install may not have been re-delivered yet.
	if !st.ServicesEnabled {
		return status.NewBlocked(setUpPending), nil
	}
	return status.NewActive(), nil
}

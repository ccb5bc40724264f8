// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package frontend drives a web frontend host. It mirrors the data of a
// related generator over rsync and publishes a site configuration to a
// related web server.
package frontend

import (
	"bytes"
	"text/template"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/appstream-charms/internal/charmconfig"
	"github.com/canonical/appstream-charms/internal/converge"
	"github.com/canonical/appstream-charms/internal/dispatcher"
	"github.com/canonical/appstream-charms/internal/files"
	"github.com/canonical/appstream-charms/internal/hook"
	"github.com/canonical/appstream-charms/internal/paths"
	"github.com/canonical/appstream-charms/internal/planner"
	"github.com/canonical/appstream-charms/internal/relation"
	"github.com/canonical/appstream-charms/internal/service/systemd"
	"github.com/canonical/appstream-charms/internal/state"
	"github.com/canonical/appstream-charms/internal/status"
)

var logger = loggo.GetLogger("appstream.charms.frontend")

const (
	// Name is the name of the charm.
	Name = "appstream-frontend"

	// RsyncRelation connects the frontend to a generator.
	RsyncRelation = "rsync"

	// WebsiteRelation connects the frontend to a web server.
	WebsiteRelation = "apache-website"

	// RsyncAddressVar is the variable naming the generator address in the
	// address file read by the sync scripts.
	RsyncAddressVar = "RSYNC_ADDRESS"
)

const (
	notRelatedStart   = "Not related to appstream-generator, can't start yet."
	notRelatedWebsite = "Not related to appstream-generator, can't set up website yet."
	waitingForApache  = "Waiting for apache relation"
	hostnameNotSet    = "Waiting for external-hostname to be set."
	configNotValid    = "Config not valid. Make sure external-hostname and the proxy settings are strings."
)

var (
	packages     = []string{"rsync"}
	serviceUnits = []string{"sync-appstream.service", "sync-appstream.timer"}
	enableUnits  = []string{"sync-appstream.timer"}
)

var siteConfigTemplate = template.Must(template.New("site").Parse(`
<Directory {{.Home}}/appstream>
    Options Indexes FollowSymLinks
    Require all granted
</Directory>

<Directory {{.Home}}/appstream/media>
    Options -Indexes
</Directory>

<Directory {{.Home}}/logs>
    Options Indexes
    Require all granted
</Directory>

Alias /data {{.Home}}/appstream/data
Alias /media {{.Home}}/appstream/media
Alias /logs {{.Home}}/logs
Alias /hints {{.Home}}/appstream/hints
<VirtualHost *:80>
    ServerName {{.ExternalHostname}}
    DocumentRoot {{.Home}}/appstream/html
    ErrorLog ${APACHE_LOG_DIR}/error.log
    CustomLog ${APACHE_LOG_DIR}/custom.log combined
    AddType 'text/plain' .log
    AddCharset UTF-8 .log
</VirtualHost>
`))

// SiteConfig renders the web server site configuration serving the
// mirrored data below home as externalHostname.
func SiteConfig(home, externalHostname string) (string, error) {
	var buf bytes.Buffer
	err := siteConfigTemplate.Execute(&buf, struct {
		Home             string
		ExternalHostname string
	}{home, externalHostname})
	if err != nil {
		return "", errors.Trace(err)
	}
	return buf.String(), nil
}

// Config holds the dependencies of the frontend charm.
type Config struct {
	Paths     paths.Paths
	Store     *state.Store
	Source    charmconfig.Source
	Executor  *converge.Executor
	Services  systemd.Manager
	Relations relation.Gateway
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
	if config.Relations == nil {
		return errors.NotValidf("nil Relations")
	}
	return nil
}

// Charm is the frontend controller.
type Charm struct {
	config Config
}

// New returns a frontend Charm.
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

		RsyncRelation + "-" + string(hook.RelationJoined):     ch.rsyncJoined,
		RsyncRelation + "-" + string(hook.RelationDeparted):   ch.rsyncDeparted,
		WebsiteRelation + "-" + string(hook.RelationJoined):   ch.websiteJoined,
		WebsiteRelation + "-" + string(hook.RelationDeparted): ch.websiteDeparted,
	}
}

// Target returns the convergence target of a frontend host.
func (ch *Charm) Target(cfg *charmconfig.Config) planner.Target {
	return planner.Target{
		Declared:     cfg,
		Packages:     set.NewStrings(packages...),
		ServiceUnits: serviceUnits,
		LinkScripts:  true,
	}
}

// loadConfig reads the declared configuration. A malformed configuration
// defers the event rather than failing it.
func (ch *Charm) loadConfig() (*charmconfig.Config, dispatcher.Result) {
	cfg, err := charmconfig.Load(ch.config.Source)
	if errors.Is(err, charmconfig.ErrIncomplete) {
		logger.Infof("configuration not usable: %v", err)
		return nil, dispatcher.Defer(configNotValid)
	} else if err != nil {
		return nil, dispatcher.Fail(err)
	}
	return cfg, dispatcher.Apply()
}

func (ch *Charm) ensureSetUp(hook.Info) dispatcher.Result {
	cfg, result := ch.loadConfig()
	if result.Outcome != dispatcher.Applied {
		return result
	}
	return dispatcher.Fail(ch.config.Executor.Converge(ch.Target(cfg)))
}

func (ch *Charm) configChanged(info hook.Info) dispatcher.Result {
	if result := ch.ensureSetUp(info); result.Outcome != dispatcher.Applied {
		return result
	}
	st, err := ch.config.Store.Get()
	if err != nil {
		return dispatcher.Fail(err)
	}
	if !st.PeerCoordinationEstablished {
		return dispatcher.Apply()
	}
	logger.Infof("re-publishing site configuration")
	return ch.publishSite()
}

func (ch *Charm) start(info hook.Info) dispatcher.Result {
	if result := ch.ensureSetUp(info); result.Outcome != dispatcher.Applied {
		return result
	}
	st, err := ch.config.Store.Get()
	if err != nil {
		return dispatcher.Fail(err)
	}
	if st.PeerAddress == "" {
		logger.Infof("rsync address not set, can't start yet")
		return dispatcher.Defer(notRelatedStart)
	}
	if err := ch.config.Services.Enable(enableUnits...); err != nil {
		return dispatcher.Fail(err)
	}
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.ServicesEnabled = true
		return nil
	}))
}

func (ch *Charm) rsyncJoined(info hook.Info) dispatcher.Result {
	rec, err := ch.config.Relations.RemoteSettings(info.RelationName, info.RemoteUnit)
	if errors.Is(err, relation.ErrNoRecord) {
		logger.Debugf("%s has not published its settings yet", info.RemoteUnit)
		return dispatcher.Defer("")
	} else if err != nil {
		return dispatcher.Fail(err)
	}
	address := rec[relation.PrivateAddressKey]
	if address == "" {
		logger.Debugf("%s has not published its address yet", info.RemoteUnit)
		return dispatcher.Defer("")
	}
	logger.Infof("rsync address is %s", address)
	if err := files.WriteKeyValueFile(ch.config.Paths.RsyncAddressFile(), RsyncAddressVar, address); err != nil {
		return dispatcher.Fail(err)
	}
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.PeerAddress = address
		return nil
	}))
}

func (ch *Charm) rsyncDeparted(hook.Info) dispatcher.Result {
	logger.Infof("rsync address removed, disabling")
	if err := ch.config.Services.Disable(enableUnits...); err != nil {
		return dispatcher.Fail(err)
	}
	if err := files.RemoveFile(ch.config.Paths.RsyncAddressFile()); err != nil {
		return dispatcher.Fail(err)
	}
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.PeerAddress = ""
		st.ServicesEnabled = false
		return nil
	}))
}

func (ch *Charm) websiteJoined(hook.Info) dispatcher.Result {
	st, err := ch.config.Store.Get()
	if err != nil {
		return dispatcher.Fail(err)
	}
	if st.PeerAddress == "" {
		logger.Infof("rsync address not set, can't set up website yet")
		return dispatcher.Defer(notRelatedWebsite)
	}
	return ch.publishSite()
}

// publishSite publishes the site configuration over the website relation
// and records the relation as established.
func (ch *Charm) publishSite() dispatcher.Result {
	cfg, result := ch.loadConfig()
	if result.Outcome != dispatcher.Applied {
		return result
	}
	if cfg.ExternalHostname == "" {
		return dispatcher.Defer(hostnameNotSet)
	}
	site, err := SiteConfig(ch.config.Paths.Home, cfg.ExternalHostname)
	if err != nil {
		return dispatcher.Fail(err)
	}
	logger.Infof("setting up apache site for %s", cfg.ExternalHostname)
	err = ch.config.Relations.SetLocalSettings(WebsiteRelation, relation.Record{
		"domain":       cfg.ExternalHostname,
		"enabled":      "true",
		"ports":        "80",
		"site_config":  site,
		"site-modules": "autoindex",
	})
	if err != nil {
		return dispatcher.Fail(err)
	}
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.PeerCoordinationEstablished = true
		return nil
	}))
}

func (ch *Charm) websiteDeparted(hook.Info) dispatcher.Result {
	logger.Infof("apache relation removed, disabling")
	return dispatcher.Fail(ch.config.Store.Update(func(st *state.State) error {
		st.PeerCoordinationEstablished = false
		return nil
	}))
}

// Status implements dispatcher.Charm.
func (ch *Charm) Status(st state.State) (status.Status, error) {
	switch {
	case st.PeerAddress == "":
		return status.NewBlocked(notRelatedStart), nil
	case !st.PeerCoordinationEstablished:
		return status.NewBlocked(waitingForApache), nil
	}
	return status.NewActive(), nil
}

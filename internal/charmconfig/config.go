// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmconfig reads and validates the operator supplied
// configuration of a unit.
package charmconfig

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/proxy"
	"github.com/juju/schema"
)

var logger = loggo.GetLogger("appstream.charmconfig")

// ErrIncomplete is returned when the configuration lacks a value required
// to converge, or holds one that cannot be understood.
const ErrIncomplete = errors.ConstError("configuration incomplete")

const (
	// MirrorKey is the archive mirror the generator reads packages from.
	MirrorKey = "mirror"

	// HostnameKey is the public base URL of the generated data.
	HostnameKey = "hostname"

	// SuitesKey holds the JSON document describing releases and suites.
	SuitesKey = "config"

	HTTPProxyKey  = "http-proxy"
	HTTPSProxyKey = "https-proxy"
	NoProxyKey    = "no-proxy"

	// DefaultSnapChannelKey is the channel used for snaps that do not
	// name one.
	DefaultSnapChannelKey = "default-snap-channel"

	// ExternalHostnameKey is the name the frontend web site is served as.
	ExternalHostnameKey = "external-hostname"
)

// DefaultSnapChannel is the default value of DefaultSnapChannelKey.
const DefaultSnapChannel = "stable"

var configChecker = schema.FieldMap(schema.Fields{
	MirrorKey:             schema.String(),
	HostnameKey:           schema.String(),
	SuitesKey:             schema.String(),
	HTTPProxyKey:          schema.String(),
	HTTPSProxyKey:         schema.String(),
	NoProxyKey:            schema.String(),
	DefaultSnapChannelKey: schema.String(),
	ExternalHostnameKey:   schema.String(),
}, schema.Defaults{
	MirrorKey:             schema.Omit,
	HostnameKey:           schema.Omit,
	SuitesKey:             schema.Omit,
	HTTPProxyKey:          schema.Omit,
	HTTPSProxyKey:         schema.Omit,
	NoProxyKey:            schema.Omit,
	DefaultSnapChannelKey: DefaultSnapChannel,
	ExternalHostnameKey:   schema.Omit,
})

// Config is a snapshot of the declared configuration. It is read afresh
// for every event and never updated in place.
type Config struct {
	Mirror             string
	Hostname           string
	Suites             string
	Proxy              proxy.Settings
	DefaultSnapChannel string
	ExternalHostname   string
}

// Parse coerces raw configuration attributes. Unknown keys are ignored and
// null values are treated as unset.
func Parse(attrs map[string]interface{}) (*Config, error) {
	in := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if v != nil {
			in[k] = v
		}
	}
	coerced, err := configChecker.Coerce(in, nil)
	if err != nil {
		return nil, errors.Annotatef(ErrIncomplete, "%v", err)
	}
	m := coerced.(map[string]interface{})
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	cfg := &Config{
		Mirror:   str(MirrorKey),
		Hostname: str(HostnameKey),
		Suites:   str(SuitesKey),
		Proxy: proxy.Settings{
			Http:    str(HTTPProxyKey),
			Https:   str(HTTPSProxyKey),
			NoProxy: str(NoProxyKey),
		},
		DefaultSnapChannel: str(DefaultSnapChannelKey),
		ExternalHostname:   str(ExternalHostnameKey),
	}
	if cfg.DefaultSnapChannel == "" {
		cfg.DefaultSnapChannel = DefaultSnapChannel
	}
	return cfg, nil
}

// HasProxy reports whether any proxy variable is set.
func (c *Config) HasProxy() bool {
	return c.Proxy.Http != "" || c.Proxy.Https != "" || c.Proxy.NoProxy != ""
}

// Generator returns the settings needed to write the generator
// configuration. ErrIncomplete is returned if mirror, hostname or the suite
// map is missing, or the suite map is malformed.
func (c *Config) Generator() (*GeneratorSettings, error) {
	if c.Mirror == "" || c.Hostname == "" || c.Suites == "" {
		logger.Debugf("mirror, hostname or config not set")
		return nil, errors.Annotatef(ErrIncomplete, "mirror, hostname and config must be set")
	}
	suites, err := ParseSuiteMap(c.Suites)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GeneratorSettings{
		Mirror:   c.Mirror,
		Hostname: c.Hostname,
		Suites:   suites,
	}, nil
}

// GeneratorSettings are the complete inputs of the generator
// configuration file.
type GeneratorSettings struct {
	Mirror   string
	Hostname string
	Suites   *SuiteMap
}

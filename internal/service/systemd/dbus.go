// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package systemd

import (
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/juju/errors"
)

// DBusAPI describes the systemd dbus calls used by DBusManager.
type DBusAPI interface {
	Close()
	EnableUnitFiles(files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFiles(files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
	StartUnit(name string, mode string, ch chan<- string) (int, error)
	StopUnit(name string, mode string, ch chan<- string) (int, error)
	RestartUnit(name string, mode string, ch chan<- string) (int, error)
	Reload() error
}

// DBusAPIFactory opens a new connection to systemd.
type DBusAPIFactory = func() (DBusAPI, error)

// NewDBusAPI connects to the system instance of systemd.
var NewDBusAPI = func() (DBusAPI, error) {
	return dbus.New()
}

// DBusManager manages units over the systemd dbus API.
type DBusManager struct {
	newDBus DBusAPIFactory
}

// NewDBusManager returns a DBusManager that connects with newDBus.
func NewDBusManager(newDBus DBusAPIFactory) *DBusManager {
	return &DBusManager{newDBus: newDBus}
}

func (m *DBusManager) errorf(err error, msg string, args ...interface{}) error {
	if err == nil {
		err = errors.Errorf(msg, args...)
	} else {
		err = errors.Annotatef(err, msg, args...)
	}
	logger.Errorf("%v", err)
	return err
}

func (m *DBusManager) withConn(f func(DBusAPI) error) error {
	conn, err := m.newDBus()
	if err != nil {
		return m.errorf(err, "failed to connect to dbus")
	}
	defer conn.Close()
	return f(conn)
}

// Enable implements Manager.
func (m *DBusManager) Enable(units ...string) error {
	return m.withConn(func(conn DBusAPI) error {
		const runtime, force = false, true
		if _, _, err := conn.EnableUnitFiles(units, runtime, force); err != nil {
			return m.errorf(err, "dbus enable request failed for %v", units)
		}
		for _, unit := range units {
			statusCh := make(chan string, 1)
			if _, err := conn.StartUnit(unit, "replace", statusCh); err != nil {
				return m.errorf(err, "dbus start request failed for %q", unit)
			}
			if err := m.wait("start", unit, statusCh); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
}

// Disable implements Manager.
func (m *DBusManager) Disable(units ...string) error {
	return m.withConn(func(conn DBusAPI) error {
		if _, err := conn.DisableUnitFiles(units, false); err != nil {
			return m.errorf(err, "dbus disable request failed for %v", units)
		}
		for _, unit := range units {
			statusCh := make(chan string, 1)
			if _, err := conn.StopUnit(unit, "replace", statusCh); err != nil {
				return m.errorf(err, "dbus stop request failed for %q", unit)
			}
			if err := m.wait("stop", unit, statusCh); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
}

// Restart implements Manager.
func (m *DBusManager) Restart(unit string) error {
	return m.withConn(func(conn DBusAPI) error {
		statusCh := make(chan string, 1)
		if _, err := conn.RestartUnit(unit, "replace", statusCh); err != nil {
			return m.errorf(err, "dbus restart request failed for %q", unit)
		}
		return m.wait("restart", unit, statusCh)
	})
}

// Reload implements Manager.
func (m *DBusManager) Reload() error {
	return m.withConn(func(conn DBusAPI) error {
		if err := conn.Reload(); err != nil {
			return m.errorf(err, "dbus daemon reload request failed")
		}
		return nil
	})
}

func (m *DBusManager) wait(op, unit string, statusCh chan string) error {
	// See https://godoc.org/github.com/coreos/go-systemd/dbus#Conn.StartUnit
	// for the possible job results.
	if status := <-statusCh; status != "done" {
		return m.errorf(nil, "failed to %s %q (API status %q)", op, unit, status)
	}
	return nil
}

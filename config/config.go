/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config loads and validates kazad's INI-style configuration file
// (§6). The on-disk shape is a thin gcfg mapping; callers get back a typed
// Config with a Verify step that turns missing-required-field mistakes into
// the Configuration error class of §7.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gravwell/gcfg"
)

const maxConfigSize int64 = 4 * 1024 * 1024

var (
	ErrConfigTooLarge  = errors.New("config: file too large")
	ErrMissingHostname = errors.New("config: ssl/hostname is required")
)

const (
	defaultSSLPort  = 1756
	defaultDBDriver = "mysql"
	defaultDBPort   = 3306
)

type SSL struct {
	Port        int
	Hostname    string
	KeyPassword string
}

type Control struct {
	Port     int
	Enable   bool
	Password string
}

type Client struct {
	Host string
}

type QML struct {
	Server string
	Client string
}

type Database struct {
	Driver   string
	DBName   string
	Hostname string
	Port     int
	Username string
	Password string
}

// Config is the fully parsed, validated contents of kazad.conf.
type Config struct {
	SSL      SSL
	Control  Control
	Client   Client
	QML      QML
	Database Database
}

// gcfgShape mirrors the INI section/key names of §6 exactly; gcfg maps
// sections case-insensitively onto these fields.
type gcfgShape struct {
	Ssl struct {
		Port        int
		Hostname    string
		Keypassword string
	}
	Control struct {
		Port     int
		Enable   bool
		Password string
	}
	Client struct {
		Host string
	}
	Qml struct {
		Server string
		Client string
	}
	Database struct {
		Driver   string
		DbName   string
		Hostname string
		Port     int
		Username string
		Password string
	}
}

// Load reads and parses the configuration file at path. It does not call
// Verify; callers should do so before acting on the result.
func Load(path string) (*Config, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigTooLarge
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, fin); err != nil {
		return nil, err
	}
	return LoadBytes(buf.Bytes())
}

// LoadBytes parses raw INI content, for callers that already have the file
// in memory (tests, embedded defaults).
func LoadBytes(b []byte) (*Config, error) {
	var shape gcfgShape
	if err := gcfg.ReadStringInto(&shape, string(b)); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}

	c := &Config{
		SSL: SSL{
			Port:        shape.Ssl.Port,
			Hostname:    shape.Ssl.Hostname,
			KeyPassword: shape.Ssl.Keypassword,
		},
		Control: Control{
			Port:     shape.Control.Port,
			Enable:   shape.Control.Enable,
			Password: shape.Control.Password,
		},
		Client: Client{
			Host: shape.Client.Host,
		},
		QML: QML{
			Server: shape.Qml.Server,
			Client: shape.Qml.Client,
		},
		Database: Database{
			Driver:   shape.Database.Driver,
			DBName:   shape.Database.DbName,
			Hostname: shape.Database.Hostname,
			Port:     shape.Database.Port,
			Username: shape.Database.Username,
			Password: shape.Database.Password,
		},
	}
	c.loadDefaults()
	return c, nil
}

func (c *Config) loadDefaults() {
	if c.SSL.Port == 0 {
		c.SSL.Port = defaultSSLPort
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDBDriver
	}
	if c.Database.Port == 0 {
		c.Database.Port = defaultDBPort
	}
}

// Verify checks the fields required regardless of which optional
// subsystems are enabled. A failure here is a Configuration-class error
// per §7: the caller should abort startup with a critical log, not retry.
func (c *Config) Verify() error {
	if c.SSL.Hostname == "" {
		return ErrMissingHostname
	}
	return nil
}

// DatabaseEnabled reports whether enough database configuration was
// supplied to open a backend link; the database section is optional.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Hostname != ""
}

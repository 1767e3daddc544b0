/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/kazad/kazad/config"
	"github.com/kazad/kazad/control"
	"github.com/kazad/kazad/dblink"
	"github.com/kazad/kazad/log"
	"github.com/kazad/kazad/object"
	"github.com/kazad/kazad/pki"
	"github.com/kazad/kazad/server"
	"github.com/kazad/kazad/session"
	"github.com/kazad/kazad/store"
	"github.com/kazad/kazad/utils"
	"github.com/kazad/kazad/version"
)

const (
	defaultConfigLoc = `/etc/kazad.conf`
	defaultBaseDir   = `/var/lib/kazad`
	appName          = `kazad`
)

var (
	confLoc = flag.String("config-file", defaultConfigLoc, "Location for configuration file")
	baseDir = flag.String("base-dir", defaultBaseDir, "Base directory for PKI and settings state")
	ver     = flag.Bool("version", false, "Print the version information and exit")
)

func main() {
	flag.Parse()
	if *ver {
		version.PrintVersion(os.Stdout)
		os.Exit(0)
	}

	lg := log.NewStderrLogger()
	lg.SetAppname(appName)

	cfg, err := config.Load(*confLoc)
	if err != nil {
		lg.FatalCode(0, "failed to load configuration", log.KV("path", *confLoc), log.KVErr(err))
		return
	}
	if err := cfg.Verify(); err != nil {
		lg.FatalCode(0, "invalid configuration", log.KVErr(err))
		return
	}

	object.SetLogger(lg)
	registry := object.Init()
	defer object.Shutdown()

	settings, err := store.Open(filepath.Join(*baseDir, "objects.db"))
	if err != nil {
		lg.FatalCode(0, "failed to open settings store", log.KVErr(err))
		return
	}
	defer settings.Close()

	authority := pki.New(filepath.Join(*baseDir, "pki"), cfg.SSL.Hostname)
	if err := authority.Bootstrap(cfg.SSL.KeyPassword); err != nil {
		lg.FatalCode(0, "failed to bootstrap certificate authority", log.KVErr(err))
		return
	}

	var db session.DB
	if cfg.DatabaseEnabled() {
		link, err := dblink.Open(dblink.Config{
			Driver:   cfg.Database.Driver,
			DBName:   cfg.Database.DBName,
			Hostname: cfg.Database.Hostname,
			Port:     cfg.Database.Port,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
		})
		if err != nil {
			lg.FatalCode(0, "failed to open database link", log.KVErr(err))
			return
		}
		defer link.Close()
		db = link
	}

	srv := server.New(server.Config{
		Authority:      authority,
		SSLKeyPassword: cfg.SSL.KeyPassword,
		Registry:       registry,
		DB:             db,
		Logger:         lg,
		SSLPort:        cfg.SSL.Port,
		ControlPort:    cfg.Control.Port,
	})

	if err := srv.ListenMain(); err != nil {
		lg.FatalCode(0, "failed to open main listener", log.KVErr(err))
		return
	}
	go func() {
		if err := srv.ServeMain(); err != nil {
			lg.Error("main listener stopped", log.KVErr(err))
		}
	}()

	if cfg.Control.Enable {
		if err := srv.ListenControl(); err != nil {
			lg.FatalCode(0, "failed to open control listener", log.KVErr(err))
			return
		}
		ctrl := &control.Service{
			Authority:     authority,
			Registry:      registry,
			Sessions:      srv,
			AdminPassword: cfg.Control.Password,
			SSLHost:       cfg.SSL.Hostname,
			SSLPort:       cfg.SSL.Port,
			Logger:        lg,
		}
		go func() {
			if err := control.Serve(srv.ControlListener(), ctrl); err != nil {
				lg.Error("control listener stopped", log.KVErr(err))
			}
		}()
	}

	notifyReady(lg)
	lg.Info("kazad running", log.KV("sslport", cfg.SSL.Port), log.KV("controlport", cfg.Control.Port))

	sig := utils.WaitForQuit()
	lg.Info("shutting down", log.KV("signal", sig.String()))
	srv.Shutdown()
}

// notifyReady implements the sd_notify-style readiness signal of §6: a
// single "READY=1\n" datagram to NOTIFY_SOCKET if the service supervisor
// set one, otherwise just a log line.
func notifyReady(lg *log.Logger) {
	sock := os.Getenv("NOTIFY_SOCKET")
	if sock == "" {
		lg.Info("no service supervisor notify socket configured")
		return
	}
	addr := &net.UnixAddr{Name: sock, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		lg.Warn("failed to reach service supervisor", log.KVErr(err))
		return
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1\n")); err != nil {
		lg.Warn("failed to notify readiness", log.KVErr(err))
	}
}

func init() {
	// Ensure flag package usage errors print something recognisable instead
	// of a dangling "Usage of kazad:" with our binary name.
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", appName)
		flag.PrintDefaults()
	}
}

/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	testFile string = `test.log`
)

var (
	tempdir string
)

func TestMain(m *testing.M) {
	var err error
	if tempdir, err = os.MkdirTemp(os.TempDir(), ``); err != nil {
		fmt.Println("Failed to create temp dir", err)
		os.Exit(-1)
	}
	r := m.Run()
	os.RemoveAll(tempdir)
	os.Exit(r)
}

// newLogger returns a raw-mode logger so assertions can match on the plain
// "LEVEL message" text instead of an RFC5424-framed line.
func newLogger() (*Logger, error) {
	p := filepath.Join(tempdir, testFile)
	fout, err := os.Create(p)
	if err != nil {
		return nil, err
	}
	lgr := New(fout)
	lgr.EnableRawMode()
	return lgr, nil
}

func appendLogger() (*Logger, error) {
	p := filepath.Join(tempdir, testFile)
	lgr, err := NewFile(p)
	if err != nil {
		return nil, err
	}
	lgr.EnableRawMode()
	return lgr, nil
}

func TestNew(t *testing.T) {
	lgr, err := newLogger()
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Criticalf("test: %d", 99); err != nil {
		t.Fatal(err)
	}

	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAppend(t *testing.T) {
	lgr, err := appendLogger()
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Errorf("test: %d", 99); err != nil {
		t.Fatal(err)
	}

	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestValue(t *testing.T) {
	lgr, err := appendLogger()
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Warnf("test: %d", 99); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Infof("test: %d\n", 99); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Debugf("test: %d", 99); err != nil {
		t.Fatal(err)
	}
	if err = lgr.SetLevel(OFF); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Criticalf("testing off: %d", 88); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
	bts, err := os.ReadFile(filepath.Join(tempdir, testFile))
	if err != nil {
		t.Fatal(err)
	}
	s := string(bts)
	if !strings.Contains(s, "CRITICAL test: 99\n") {
		t.Fatal("Missing critical value: ", s)
	}
	if !strings.Contains(s, "ERROR test: 99\n") {
		t.Fatal("Missing error value: ", s)
	}
	if !strings.Contains(s, "WARN test: 99\n") {
		t.Fatal("Missing warn value: ", s)
	}
	if !strings.Contains(s, "INFO test: 99\n") {
		t.Fatal("Missing info value: ", s)
	}
	if strings.Contains(s, "DEBUG test: 99\n") {
		t.Fatal("Has debug level: ", s)
	}
	if strings.Contains(s, "CRITICAL testing off: 88\n") {
		t.Fatal("Has CRITICAL level: ", s)
	}
	if strings.Contains(s, "\n\n") {
		t.Fatal("did not filter double newlines")
	}
}

func TestMulti(t *testing.T) {
	lgr, err := newLogger()
	if err != nil {
		t.Fatal(err)
	}
	var toCheck []string
	for i := 0; i < 8; i++ {
		fout, err := os.CreateTemp(tempdir, ``)
		if err != nil {
			t.Fatal(err)
		}
		if err = lgr.AddWriter(fout); err != nil {
			t.Fatal(err)
		}
		toCheck = append(toCheck, fout.Name())
	}

	if err = lgr.Criticalf("0x%x", 0x1337); err != nil {
		t.Fatal(err)
	}

	if err = lgr.Errorf("test %d", 1337); err != nil {
		t.Fatal(err)
	}
	for _, n := range toCheck {
		bts, err := os.ReadFile(n)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(bts), "CRITICAL 0x1337\n") {
			t.Fatal(n, " missing critical log value")
		}
		if !strings.Contains(string(bts), "ERROR test 1337\n") {
			t.Fatal(n, " missing error log value ")
		}
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestStructured exercises the structured (non-printf) logging API, which
// always emits RFC5424 regardless of raw mode.
func TestStructured(t *testing.T) {
	lgr, err := newLogger()
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Critical("disk full", KV("path", "/var/lib/kazad")); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Error("connection reset", KVErr(io.ErrClosedPipe)); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
	bts, err := os.ReadFile(filepath.Join(tempdir, testFile))
	if err != nil {
		t.Fatal(err)
	}
	s := string(bts)
	if !strings.Contains(s, "disk full") {
		t.Fatal("missing structured critical line: ", s)
	}
	if !strings.Contains(s, "connection reset") {
		t.Fatal("missing structured error line: ", s)
	}
	if !strings.Contains(s, "path=\"/var/lib/kazad\"") {
		t.Fatal("missing structured data parameter: ", s)
	}
}

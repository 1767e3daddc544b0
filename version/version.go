/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package version reports kazad's own build version, independent of the
// protocol major/minor numbers negotiated in a session (those live in
// package session).
package version

import (
	"fmt"
	"io"
)

const (
	MajorVersion int = 1
	MinorVersion int = 0
	PointVersion int = 0
)

func PrintVersion(wtr io.Writer) {
	fmt.Fprintf(wtr, "kazad version %d.%d.%d\n", MajorVersion, MinorVersion, PointVersion)
}

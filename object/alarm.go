/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package object

// Alarm mirrors the original KzAlarm: title, message, enable flag,
// admin-only flag, and debug flag, surfaced on demand to clients via the
// ALARMS:user command (§4.3).
type Alarm struct {
	Title     string
	Message   string
	Enable    bool
	AdminOnly bool
	Debug     bool
}

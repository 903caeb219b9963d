// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package helpers holds environment variable readers shared by the
// commands and servers.
package helpers

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetBoolEnv reads a boolean environment variable.
// "true", "1", "yes", "on", "enable" and "enabled" are true and their
// opposites are false, case insensitive. Unset or empty returns defaultValue.
// Any other non-empty value is true.
func GetBoolEnv(envVar string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envVar))) {
	case "true", "1", "yes", "on", "enable", "enabled":
		return true
	case "false", "0", "no", "off", "disable", "disabled":
		return false
	case "":
		return defaultValue
	default:
		return true
	}
}

// FirstEnv returns the first non-empty value among names.
func FirstEnv(names ...string) (string, string, bool) {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return name, v, true
		}
	}
	return "", "", false
}

// GetPortEnv returns the first valid TCP port among names. Values that are
// not ports are skipped.
func GetPortEnv(names ...string) (int, bool) {
	for _, name := range names {
		p, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
		if err == nil && p > 0 && p < 65536 {
			return p, true
		}
	}
	return 0, false
}

// GetDurationEnv parses a duration such as "30s" from envVar, returning
// defaultValue when it is unset or unparsable.
func GetDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

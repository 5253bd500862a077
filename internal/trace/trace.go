// Package trace reads the environment variables enabling verbose output of
// the command line tools.
package trace

import (
	"os"
	"strconv"
)

// Variables lists the environment variables that enable tracing. Any of them
// set to a true value, as understood by strconv.ParseBool, does.
var Variables = []string{"ODB_TRACE", "GIT_TRACE"}

// Enabled reports whether tracing is enabled by the environment.
func Enabled() bool {
	for _, k := range Variables {
		if v, _ := strconv.ParseBool(os.Getenv(k)); v {
			return true
		}
	}

	return false
}

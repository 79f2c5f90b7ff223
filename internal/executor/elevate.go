package executor

import (
	"os"
	"runtime"
)

// ElevationPolicy rewrites the argument vector of an executor created with
// elevated privileges. It must not modify args in place.
type ElevationPolicy func(args []string) []string

// geteuid is swapped in tests.
var geteuid = os.Geteuid

// SudoElevation prefixes the command with non-interactive sudo unless the
// current process already runs as root. It leaves args untouched on Windows.
func SudoElevation(args []string) []string {
	if runtime.GOOS == "windows" || geteuid() == 0 {
		return args
	}
	out := make([]string, 0, len(args)+2)
	out = append(out, "sudo", "-n")
	return append(out, args...)
}

// NoElevation ignores the elevated flag.
func NoElevation(args []string) []string {
	return args
}

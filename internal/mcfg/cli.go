// Package mcfg parses the process's command-line flags into a Flags value,
// trimmed from mediocre-go-lib's mcfg package: its Param/Source system
// exists to let dozens of independently-registered components each declare
// typed, env-overridable parameters against a shared Context. This process
// has exactly four flags known up front, so a single flat parse function
// plays that role instead.
package mcfg

import (
	"fmt"
	"strconv"
	"strings"
)

// Flags holds the parsed command-line configuration, surfaced from the
// external collaborator described in spec.md §6 into the rest of the
// process.
type Flags struct {
	// Dir and DBFilename together locate the initial snapshot file. Both
	// must be non-empty for the snapshot loader to run.
	Dir        string
	DBFilename string

	// Port is the TCP port this instance listens on.
	Port int

	// ReplicaOf is "<host> <port>" of the upstream primary, or empty if
	// this instance should start as a primary.
	ReplicaOf string
}

const usage = `Usage:
  --dir <path>            directory containing the initial snapshot file
  --dbfilename <name>     filename of the initial snapshot file
  -p, --port <int>        port to listen on (default 6379)
  --replicaof "<host> <port>"
                          start as a replica of the given primary
`

// Parse reads args (typically os.Args[1:]) into a Flags, applying the
// default port of 6379 per spec.md §6.
func Parse(args []string) (Flags, error) {
	f := Flags{Port: 6379}

	for i := 0; i < len(args); i++ {
		name, inlineVal, hasInline := splitInline(args[i])

		next := func() (string, error) {
			if hasInline {
				return inlineVal, nil
			}
			i++
			if i >= len(args) {
				return "", fmt.Errorf("flag %s requires a value\n%s", name, usage)
			}
			return args[i], nil
		}

		switch name {
		case "--dir":
			v, err := next()
			if err != nil {
				return Flags{}, err
			}
			f.Dir = v
		case "--dbfilename":
			v, err := next()
			if err != nil {
				return Flags{}, err
			}
			f.DBFilename = v
		case "-p", "--port":
			v, err := next()
			if err != nil {
				return Flags{}, err
			}
			port, err := strconv.Atoi(v)
			if err != nil {
				return Flags{}, fmt.Errorf("invalid --port %q: %w", v, err)
			}
			f.Port = port
		case "--replicaof":
			v, err := next()
			if err != nil {
				return Flags{}, err
			}
			f.ReplicaOf = v
		case "-h", "--help":
			return Flags{}, fmt.Errorf("%s", usage)
		default:
			return Flags{}, fmt.Errorf("unrecognized flag %q\n%s", name, usage)
		}
	}

	return f, nil
}

func splitInline(arg string) (name, val string, ok bool) {
	if idx := strings.IndexByte(arg, '='); idx >= 0 {
		return arg[:idx], arg[idx+1:], true
	}
	return arg, "", false
}

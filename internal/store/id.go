package store

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a stream entry identifier, a strictly ordered (ms, seq) pair
// (spec.md §3). The zero value is "0-0", which is forbidden as a
// user-supplied ID.
type ID struct {
	Ms, Seq uint64
}

// Zero is the forbidden "0-0" ID.
var Zero = ID{}

// Compare returns -1, 0, or 1 as id is less than, equal to, or greater than
// other, comparing lexicographically on (ms, seq) as spec.md §3 requires.
func (id ID) Compare(other ID) int {
	if id.Ms != other.Ms {
		if id.Ms < other.Ms {
			return -1
		}
		return 1
	}
	if id.Seq != other.Seq {
		if id.Seq < other.Seq {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool { return id.Compare(other) < 0 }

// String renders the ID in "<ms>-<seq>" form.
func (id ID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// ParseID parses a fully explicit "<ms>-<seq>" ID, with no "*" wildcards.
func ParseID(s string) (ID, error) {
	ms, seq, err := splitID(s)
	if err != nil {
		return ID{}, err
	}
	return ID{Ms: ms, Seq: seq}, nil
}

func splitID(s string) (ms, seq uint64, err error) {
	parts := strings.SplitN(s, "-", 2)
	ms, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ID %q: %w", s, err)
	}
	if len(parts) == 1 {
		return ms, 0, nil
	}
	seq, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ID %q: %w", s, err)
	}
	return ms, seq, nil
}

// rangeBound identifies which side of an XRANGE/XREAD range an endpoint
// string describes, to pick the right default when the seq half is
// omitted (spec.md §3: "-" is minimum, "+" is maximum, a bare "<ms>"
// expands to "<ms>-0" for the lower bound and "<ms>-max" for the upper).
type rangeBound int

// The two range endpoint roles.
const (
	LowerBound rangeBound = iota
	UpperBound
)

// ParseRangeEndpoint parses an XRANGE/XREAD range endpoint per the grammar
// in spec.md §3.
func ParseRangeEndpoint(s string, bound rangeBound) (ID, error) {
	switch s {
	case "-":
		return ID{Ms: 0, Seq: 0}, nil
	case "+":
		return ID{Ms: ^uint64(0), Seq: ^uint64(0)}, nil
	}

	if !strings.Contains(s, "-") {
		ms, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return ID{}, fmt.Errorf("invalid range endpoint %q: %w", s, err)
		}
		if bound == LowerBound {
			return ID{Ms: ms, Seq: 0}, nil
		}
		return ID{Ms: ms, Seq: ^uint64(0)}, nil
	}

	return ParseID(s)
}

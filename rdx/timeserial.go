package rdx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

/*
	Timeserial is a logical timestamp assigned to an operation by the
	site (connection) that originated it.

	Wire form: TTTTTTTTTTTTTT-CCC@site[:III]
	  - T: 14 zero-padded decimal digits of time
	  - C: 3 zero-padded digits of the intra-time counter
	  - I: optional 3-digit index of the operation within a message

	Fixed widths make plain string comparison of two serials equivalent
	to numeric comparison of (time, counter) for the same site, so the
	engine compares serials as opaque strings and never parses them on
	the hot path.
*/
type Timeserial struct {
	Site     string
	Time     uint64
	Counter  uint32
	Index    uint32
	HasIndex bool
}

var ErrBadTimeserial = errors.New("bad timeserial")

func NewTimeserial(site string, time uint64, counter uint32) Timeserial {
	return Timeserial{Site: site, Time: time, Counter: counter}
}

func (ts Timeserial) WithIndex(index uint32) Timeserial {
	ts.Index = index
	ts.HasIndex = true
	return ts
}

func (ts Timeserial) String() string {
	if ts.HasIndex {
		return fmt.Sprintf("%014d-%03d@%s:%03d", ts.Time, ts.Counter, ts.Site, ts.Index)
	}
	return fmt.Sprintf("%014d-%03d@%s", ts.Time, ts.Counter, ts.Site)
}

func ParseTimeserial(str string) (ts Timeserial, err error) {
	prefix, suffix, ok := strings.Cut(str, "@")
	if !ok || len(suffix) == 0 {
		return ts, ErrBadTimeserial
	}
	timestr, counterstr, ok := strings.Cut(prefix, "-")
	if !ok || len(timestr) == 0 || len(counterstr) == 0 {
		return ts, ErrBadTimeserial
	}
	if ts.Time, err = strconv.ParseUint(timestr, 10, 64); err != nil {
		return ts, ErrBadTimeserial
	}
	counter, err := strconv.ParseUint(counterstr, 10, 32)
	if err != nil {
		return ts, ErrBadTimeserial
	}
	ts.Counter = uint32(counter)
	site, indexstr, hasIndex := strings.Cut(suffix, ":")
	if len(site) == 0 {
		return ts, ErrBadTimeserial
	}
	ts.Site = site
	if hasIndex {
		index, e := strconv.ParseUint(indexstr, 10, 32)
		if e != nil {
			return ts, ErrBadTimeserial
		}
		ts.Index = uint32(index)
		ts.HasIndex = true
	}
	return ts, nil
}

// CompareSerials orders two serials lexicographically; the empty serial
// sorts before everything else.
func CompareSerials(a, b string) int {
	return strings.Compare(a, b)
}

// After reports whether serial a is strictly later than serial b.
// An empty a is never after anything; an empty b is earlier than any
// non-empty a.
func After(a, b string) bool {
	if a == "" {
		return false
	}
	return CompareSerials(a, b) > 0
}

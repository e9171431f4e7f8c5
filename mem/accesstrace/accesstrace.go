// Package accesstrace reads access traces and feeds them to a coherence
// system.
//
// A trace is a text file with one access per line:
//
//	<cycle> <module> <load|store> <address> [value]
//
// Numbers may be written in decimal or with a 0x prefix. Text after a '#' is
// ignored. Stores without a value write 0.
package accesstrace

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/timing"
)

// Access is one line of a trace.
type Access struct {
	Cycle   timing.VTimeInCycle
	Kind    coherence.AccessKind
	Module  string
	Address uint64
	Value   uint64

	// Line is the line number in the trace, starting from 1.
	Line int
}

// Request converts the access into a request of the coherence system.
func (a Access) Request() coherence.AccessReq {
	return coherence.AccessReq{
		Kind:    a.Kind,
		Module:  a.Module,
		Address: a.Address,
		Value:   a.Value,
	}
}

// ParseFile parses the trace stored in a file.
func ParseFile(path string) ([]Access, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open trace")
	}
	defer f.Close()

	accesses, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}

	return accesses, nil
}

// Parse reads a trace. The accesses are returned in cycle order; accesses of
// the same cycle keep their order in the trace.
func Parse(r io.Reader) ([]Access, error) {
	var accesses []Access

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		access, err := parseFields(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}

		access.Line = lineNo
		accesses = append(accesses, access)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read trace")
	}

	sort.SliceStable(accesses, func(i, j int) bool {
		return accesses[i].Cycle < accesses[j].Cycle
	})

	return accesses, nil
}

func parseFields(fields []string) (Access, error) {
	var a Access

	if len(fields) < 4 || len(fields) > 5 {
		return a, errors.Errorf("expected 4 or 5 fields, got %d", len(fields))
	}

	cycle, err := parseNumber(fields[0], "cycle")
	if err != nil {
		return a, err
	}

	a.Cycle = timing.VTimeInCycle(cycle)
	a.Module = fields[1]

	switch strings.ToLower(fields[2]) {
	case "load", "ld", "r":
		a.Kind = coherence.AccessLoad
	case "store", "st", "w":
		a.Kind = coherence.AccessStore
	default:
		return a, errors.Errorf("unknown access kind %q", fields[2])
	}

	a.Address, err = parseNumber(fields[3], "address")
	if err != nil {
		return a, err
	}

	if len(fields) == 5 {
		if a.Kind == coherence.AccessLoad {
			return a, errors.New("a load cannot carry a value")
		}

		a.Value, err = parseNumber(fields[4], "value")
		if err != nil {
			return a, err
		}
	}

	return a, nil
}

func parseNumber(s, what string) (uint64, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Errorf("invalid %s %q", what, s)
	}

	return n, nil
}

// Issue submits every access to the system. The callback, if not nil, is
// invoked with each finished access and the trace entry it came from.
// Accesses that the system rejects stop the submission.
func Issue(
	system *coherence.System,
	accesses []Access,
	callback func(Access, coherence.AccessRsp),
) error {
	for _, a := range accesses {
		entry := a

		_, err := system.IssueAt(a.Cycle, a.Request(),
			func(rsp coherence.AccessRsp) {
				if callback != nil {
					callback(entry, rsp)
				}
			})
		if err != nil {
			return errors.Wrapf(err, "line %d", a.Line)
		}
	}

	return nil
}

package product

import "fmt"

// Result is the outcome of a deployment action.
type Result int

const (
	OK Result = iota
	Failed
	NeedReboot
	AlreadyInstalled
	IncompatibleAPIVersion
)

var resultNames = map[Result]string{
	OK:                     "OK",
	Failed:                 "FAILED",
	NeedReboot:             "NEED_REBOOT",
	AlreadyInstalled:       "ALREADY_INSTALLED",
	IncompatibleAPIVersion: "INCOMPATIBLE_API_VERSION",
}

// String returns the canonical upper-case name.
func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Result) UnmarshalText(text []byte) error {
	for k, v := range resultNames {
		if v == string(text) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown result %q", text)
}

// severity orders results for aggregation.
func (r Result) severity() int {
	switch r {
	case AlreadyInstalled:
		return 0
	case OK:
		return 1
	case NeedReboot:
		return 2
	case Failed:
		return 3
	case IncompatibleAPIVersion:
		return 4
	default:
		return 3
	}
}

// Applied reports whether the action took effect (OK or NEED_REBOOT).
func (r Result) Applied() bool {
	return r == OK || r == NeedReboot
}

// Worst aggregates results: FAILED dominates NEED_REBOOT dominates OK.
// An empty list is OK.
func Worst(results ...Result) Result {
	worst := OK
	first := true
	for _, r := range results {
		if first || r.severity() > worst.severity() {
			worst = r
			first = false
		}
	}
	return worst
}

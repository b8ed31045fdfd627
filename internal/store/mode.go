package store

import "fmt"

// Mode selects how the remote feature store participates in a run.
type Mode int

const (
	// ModeNever disables all remote store interaction.
	ModeNever Mode = iota
	// ModeIfAvailable uses the store when reachable and falls back to
	// local computation when it is not.
	ModeIfAvailable
	// ModeAlways requires the store; an unreachable store ends the run.
	ModeAlways
)

// ParseMode parses a mode string. The empty string defaults to
// ifavailable; the pipeline logs the effective mode at run start.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "ifavailable":
		return ModeIfAvailable, nil
	case "never":
		return ModeNever, nil
	case "always":
		return ModeAlways, nil
	}
	return ModeNever, fmt.Errorf("invalid store mode %q (want always, ifavailable or never)", s)
}

func (m Mode) String() string {
	switch m {
	case ModeNever:
		return "never"
	case ModeIfAvailable:
		return "ifavailable"
	case ModeAlways:
		return "always"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

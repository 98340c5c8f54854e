// Package session runs one relay session: receive the observation files,
// resolve navigation data, run the positioning computation, extract the
// solution, respond, and clean up.
//
// A session moves through a fixed sequence of stages. Any failure skips
// straight to responding with a failure message; cleanup always runs last
// and exactly once.
package session

// Stage is a step of the session state machine.
type Stage int

const (
	StageReceiving Stage = iota
	StageResolving
	StageComputing
	StageExtracting
	StageResponding
	StageCleanup
)

// String returns the stage name used in logs and outcomes.
func (s Stage) String() string {
	switch s {
	case StageReceiving:
		return "receiving_files"
	case StageResolving:
		return "resolving_aux_data"
	case StageComputing:
		return "computing"
	case StageExtracting:
		return "extracting_result"
	case StageResponding:
		return "responding"
	case StageCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

package transfer

import "github.com/tis24dev/mediasave/internal/types"

// rsync exit codes that are not plain success.
const (
	// Partial transfer due to error (some files could not be read).
	rsyncPartialError = 23
	// Partial transfer due to vanished source files.
	rsyncVanished = 24
)

var exitCodeOutcomes = map[int]types.TransferOutcome{
	0:                 types.TransferSuccess,
	rsyncPartialError: types.TransferPartial,
	rsyncVanished:     types.TransferPartial,
}

// Classify maps an rsync exit code onto a TransferOutcome. Every code absent
// from the table is a hard failure.
func Classify(exitCode int) types.TransferOutcome {
	if outcome, ok := exitCodeOutcomes[exitCode]; ok {
		return outcome
	}
	return types.TransferFailed
}

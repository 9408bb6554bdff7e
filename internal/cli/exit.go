package cli

// Exit codes returned by the kvcache binary.
const (
	ExitCodeOK    = 0
	ExitCodeError = 1
	// ExitCodeMiss reports a missing or expired key from get and exists.
	ExitCodeMiss = 3
)

// ExitError carries a specific process exit code out of a command.
// An empty Reason exits silently.
type ExitError struct {
	ExitCode int
	Reason   string
}

func (e *ExitError) Error() string {
	return e.Reason
}

// miss records a miss to be reported once the command has cleaned up.
func (a *app) miss(reason string) {
	a.exit = &ExitError{ExitCode: ExitCodeMiss, Reason: reason}
}

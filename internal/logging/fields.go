package logging

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"

	// Process fields
	FieldPID     = "pid"
	FieldPPID    = "ppid"
	FieldPGID    = "pgid"
	FieldParent  = "parent"
	FieldState   = "state"
	FieldSignal  = "signal"
	FieldOutcome = "outcome"
	FieldCommand = "command"
)

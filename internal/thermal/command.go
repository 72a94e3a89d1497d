package thermal

// CommandKind enumerates the inbound command variants a regulator loop
// accepts (spec.md §4.9: "UpdatePid{Kp,Ki,Kd}, UpdateSetpoint{C}, Stop").
type CommandKind string

const (
	CommandUpdatePid      CommandKind = "update_pid"
	CommandUpdateSetpoint CommandKind = "update_setpoint"
	CommandStop           CommandKind = "stop"
	// CommandResume clears an emergency hold (spec.md §4.9: output stays
	// zeroed and status stays Error("emergency") "until operator resumes").
	CommandResume CommandKind = "resume"
)

// Command is one message sent to a running regulator's inbound channel. A
// nil field on CommandUpdatePid leaves that gain unchanged.
type Command struct {
	Kind CommandKind

	Kp, Ki, Kd *float64
	SetpointC  *float64
}

package daemon

import (
	"fmt"
	"strings"
)

const (
	// controlOK is the control line authorizing a module request.
	controlOK = "@RSYNCD: OK"
	// controlExit is the control line that terminates a daemon conversation.
	controlExit = "@RSYNCD: EXIT"
	// controlAuthPrefix prefixes an authentication challenge.
	controlAuthPrefix = "@RSYNCD: AUTHREQD "
	// controlErrorPrefix prefixes a daemon error report.
	controlErrorPrefix = "@ERROR: "
)

// ControlKind identifies a daemon control response.
type ControlKind uint8

const (
	// ControlGreeting is a version greeting line.
	ControlGreeting ControlKind = iota
	// ControlOK authorizes the requested module.
	ControlOK
	// ControlExit ends the conversation.
	ControlExit
	// ControlAuthRequired demands authentication and carries a challenge.
	ControlAuthRequired
	// ControlError reports a daemon-side error.
	ControlError
	// ControlOther is any line not matching a known control form, such as a
	// message-of-the-day line emitted before the module list.
	ControlOther
)

// String provides a human-readable representation of a control kind.
func (k ControlKind) String() string {
	switch k {
	case ControlGreeting:
		return "greeting"
	case ControlOK:
		return "ok"
	case ControlExit:
		return "exit"
	case ControlAuthRequired:
		return "auth required"
	case ControlError:
		return "error"
	default:
		return "other"
	}
}

// ControlMessage is a classified daemon control line.
type ControlMessage struct {
	// Kind is the control form that was recognized.
	Kind ControlKind
	// Payload carries the challenge for ControlAuthRequired, the message for
	// ControlError, and the raw line for ControlOther. It is empty otherwise.
	Payload string
}

// ClassifyLine classifies a daemon control line. Greeting lines are
// recognized structurally but not parsed; use ParseGreeting for that.
func ClassifyLine(line string) ControlMessage {
	switch {
	case line == controlOK:
		return ControlMessage{Kind: ControlOK}
	case line == controlExit:
		return ControlMessage{Kind: ControlExit}
	case strings.HasPrefix(line, controlAuthPrefix):
		return ControlMessage{ControlAuthRequired, strings.TrimPrefix(line, controlAuthPrefix)}
	case strings.HasPrefix(line, controlErrorPrefix):
		return ControlMessage{ControlError, strings.TrimPrefix(line, controlErrorPrefix)}
	case strings.HasPrefix(line, GreetingPrefix):
		return ControlMessage{Kind: ControlGreeting}
	default:
		return ControlMessage{ControlOther, line}
	}
}

// FormatOK renders the module authorization line, without terminator.
func FormatOK() string {
	return controlOK
}

// FormatExit renders the conversation termination line, without terminator.
func FormatExit() string {
	return controlExit
}

// FormatAuthRequired renders an authentication challenge line, without
// terminator.
func FormatAuthRequired(challenge string) string {
	return controlAuthPrefix + challenge
}

// FormatError renders a daemon error line, without terminator.
func FormatError(message string) string {
	return fmt.Sprintf("%s%s", controlErrorPrefix, message)
}

package desired

// Code classifies the informational result of a mobile intent operation.
// These are success responses, not errors; callers use them to distinguish
// "nothing to do" from a failure.
type Code string

const (
	CodeAccepted         Code = "accepted"
	CodeIncompatible     Code = "incompatible"
	CodeAlreadyInstalled Code = "already_installed"
	CodeRemovalScheduled Code = "removal_scheduled"
	CodeRemovalPending   Code = "removal_pending"
)

// Outcome is the informational result returned to the mobile client.
type Outcome struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

var outcomeMessages = map[Code]string{
	CodeAccepted:         "feature will be installed on the next vehicle wake-up",
	CodeIncompatible:     "this feature is not compatible with your vehicle",
	CodeAlreadyInstalled: "feature already installed",
	CodeRemovalScheduled: "feature will be removed on the next vehicle wake-up",
	CodeRemovalPending:   "feature removal is already pending",
}

func outcome(c Code) Outcome {
	return Outcome{Code: c, Message: outcomeMessages[c]}
}

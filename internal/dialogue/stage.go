package dialogue

// Stage is the authoritative conversation state. Exactly one stage is active
// at a time; the scattered boolean flags of a typical widget implementation
// (role set, agent mode, input disabled) all derive from it.
type Stage string

const (
	// StageAwaitingRole is the initial stage: the greeting is shown and the
	// user must pick a role before anything else.
	StageAwaitingRole Stage = "awaiting_role"

	// StageVisitorMenu offers the scripted visitor questions. Re-entered
	// after each scripted answer.
	StageVisitorMenu Stage = "visitor_menu"

	// StageStudentFreeform accepts free text scoped by the academic filters.
	StageStudentFreeform Stage = "student_freeform"

	// StageAgentFreeform accepts exactly one free-text question; after the
	// answer the session returns to the visitor menu.
	StageAgentFreeform Stage = "agent_freeform"

	// StageEnded is terminal until an explicit reset.
	StageEnded Stage = "ended"
)

// IsValid reports whether s is a recognised stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageAwaitingRole, StageVisitorMenu, StageStudentFreeform, StageAgentFreeform, StageEnded:
		return true
	}
	return false
}

// freeform reports whether free-text input is meaningful in this stage.
func (s Stage) freeform() bool {
	return s == StageStudentFreeform || s == StageAgentFreeform
}

// Role is the conversation role chosen at the first turn. It gates which
// answer table and remote endpoint apply.
type Role string

const (
	RoleUnset   Role = ""
	RoleVisitor Role = "visitor"
	RoleStudent Role = "student"
)

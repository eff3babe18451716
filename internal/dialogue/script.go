package dialogue

import (
	"slices"
	"time"
)

// Option payload keys understood by the controller.
const (
	PayloadRoleStudent = "role_student"
	PayloadRoleVisitor = "role_parent_visitor"
	PayloadAskOther    = "ask_other_query"
	PayloadEndChat     = "end_chat"
	PayloadEndStudent  = "end_chat_student"
)

// Scripted texts. These are fixed conversation copy, not configuration.
const (
	greetingText = "Welcome to LDRP! I'm here to assist you. To get started, please select your role."
	visitorText  = "Welcome! Please select a question below, or ask your own."
	studentText  = "Great! Please select your details below, then type your question."
	agentText    = "The agent is now active. Please type your question below."
	menuText     = "You can select another question or ask a different query."
	farewellText = "Thank you for visiting. Have a great day!"
	errorText    = "⚠ Sorry, I'm having trouble connecting to the server."
)

const (
	// menuRedisplayDelay is how long after a scripted or agent answer the
	// visitor menu is re-rendered.
	menuRedisplayDelay = time.Second

	// noticeTTL is how long a transient system notice stays in the
	// transcript before it self-removes.
	noticeTTL = 5 * time.Second
)

// roleOptions is the choice set attached to the greeting turn.
var roleOptions = []Option{
	{Label: "I am a Student", Payload: PayloadRoleStudent},
	{Label: "I am a Parent / Visitor", Payload: PayloadRoleVisitor},
}

// visitorMenu is the scripted question menu offered in the visitor stage.
var visitorMenu = []Option{
	{Label: "College Timings", Payload: "visitor_q1"},
	{Label: "Admission Documents", Payload: "visitor_q2"},
	{Label: "Fee Structure", Payload: "visitor_q3"},
	{Label: "Anti-Ragging Policies", Payload: "visitor_q4"},
	{Label: "Ask Other Query", Payload: PayloadAskOther},
}

// scriptedAnswers maps a visitor menu payload to its canned answer.
var scriptedAnswers = map[string]string{
	"visitor_q1": "The college operates from 9:00 AM to 5:00 PM, Monday to Saturday.",
	"visitor_q2": "For admission, you'll need your 10th and 12th mark sheets, school leaving certificate, and passport-sized photographs.",
	"visitor_q3": "The detailed fee structure for each course is available on our website's admission page. Please visit ldrp.ac.in/admissions.",
	"visitor_q4": "Yes, LDRP has a zero-tolerance policy towards ragging. A dedicated anti-ragging committee is in place to handle any incidents.",
	"visitor_q5": "We have a dedicated placement cell that works with top companies. Our placement record has been consistently excellent. More details are on our website.",
}

// visitorMenuWithEnd returns the visitor menu plus the End Chat option, used
// when the menu is re-rendered after an answer.
func visitorMenuWithEnd() []Option {
	menu := slices.Clone(visitorMenu)
	return append(menu, Option{Label: "End Chat", Payload: PayloadEndChat})
}

// Filters is the student academic context required before each student-mode
// dispatch. Zero values are replaced with the permissive defaults.
type Filters struct {
	Batch    string `json:"batch"`
	Branch   string `json:"branch"`
	Semester string `json:"semester"`
	DocType  string `json:"doc_type"`
}

// DefaultFilters returns the permissive filter selection every student
// session starts with.
func DefaultFilters() Filters {
	return Filters{
		Batch:    "ALL",
		Branch:   "Computer Engineering",
		Semester: "ALL",
		DocType:  "ALL",
	}
}

// Allowed filter values, as offered by the widget's selectors.
var (
	AllowedBatches = []string{"ALL", "2022-2026", "2023-2027", "2024-2028", "2025-2029"}

	AllowedBranches = []string{
		"Computer Engineering", "Information Technology", "Mechanical Engineering",
		"Electrical & Communication", "Electrical Engineering",
	}

	AllowedSemesters = []string{
		"ALL", "Semester 1", "Semester 2", "Semester 3", "Semester 4",
		"Semester 5", "Semester 6", "Semester 7", "Semester 8",
	}

	AllowedDocTypes = []string{
		"ALL", "ExamForm", "FeesNotice", "ExamTimetable", "Circular",
		"EventInformation", "ClassTimeTable", "SeminarInformation",
		"GeneralNotice", "GeneralInformation",
	}
)

// Validate checks every non-empty field against the allowed value sets.
func (f Filters) Validate() error {
	checks := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"batch", f.Batch, AllowedBatches},
		{"branch", f.Branch, AllowedBranches},
		{"semester", f.Semester, AllowedSemesters},
		{"doc_type", f.DocType, AllowedDocTypes},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		if !slices.Contains(c.allowed, c.value) {
			return &FilterError{Field: c.name, Value: c.value}
		}
	}
	return nil
}

// withDefaults fills empty fields from [DefaultFilters].
func (f Filters) withDefaults() Filters {
	d := DefaultFilters()
	if f.Batch == "" {
		f.Batch = d.Batch
	}
	if f.Branch == "" {
		f.Branch = d.Branch
	}
	if f.Semester == "" {
		f.Semester = d.Semester
	}
	if f.DocType == "" {
		f.DocType = d.DocType
	}
	return f
}

// FilterError reports a filter value outside the allowed set.
type FilterError struct {
	Field string
	Value string
}

func (e *FilterError) Error() string {
	return "dialogue: invalid " + e.Field + " filter value " + `"` + e.Value + `"`
}

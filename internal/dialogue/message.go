// Package dialogue implements the conversational assistant engine: a
// finite-state dialogue controller driving the role/option/free-text flow of
// the college chat widget.
//
// A [Session] owns one conversation: an append-only transcript, the current
// [Stage], the chosen [Role], and the student academic filters. User input
// arrives either as an option selection (payload key) or as free text; free
// text is run through the typo corrector before being dispatched to the
// external answer service. All failures are converted to in-transcript
// notices; nothing propagates past the dispatch boundary.
package dialogue

import "time"

// Origin identifies who authored a transcript message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Kind classifies a transcript message. Notices are ephemeral/informational,
// rendered distinctly, and never dispatched as queries.
type Kind string

const (
	// KindNormal is a regular conversational turn.
	KindNormal Kind = "normal"

	// KindSystem is a transient system notice (e.g. voice unavailable).
	KindSystem Kind = "system"

	// KindCorrection is the "Did you mean ...?" notice inserted between a
	// user turn and the assistant's reply.
	KindCorrection Kind = "correction"
)

// Option is a single selectable choice attached to an assistant turn.
// When the latest assistant message carries options, they are the only valid
// next inputs besides free text (when free text is enabled).
type Option struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Message is one turn in the transcript. Messages are never mutated after
// creation; the transcript itself may be wholesale reset or have an ephemeral
// notice removed, but individual turns are immutable.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Origin    Origin    `json:"origin"`
	Kind      Kind      `json:"kind"`
	Options   []Option  `json:"options,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType classifies a transcript mutation delivered to subscribers.
type EventType string

const (
	// EventAppend reports a message appended to the transcript.
	EventAppend EventType = "append"

	// EventRemove reports an ephemeral notice removed from the transcript.
	EventRemove EventType = "remove"

	// EventReset reports the transcript being reset to the greeting turn.
	EventReset EventType = "reset"

	// EventInput reports recognised speech landing in the pending input.
	EventInput EventType = "input"
)

// Event is a single transcript mutation. Append events carry the message;
// remove events carry only the message ID; input events carry the recognised
// text in Text.
type Event struct {
	Type      EventType `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Text      string    `json:"text,omitempty"`
}

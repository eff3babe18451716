package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ldrpitr/samvaad/internal/observe"
	"github.com/ldrpitr/samvaad/internal/query"
	"github.com/ldrpitr/samvaad/internal/speech"
	"github.com/ldrpitr/samvaad/internal/typo"
)

// Well-known session errors. Transport layers map these to client-visible
// statuses; none of them ever surface inside the transcript.
var (
	// ErrBusy is returned when a submission arrives while a dispatch is in
	// flight. The input surface is disabled for the dispatch duration, so a
	// well-behaved client never sees this.
	ErrBusy = errors.New("dialogue: dispatch already in flight")

	// ErrInputDisabled is returned when free text arrives in a stage that
	// does not accept it.
	ErrInputDisabled = errors.New("dialogue: free-text input is not enabled")

	// ErrNoSuchMessage is returned by Speak for an unknown or non-speakable
	// message ID.
	ErrNoSuchMessage = errors.New("dialogue: no such message")

	// ErrNoRecognizer is returned by Listen when no speech recognizer is
	// configured.
	ErrNoRecognizer = errors.New("dialogue: no speech recognizer configured")
)

// Scheduler defers fn by d. The default implementation wraps
// [time.AfterFunc]; tests inject an immediate or manual scheduler. Deferred
// actions are epoch-guarded by the session, so a scheduler never needs to
// support cancellation itself.
type Scheduler func(d time.Duration, fn func())

// Recorder receives transcript activity for persistence. Implementations
// must not block: the session calls these inline on the conversation path.
type Recorder interface {
	// RecordSession notes a newly created session.
	RecordSession(sessionID string, startedAt time.Time, language string)

	// RecordTurn notes a message appended to a session's transcript.
	RecordTurn(sessionID string, m Message)
}

// Config carries the collaborators a [Session] depends on. Querier is the
// only required field; everything else has a working default or is optional.
type Config struct {
	// Querier dispatches free-text questions to the external answer service.
	Querier query.Service

	// Corrector fixes typos in free text before dispatch. Nil selects a
	// corrector over [typo.DefaultDictionary].
	Corrector *typo.Corrector

	// Synth voices assistant turns on request. Nil disables Speak.
	Synth speech.Synthesizer

	// Recognizer captures voice input into the pending input buffer.
	// Nil disables Listen.
	Recognizer speech.Recognizer

	// Schedule defers the menu re-render and notice removal. Nil selects
	// [time.AfterFunc].
	Schedule Scheduler

	// Recorder persists transcript activity. Optional.
	Recorder Recorder

	// Metrics records conversation metrics. Optional.
	Metrics *observe.Metrics

	// Language is the initial target language tag. Empty selects
	// [speech.DefaultLanguage].
	Language string
}

// Session is one open conversation. All exported methods are safe for
// concurrent use; state transitions happen under a single mutex, and the only
// suspension point is the outbound query dispatch, during which the input
// surface is disabled (busy latch) rather than the lock held.
type Session struct {
	mu sync.Mutex

	id        string
	cfg       Config
	corrector *typo.Corrector
	schedule  Scheduler

	stage        Stage
	role         Role
	filters      Filters
	language     string
	transcript   []Message
	inputEnabled bool
	busy         bool
	pendingInput string

	// epoch invalidates deferred actions: reset and end bump it, so a timer
	// scheduled before the bump fires into a no-op.
	epoch uint64

	seq     int
	started time.Time

	subs    map[int]chan Event
	nextSub int
}

// NewSession creates a session seeded with the greeting turn and role
// options, in [StageAwaitingRole] with free text disabled.
func NewSession(id string, cfg Config) *Session {
	s := &Session{
		id:        id,
		cfg:       cfg,
		corrector: cfg.Corrector,
		schedule:  cfg.Schedule,
		language:  cfg.Language,
		filters:   DefaultFilters(),
		started:   time.Now(),
		subs:      map[int]chan Event{},
	}
	if s.corrector == nil {
		s.corrector = typo.New(typo.DefaultDictionary)
	}
	if s.schedule == nil {
		s.schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if s.language == "" {
		s.language = speech.DefaultLanguage
	}

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	if cfg.Recorder != nil {
		cfg.Recorder.RecordSession(id, s.started, s.language)
	}
	if cfg.Metrics != nil {
		cfg.Metrics.ActiveSessions.Add(context.Background(), 1)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Stage returns the current conversation stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Role returns the chosen conversation role.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Language returns the current target language tag.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// InputEnabled reports whether the free-text input surface should accept
// submissions right now.
func (s *Session) InputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputEnabled && !s.busy
}

// Filters returns the current student academic filters.
func (s *Session) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Transcript returns a copy of the transcript in append order.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// PendingInput returns text delivered by speech recognition that has not
// been submitted yet.
func (s *Session) PendingInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingInput
}

// SetLanguage switches the target language for dispatches and voice output.
func (s *Session) SetLanguage(lang string) error {
	if !speech.IsSupported(lang) {
		return fmt.Errorf("dialogue: unsupported language %q", lang)
	}
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
	return nil
}

// SetFilters updates the student academic filters. Empty fields keep the
// permissive defaults; non-empty fields must be in the allowed value sets.
func (s *Session) SetFilters(f Filters) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.filters = f.withDefaults()
	s.mu.Unlock()
	return nil
}

// Subscribe returns a channel of transcript events and a cancel function.
// Events are delivered best-effort: a slow subscriber loses events rather
// than blocking the conversation.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// SelectOption processes a menu choice identified by its payload key.
// Payloads that do not belong to the latest option-bearing turn (or to the
// student panel's End Chat button) are ignored: stray and stale selections
// must never corrupt the conversation.
func (s *Session) SelectOption(ctx context.Context, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrBusy
	}
	if s.stage == StageEnded {
		// The farewell carries no options; an ended conversation resumes
		// only through an explicit Reset. Late clicks on an old menu are
		// ignored rather than reviving the session.
		slog.Warn("dialogue: ignoring option after end",
			"session_id", s.id, "payload", payload)
		return nil
	}

	opt, ok := s.allowedOptionLocked(payload)
	if !ok {
		slog.Warn("dialogue: ignoring stray option payload",
			"session_id", s.id, "payload", payload, "stage", s.stage)
		return nil
	}

	s.appendLocked(Message{Text: opt.Label, Origin: OriginUser, Kind: KindNormal})

	switch {
	case payload == PayloadRoleVisitor:
		s.stage = StageVisitorMenu
		s.role = RoleVisitor
		s.inputEnabled = false
		s.appendLocked(Message{
			Text: visitorText, Origin: OriginAssistant, Kind: KindNormal,
			Options: visitorMenu,
		})

	case payload == PayloadRoleStudent:
		s.stage = StageStudentFreeform
		s.role = RoleStudent
		s.inputEnabled = true
		s.appendLocked(Message{Text: studentText, Origin: OriginAssistant, Kind: KindNormal})

	case payload == PayloadAskOther:
		s.stage = StageAgentFreeform
		s.inputEnabled = true
		s.appendLocked(Message{Text: agentText, Origin: OriginAssistant, Kind: KindNormal})

	case payload == PayloadEndChat || payload == PayloadEndStudent:
		s.endLocked()

	default:
		answer, found := scriptedAnswers[payload]
		if !found {
			// A menu payload with no scripted answer is a configuration
			// defect; the conversation must survive it.
			slog.Warn("dialogue: no scripted answer for payload",
				"session_id", s.id, "payload", payload)
			return nil
		}
		s.inputEnabled = false
		s.appendLocked(Message{Text: answer, Origin: OriginAssistant, Kind: KindNormal})
		s.scheduleMenuRedisplayLocked()
	}

	return nil
}

// SubmitText processes a free-text submission: the corrector runs first, a
// correction notice is inserted when the text changed, and the corrected
// text is dispatched to the answer service selected by the session role.
// Empty or whitespace-only input is dropped silently.
func (s *Session) SubmitText(ctx context.Context, text string) error {
	original := strings.TrimSpace(text)
	if original == "" {
		return nil
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if !s.inputEnabled || !s.stage.freeform() {
		s.mu.Unlock()
		return ErrInputDisabled
	}

	corrected := s.corrector.Correct(original)

	s.appendLocked(Message{Text: original, Origin: OriginUser, Kind: KindNormal})
	if !strings.EqualFold(original, corrected) {
		s.appendLocked(Message{
			Text:   fmt.Sprintf("Did you mean: %q?", corrected),
			Origin: OriginAssistant,
			Kind:   KindCorrection,
		})
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.Corrections.Add(ctx, 1)
		}
	}

	// Latch the dispatch: input stays disabled until the answer (or the
	// error notice) lands. Snapshot everything the dispatch needs, then
	// release the lock for the network call.
	s.busy = true
	s.pendingInput = ""
	stage := s.stage
	filters := s.filters
	language := s.language
	epoch := s.epoch
	s.mu.Unlock()

	answer, err := s.dispatch(ctx, stage, corrected, filters, language)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// The session was reset or ended while the dispatch was in flight;
		// the result belongs to a conversation that no longer exists.
		slog.Debug("dialogue: dropping stale dispatch result", "session_id", s.id)
		return nil
	}
	s.busy = false

	if err != nil {
		slog.Warn("dialogue: dispatch failed", "session_id", s.id, "error", err)
		s.appendLocked(Message{Text: errorText, Origin: OriginAssistant, Kind: KindNormal})
		// Input re-enables so the user may resubmit manually; no retry.
		s.inputEnabled = true
		return nil
	}

	s.appendLocked(Message{Text: answer, Origin: OriginAssistant, Kind: KindNormal})

	if stage == StageAgentFreeform {
		// The agent turn is one-shot: free text closes and the visitor menu
		// returns after the scripted delay.
		s.inputEnabled = false
		s.scheduleMenuRedisplayLocked()
	}
	return nil
}

// dispatch routes the corrected question to the endpoint selected by stage.
// Exactly one endpoint is addressed per submission.
func (s *Session) dispatch(ctx context.Context, stage Stage, question string, f Filters, language string) (string, error) {
	if s.cfg.Querier == nil {
		return "", errors.New("dialogue: no query service configured")
	}

	start := time.Now()
	var (
		answer string
		err    error
		kind   string
	)
	switch stage {
	case StageStudentFreeform:
		kind = "student"
		answer, err = s.cfg.Querier.StudentQuery(ctx, query.StudentRequest{
			Batch:          f.Batch,
			Branch:         f.Branch,
			Semester:       f.Semester,
			DocType:        f.DocType,
			Question:       question,
			TargetLanguage: language,
		})
	case StageAgentFreeform:
		kind = "agent"
		answer, err = s.cfg.Querier.AgentQuery(ctx, query.AgentRequest{
			Question:       question,
			TargetLanguage: language,
		})
	default:
		return "", fmt.Errorf("dialogue: stage %q cannot dispatch", stage)
	}

	if m := s.cfg.Metrics; m != nil {
		attrs := metric.WithAttributes(attribute.String("mode", kind))
		m.DispatchDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		m.QueryRequests.Add(ctx, 1, attrs)
		if err != nil {
			m.QueryErrors.Add(ctx, 1, attrs)
		}
	}
	return answer, err
}

// Speak voices the identified assistant turn in the session language. When
// no matching voice is installed, a transient system notice is appended and
// self-removes after its TTL; this is not an error.
func (s *Session) Speak(ctx context.Context, messageID string) error {
	if s.cfg.Synth == nil {
		return errors.New("dialogue: no synthesizer configured")
	}

	s.mu.Lock()
	var target *Message
	for i := range s.transcript {
		m := &s.transcript[i]
		if m.ID == messageID && m.Origin == OriginAssistant && m.Kind == KindNormal {
			target = m
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNoSuchMessage, messageID)
	}
	text := target.Text
	language := s.language
	s.mu.Unlock()

	err := s.cfg.Synth.Speak(ctx, text, language)
	if err == nil {
		return nil
	}
	if !errors.Is(err, speech.ErrNoVoice) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	notice := s.appendLocked(Message{
		Text:   fmt.Sprintf("A voice for %s is not available on your device.", speech.LanguageName(language)),
		Origin: OriginAssistant,
		Kind:   KindSystem,
	})
	s.scheduleNoticeRemovalLocked(notice.ID)
	return nil
}

// Listen starts voice capture in the session language. The final transcript
// lands in the pending input buffer and is announced with an [EventInput] —
// it is never auto-submitted, mirroring how recognised speech fills the
// input field rather than sending the message.
func (s *Session) Listen(ctx context.Context) error {
	if s.cfg.Recognizer == nil {
		return ErrNoRecognizer
	}
	s.mu.Lock()
	language := s.language
	s.mu.Unlock()

	return s.cfg.Recognizer.Start(ctx, language, func(finalText string) {
		s.mu.Lock()
		s.pendingInput = finalText
		s.broadcastLocked(Event{Type: EventInput, Text: finalText})
		s.mu.Unlock()
	})
}

// StopListening ends any active voice capture.
func (s *Session) StopListening() {
	if s.cfg.Recognizer != nil {
		s.cfg.Recognizer.Stop()
	}
}

// Reset reinitialises the session: the transcript collapses to the single
// greeting turn, stage and role return to their initial values, and every
// pending deferred action is invalidated.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// End closes the conversation from any state: a farewell turn is appended,
// free text is disabled, and the role cleared. A later Reset returns the
// session to the greeting.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageEnded {
		return
	}
	s.endLocked()
}

// Close releases the session's resources: subscribers are closed and gauges
// decremented. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

// --- internal helpers (all require s.mu held) ---

func (s *Session) resetLocked() {
	s.epoch++
	s.stage = StageAwaitingRole
	s.role = RoleUnset
	s.filters = DefaultFilters()
	s.inputEnabled = false
	s.busy = false
	s.pendingInput = ""
	s.transcript = s.transcript[:0]
	s.broadcastLocked(Event{Type: EventReset})
	s.appendLocked(Message{
		Text:    greetingText,
		Origin:  OriginAssistant,
		Kind:    KindNormal,
		Options: roleOptions,
	})
}

func (s *Session) endLocked() {
	s.epoch++
	s.stage = StageEnded
	s.role = RoleUnset
	s.inputEnabled = false
	s.busy = false
	s.appendLocked(Message{Text: farewellText, Origin: OriginAssistant, Kind: KindNormal})
}

// allowedOptionLocked resolves payload against the latest option-bearing
// turn, plus the student panel's always-present End Chat affordance.
func (s *Session) allowedOptionLocked(payload string) (Option, bool) {
	if s.stage == StageStudentFreeform && payload == PayloadEndStudent {
		return Option{Label: "End Chat", Payload: PayloadEndStudent}, true
	}
	for i := len(s.transcript) - 1; i >= 0; i-- {
		m := s.transcript[i]
		if m.Origin != OriginAssistant || len(m.Options) == 0 {
			continue
		}
		for _, opt := range m.Options {
			if opt.Payload == payload {
				return opt, true
			}
		}
		// Only the latest option set is live; older menus are stale.
		return Option{}, false
	}
	return Option{}, false
}

func (s *Session) appendLocked(m Message) Message {
	s.seq++
	m.ID = fmt.Sprintf("%d-%d", s.started.UnixMilli(), s.seq)
	m.Timestamp = time.Now()
	s.transcript = append(s.transcript, m)

	s.broadcastLocked(Event{Type: EventAppend, Message: &m})

	if s.cfg.Recorder != nil {
		s.cfg.Recorder.RecordTurn(s.id, m)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.Turns.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("origin", string(m.Origin)),
			attribute.String("kind", string(m.Kind)),
		))
	}
	return m
}

func (s *Session) removeMessageLocked(id string) {
	for i, m := range s.transcript {
		if m.ID == id {
			s.transcript = append(s.transcript[:i], s.transcript[i+1:]...)
			s.broadcastLocked(Event{Type: EventRemove, MessageID: id})
			return
		}
	}
}

func (s *Session) broadcastLocked(ev Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("dialogue: dropping event for slow subscriber",
				"session_id", s.id, "subscriber", id, "event", ev.Type)
		}
	}
}

// scheduleMenuRedisplayLocked re-renders the visitor menu after the scripted
// delay. The epoch guard makes the action a no-op when the session was reset
// or ended in the meantime.
func (s *Session) scheduleMenuRedisplayLocked() {
	epoch := s.epoch
	s.schedule(menuRedisplayDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch {
			return
		}
		s.stage = StageVisitorMenu
		s.role = RoleVisitor
		s.inputEnabled = false
		s.appendLocked(Message{
			Text: menuText, Origin: OriginAssistant, Kind: KindNormal,
			Options: visitorMenuWithEnd(),
		})
	})
}

// scheduleNoticeRemovalLocked self-removes a transient notice after its TTL.
func (s *Session) scheduleNoticeRemovalLocked(id string) {
	epoch := s.epoch
	s.schedule(noticeTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch {
			return
		}
		s.removeMessageLocked(id)
	})
}

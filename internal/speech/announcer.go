package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Utterance is a single synthesis request resolved by an [Announcer].
type Utterance struct {
	Text  string `json:"text"`
	Lang  string `json:"lang"`
	Voice Voice  `json:"voice"`
}

// Announcer implements [Synthesizer] against a declared voice inventory.
// It does not produce audio itself: playback happens on the client, so the
// server's job is deciding whether a voice exists and handing the resolved
// utterance to an emit callback (typically a websocket broadcast).
type Announcer struct {
	mu     sync.RWMutex
	voices []Voice
	emit   func(Utterance)
}

// Compile-time interface assertion.
var _ Synthesizer = (*Announcer)(nil)

// NewAnnouncer creates an [Announcer] over the declared voices. emit receives
// every successfully resolved utterance; a nil emit falls back to logging.
func NewAnnouncer(voices []Voice, emit func(Utterance)) *Announcer {
	vs := make([]Voice, len(voices))
	copy(vs, voices)
	return &Announcer{voices: vs, emit: emit}
}

// Speak resolves a voice for lang and emits the utterance. It returns
// [ErrNoVoice] when the inventory has no voice for the language's primary
// subtag.
func (a *Announcer) Speak(ctx context.Context, text, lang string) error {
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.RLock()
	voice, ok := MatchVoice(a.voices, lang)
	emit := a.emit
	a.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoVoice, lang)
	}

	u := Utterance{Text: text, Lang: lang, Voice: voice}
	if emit != nil {
		emit(u)
	} else {
		slog.Debug("speech: speak", "lang", lang, "voice", voice.Name)
	}
	return nil
}

// ListVoices returns a snapshot of the declared voice inventory.
func (a *Announcer) ListVoices(_ context.Context) ([]Voice, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Voice, len(a.voices))
	copy(out, a.voices)
	return out, nil
}

// SetVoices replaces the voice inventory. Used when the client reports its
// installed voices after connecting.
func (a *Announcer) SetVoices(voices []Voice) {
	vs := make([]Voice, len(voices))
	copy(vs, voices)
	a.mu.Lock()
	a.voices = vs
	a.mu.Unlock()
}

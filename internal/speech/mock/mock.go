// Package mock provides test doubles for the speech capability interfaces.
//
// Use Synthesizer and Recognizer in unit tests to verify the dialogue
// controller's voice behaviour without a real engine. All fields should be
// set before the double is handed to the code under test.
package mock

import (
	"context"
	"sync"

	"github.com/ldrpitr/samvaad/internal/speech"
)

// SpeakCall records a single invocation of Speak.
type SpeakCall struct {
	Text string
	Lang string
}

// Synthesizer is a mock implementation of speech.Synthesizer.
// The zero value succeeds on every Speak call with no voices installed —
// set Voices to make language matching succeed.
type Synthesizer struct {
	mu sync.Mutex

	// Voices is returned by ListVoices and consulted by Speak: a Speak call
	// for a language with no matching voice returns speech.ErrNoVoice.
	Voices []speech.Voice

	// SpeakErr, if non-nil, is returned from every Speak call.
	SpeakErr error

	// SpeakCalls records every Speak invocation in order.
	SpeakCalls []SpeakCall
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

// Speak implements speech.Synthesizer.
func (s *Synthesizer) Speak(_ context.Context, text, lang string) error {
	s.mu.Lock()
	s.SpeakCalls = append(s.SpeakCalls, SpeakCall{Text: text, Lang: lang})
	voices := s.Voices
	err := s.SpeakErr
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if _, ok := speech.MatchVoice(voices, lang); !ok {
		return speech.ErrNoVoice
	}
	return nil
}

// ListVoices implements speech.Synthesizer.
func (s *Synthesizer) ListVoices(_ context.Context) ([]speech.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]speech.Voice, len(s.Voices))
	copy(out, s.Voices)
	return out, nil
}

// Calls returns a snapshot of recorded Speak invocations.
func (s *Synthesizer) Calls() []SpeakCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpeakCall, len(s.SpeakCalls))
	copy(out, s.SpeakCalls)
	return out
}

// Recognizer is a mock implementation of speech.Recognizer. On Start it
// synchronously delivers Result through the callback, mimicking a final
// transcript arriving from the engine.
type Recognizer struct {
	mu sync.Mutex

	// Result is delivered to onResult on every Start call. Empty means no
	// transcript is delivered.
	Result string

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// Started and Stopped count invocations.
	Started int
	Stopped int

	// LastLang is the language passed to the most recent Start.
	LastLang string
}

var _ speech.Recognizer = (*Recognizer)(nil)

// Start implements speech.Recognizer.
func (r *Recognizer) Start(_ context.Context, lang string, onResult func(string)) error {
	r.mu.Lock()
	r.Started++
	r.LastLang = lang
	result := r.Result
	err := r.StartErr
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if result != "" && onResult != nil {
		onResult(result)
	}
	return nil
}

// Stop implements speech.Recognizer.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	r.Stopped++
	r.mu.Unlock()
}

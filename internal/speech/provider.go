// Package speech defines the voice I/O capability interfaces consumed by the
// dialogue controller.
//
// The actual speech engines (recognition and synthesis) live outside this
// process — typically in the visitor's browser — so the core depends only on
// these interfaces and never on a concrete engine. Implementations must be
// safe for concurrent use.
package speech

import (
	"context"
	"errors"
)

// ErrNoVoice is returned by [Synthesizer.Speak] when no installed voice
// matches the requested language. Callers surface this as a transient
// "voice unavailable" notice rather than an error.
var ErrNoVoice = errors.New("speech: no voice available for language")

// Voice describes a single installed synthesis voice.
type Voice struct {
	// Name is the engine-assigned voice name (e.g. "Google हिन्दी").
	Name string `json:"name" yaml:"name"`

	// Lang is the BCP 47 language tag the voice speaks (e.g. "hi-IN").
	Lang string `json:"lang" yaml:"lang"`
}

// Synthesizer converts text to speech in a requested language.
type Synthesizer interface {
	// Speak voices text in the given language tag. It returns [ErrNoVoice]
	// when no installed voice matches the language; any other error means the
	// engine itself failed.
	Speak(ctx context.Context, text, lang string) error

	// ListVoices returns the voices currently installed on the engine.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Recognizer captures speech and delivers final transcripts via callback.
// Results arrive asynchronously, exactly like a user keystroke would: the
// controller treats the delivered text as pending input, not as a submission.
type Recognizer interface {
	// Start begins listening in the given language. onResult is invoked once
	// per final transcript; it must not be invoked after Stop returns.
	Start(ctx context.Context, lang string, onResult func(finalText string)) error

	// Stop ends the current listening session. Stopping an idle recognizer
	// is a no-op.
	Stop()
}

// MatchVoice returns the first voice whose language shares a primary subtag
// with lang (e.g. "hi-IN" matches a "hi" voice). The boolean reports whether
// a match was found.
func MatchVoice(voices []Voice, lang string) (Voice, bool) {
	primary := PrimarySubtag(lang)
	for _, v := range voices {
		if PrimarySubtag(v.Lang) == primary {
			return v, true
		}
	}
	return Voice{}, false
}

// PrimarySubtag returns the primary language subtag of a BCP 47 tag:
// "gu-IN" yields "gu". Tags without a region pass through unchanged.
func PrimarySubtag(lang string) string {
	for i := 0; i < len(lang); i++ {
		if lang[i] == '-' {
			return lang[:i]
		}
	}
	return lang
}

package voice

import (
	"errors"
	"log/slog"
	"sync"
)

const DefaultLocale = "en-US"

var ErrUnavailable = errors.New("speech recognition unavailable")

// Recognizer is the host speech-to-text capability. A started recognizer
// reports back through the Session's Handle* methods.
type Recognizer interface {
	Available() bool
	Start(locale string) error
	Stop() error
}

type Unavailable struct{}

func (Unavailable) Available() bool    { return false }
func (Unavailable) Start(string) error { return ErrUnavailable }
func (Unavailable) Stop() error        { return ErrUnavailable }

// Session tracks the idle/recording state of one recognizer.
type Session struct {
	recognizer  Recognizer
	interpreter *Interpreter
	locale      string

	mu        sync.Mutex
	recording bool
	listeners []func(bool)
}

func NewSession(recognizer Recognizer, interpreter *Interpreter, locale string) *Session {
	if recognizer == nil {
		recognizer = Unavailable{}
	}
	if locale == "" {
		locale = DefaultLocale
	}
	return &Session{recognizer: recognizer, interpreter: interpreter, locale: locale}
}

func (s *Session) Available() bool {
	return s.recognizer.Available()
}

func (s *Session) Locale() string {
	return s.locale
}

func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *Session) Subscribe(fn func(recording bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) Start() {
	if !s.recognizer.Available() || s.Recording() {
		return
	}
	if err := s.recognizer.Start(s.locale); err != nil {
		slog.Error("start speech recognition", "error", err)
	}
}

func (s *Session) Stop() {
	if !s.recognizer.Available() || !s.Recording() {
		return
	}
	if err := s.recognizer.Stop(); err != nil {
		// Nothing is left to report an end event.
		slog.Error("stop speech recognition", "error", err)
		s.setRecording(false)
	}
}

func (s *Session) HandleStart() {
	s.setRecording(true)
}

func (s *Session) HandleResult(transcript string) {
	if s.interpreter == nil {
		return
	}
	s.interpreter.Process(transcript)
}

func (s *Session) HandleError(code string) {
	slog.Error("speech recognition error", "error", code)
	s.setRecording(false)
}

func (s *Session) HandleEnd() {
	s.setRecording(false)
}

func (s *Session) setRecording(recording bool) {
	s.mu.Lock()
	if s.recording == recording {
		s.mu.Unlock()
		return
	}
	s.recording = recording
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(recording)
	}
}

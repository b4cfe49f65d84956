package voice

import (
	"errors"
	"sync"
)

var ErrNoListener = errors.New("no browser connected for speech recognition")

// Unicaster delivers a frame to a single connected browser.
type Unicaster interface {
	Latest() (clientID string, ok bool)
	Send(clientID, kind string, payload any) bool
}

// Remote drives the speech recognition of one connected browser: the one
// that was most recently active when recognition started. The browser
// answers with voice_started, voice_result, voice_error and voice_ended
// frames, which the web hub routes to the Session.
type Remote struct {
	out Unicaster

	mu     sync.Mutex
	target string
}

func NewRemote(out Unicaster) *Remote {
	return &Remote{out: out}
}

func (r *Remote) Available() bool { return true }

func (r *Remote) Start(locale string) error {
	clientID, ok := r.out.Latest()
	if !ok {
		return ErrNoListener
	}
	delivered := r.out.Send(clientID, "voice.start", map[string]any{
		"lang":           locale,
		"continuous":     false,
		"interimResults": false,
	})
	if !delivered {
		return ErrNoListener
	}

	r.mu.Lock()
	r.target = clientID
	r.mu.Unlock()
	return nil
}

func (r *Remote) Stop() error {
	r.mu.Lock()
	clientID := r.target
	r.mu.Unlock()

	if clientID == "" || !r.out.Send(clientID, "voice.stop", nil) {
		return ErrNoListener
	}
	return nil
}

// Typed stands in for speech recognition where only a keyboard exists: the
// "transcript" is typed into a prompt opened by Open and dismissed by Close.
type Typed struct {
	Open  func(locale string)
	Close func()
}

func (t *Typed) Available() bool { return t.Open != nil }

func (t *Typed) Start(locale string) error {
	if t.Open == nil {
		return ErrUnavailable
	}
	t.Open(locale)
	return nil
}

func (t *Typed) Stop() error {
	if t.Close != nil {
		t.Close()
	}
	return nil
}

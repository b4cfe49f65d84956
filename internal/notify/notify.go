// Package notify exposes the host notification and haptic capabilities behind
// a single provider interface, so callers never probe for them directly.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

const (
	AppTitle = "To-Do App"
	AppIcon  = "/icon-192.png"
)

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

func ParsePermission(value string) (Permission, bool) {
	switch Permission(value) {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return Permission(value), true
	}
	return "", false
}

type Provider interface {
	Available() bool
	Permission() Permission
	RequestPermission() Permission
	Show(message string)
}

// BannerVisible reports whether the "enable notifications" prompt should be shown.
func BannerVisible(p Provider) bool {
	return p.Available() && p.Permission() == PermissionDefault
}

// Broadcaster pushes a typed frame to every connected client.
type Broadcaster interface {
	Broadcast(kind string, payload any)
}

// Message is the payload of a notification frame.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`
}

type Unavailable struct{}

func (Unavailable) Available() bool               { return false }
func (Unavailable) Permission() Permission        { return PermissionDenied }
func (Unavailable) RequestPermission() Permission { return PermissionDenied }
func (Unavailable) Show(string)                   {}

// Remote delivers notifications to browsers connected over the websocket hub.
// The browser owns the real permission. It reports the current value on
// connect through ReportPermission and answers requests through
// AnswerRequest.
type Remote struct {
	out Broadcaster

	mu        sync.Mutex
	perm      Permission
	requested bool
	pending   bool
}

func NewRemote(out Broadcaster) *Remote {
	return &Remote{out: out, perm: PermissionDefault}
}

func (r *Remote) Available() bool { return true }

func (r *Remote) Permission() Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perm
}

func (r *Remote) RequestPermission() Permission {
	r.mu.Lock()
	r.requested = true
	r.pending = true
	perm := r.perm
	r.mu.Unlock()

	r.out.Broadcast("notification.request", nil)
	return perm
}

// RequestOnce asks proactively, at most once per process, while the
// permission is still undecided.
func (r *Remote) RequestOnce() bool {
	r.mu.Lock()
	if r.requested || r.perm != PermissionDefault {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()
	r.RequestPermission()
	return true
}

// ReportPermission records the permission a browser already holds. It never
// confirms anything to the user.
func (r *Remote) ReportPermission(perm Permission) {
	r.mu.Lock()
	previous := r.perm
	r.perm = perm
	r.mu.Unlock()

	slog.Debug("notification permission reported", "from", previous, "to", perm)
	r.publish(perm)
}

// AnswerRequest records the browser's answer to a permission request. A grant
// is confirmed with a notification only while a request is outstanding.
func (r *Remote) AnswerRequest(perm Permission) {
	r.mu.Lock()
	previous := r.perm
	confirm := r.pending && perm == PermissionGranted
	r.perm = perm
	r.pending = false
	r.mu.Unlock()

	slog.Debug("notification permission answered", "from", previous, "to", perm)
	r.publish(perm)
	if confirm {
		r.Show("Notifications enabled!")
	}
}

func (r *Remote) publish(perm Permission) {
	r.out.Broadcast("notification.permission", map[string]any{
		"permission": perm,
		"banner":     perm == PermissionDefault,
	})
}

func (r *Remote) Show(message string) {
	if r.Permission() != PermissionGranted {
		return
	}
	r.out.Broadcast("notification", Message{Title: AppTitle, Body: message, Icon: AppIcon, Badge: AppIcon})
}

type Haptics interface {
	Pulse(pattern ...time.Duration)
}

type NoHaptics struct{}

func (NoHaptics) Pulse(...time.Duration) {}

// RemoteHaptics asks connected devices to vibrate with the given pattern.
type RemoteHaptics struct {
	out Broadcaster
}

func NewRemoteHaptics(out Broadcaster) *RemoteHaptics {
	return &RemoteHaptics{out: out}
}

func (h *RemoteHaptics) Pulse(pattern ...time.Duration) {
	if len(pattern) == 0 {
		return
	}
	millis := make([]int64, 0, len(pattern))
	for _, d := range pattern {
		millis = append(millis, d.Milliseconds())
	}
	h.out.Broadcast("haptic", map[string]any{"pattern": millis})
}

package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Joseda-hg/lazytodo/internal/intent"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/notify"
	"github.com/Joseda-hg/lazytodo/internal/tasks"
	"github.com/Joseda-hg/lazytodo/internal/voice"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.tmpl"))

// Deps are the collaborators the web layer presents and dispatches into.
type Deps struct {
	Store    *tasks.Store
	Voice    *voice.Session
	Notifier notify.Provider
	Hub      *Hub
	Now      func() time.Time
}

type Server struct {
	store      *tasks.Store
	voice      *voice.Session
	notifier   notify.Provider
	hub        *Hub
	dispatcher *intent.Dispatcher
	now        func() time.Time

	recMu    sync.Mutex
	recorder string

	httpServer *http.Server
}

type taskView struct {
	model.Task
	DeadlineLabel string `json:"deadlineLabel,omitempty"`
	Overdue       bool   `json:"overdue"`
}

func NewServer(deps Deps) *Server {
	s := &Server{
		store:    deps.Store,
		voice:    deps.Voice,
		notifier: deps.Notifier,
		hub:      deps.Hub,
		now:      deps.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Unavailable{}
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.dispatcher = &intent.Dispatcher{Store: s.store, Notifier: s.notifier}
	if s.voice != nil {
		s.dispatcher.Voice = s.voice
	}

	s.bridge()
	return s
}

// bridge wires store and voice changes out to browsers, and browser
// capability callbacks back into the voice session and notifier.
func (s *Server) bridge() {
	s.store.Subscribe(func(change tasks.Change) {
		if change.Kind == tasks.ChangeFilter {
			s.hub.Broadcast("filter.changed", map[string]any{"filter": change.Filter})
			return
		}
		s.hub.Broadcast("tasks.changed", map[string]any{"kind": change.Kind, "id": change.TaskID})
	})

	if s.voice != nil {
		s.bridgeVoice()
	}
	if remote, ok := s.notifier.(*notify.Remote); ok {
		s.bridgeNotifications(remote)
	}
}

func (s *Server) bridgeVoice() {
	s.voice.Subscribe(func(recording bool) {
		s.hub.Broadcast("voice.changed", map[string]any{"recording": recording})
	})

	s.hub.Handle("voice_start", func(string, json.RawMessage) error {
		_, err := s.dispatcher.Dispatch(intent.StartVoice{})
		return err
	})
	s.hub.Handle("voice_stop", func(string, json.RawMessage) error {
		_, err := s.dispatcher.Dispatch(intent.StopVoice{})
		return err
	})
	s.hub.Handle("voice_started", func(clientID string, _ json.RawMessage) error {
		s.setRecorder(clientID)
		s.voice.HandleStart()
		return nil
	})
	s.hub.Handle("voice_result", func(_ string, params json.RawMessage) error {
		var body struct {
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(params, &body); err != nil {
			return fmt.Errorf("invalid params: %w", err)
		}
		s.voice.HandleResult(body.Transcript)
		return nil
	})
	s.hub.Handle("voice_error", func(clientID string, params json.RawMessage) error {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(params, &body); err != nil {
			return fmt.Errorf("invalid params: %w", err)
		}
		s.clearRecorder(clientID)
		s.voice.HandleError(body.Error)
		return nil
	})
	s.hub.Handle("voice_ended", func(clientID string, _ json.RawMessage) error {
		s.clearRecorder(clientID)
		s.voice.HandleEnd()
		return nil
	})

	// A page that goes away mid-recording never sends its end event.
	s.hub.OnLeave(func(clientID string) {
		if s.clearRecorder(clientID) && s.voice.Recording() {
			slog.Debug("recording browser left", "client", clientID)
			s.voice.HandleEnd()
		}
	})
}

func (s *Server) bridgeNotifications(remote *notify.Remote) {
	s.hub.Handle("notification_status", func(_ string, params json.RawMessage) error {
		perm, err := decodePermission(params)
		if err != nil {
			return err
		}
		remote.ReportPermission(perm)
		if perm == notify.PermissionDefault {
			remote.RequestOnce()
		}
		return nil
	})
	s.hub.Handle("notification_permission", func(_ string, params json.RawMessage) error {
		perm, err := decodePermission(params)
		if err != nil {
			return err
		}
		remote.AnswerRequest(perm)
		return nil
	})
}

func (s *Server) setRecorder(clientID string) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	s.recorder = clientID
}

// clearRecorder reports whether clientID was the recording browser.
func (s *Server) clearRecorder(clientID string) bool {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recorder == "" || s.recorder != clientID {
		return false
	}
	s.recorder = ""
	return true
}

func decodePermission(params json.RawMessage) (notify.Permission, error) {
	var body struct {
		Permission string `json:"permission"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		return "", fmt.Errorf("invalid params: %w", err)
	}
	perm, ok := notify.ParsePermission(body.Permission)
	if !ok {
		return "", fmt.Errorf("invalid permission %q", body.Permission)
	}
	return perm, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/", s.indexHandler)
	r.Get("/api/health", s.healthHandler)
	r.Get("/api/ws", s.hub.ServeWS)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", s.listTasksHandler)
		r.Post("/", s.addTaskHandler)
		r.Patch("/{id}", s.editTaskHandler)
		r.Delete("/{id}", s.deleteTaskHandler)
		r.Post("/{id}/toggle", s.toggleTaskHandler)
	})

	r.Get("/api/filter", s.getFilterHandler)
	r.Put("/api/filter", s.setFilterHandler)

	r.Get("/api/voice", s.voiceStatusHandler)
	r.Post("/api/voice/start", s.voiceStartHandler)
	r.Post("/api/voice/stop", s.voiceStopHandler)

	r.Get("/api/notifications", s.notificationStatusHandler)
	r.Post("/api/notifications/request", s.notificationRequestHandler)

	return r
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("web server listening", "url", "http://"+displayAddr(ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	filter := s.store.Filter()
	data := struct {
		Tasks         []taskView
		Filter        model.Filter
		Filters       []model.Filter
		Categories    []model.Category
		EmptyText     string
		ShowBanner    bool
		VoiceLocale   string
		VoiceRecorder bool
	}{
		Tasks:         s.taskViews(),
		Filter:        filter,
		Filters:       allFilters(),
		Categories:    model.Categories,
		EmptyText:     model.EmptyStateText(filter),
		ShowBanner:    notify.BannerVisible(s.notifier),
		VoiceLocale:   voice.DefaultLocale,
		VoiceRecorder: s.voice != nil && s.voice.Available(),
	}
	if s.voice != nil {
		data.VoiceLocale = s.voice.Locale()
	}

	if err := indexTemplate.Execute(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.Clients()})
}

func (s *Server) listTasksHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"filter": s.store.Filter(),
		"tasks":  s.taskViews(),
	})
}

func (s *Server) addTaskHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text     string `json:"text"`
		Category string `json:"category"`
		Deadline string `json:"deadline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	deadline, err := parseDeadline(body.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.dispatcher.Dispatch(intent.Add{Text: body.Text, Category: model.Category(body.Category), Deadline: deadline})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !res.Created {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(res.Task))
}

func (s *Server) editTaskHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	s.dispatch(w, intent.Edit{ID: chi.URLParam(r, "id"), Text: body.Text})
}

func (s *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, intent.Delete{ID: chi.URLParam(r, "id")})
}

func (s *Server) toggleTaskHandler(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, intent.Toggle{ID: chi.URLParam(r, "id")})
}

func (s *Server) getFilterHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"filter": s.store.Filter()})
}

func (s *Server) setFilterHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter string `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	s.dispatch(w, intent.SetFilter{Filter: model.Filter(body.Filter)})
}

func (s *Server) voiceStatusHandler(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"available": false, "recording": false}
	if s.voice != nil {
		status["available"] = s.voice.Available()
		status["recording"] = s.voice.Recording()
		status["locale"] = s.voice.Locale()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) voiceStartHandler(w http.ResponseWriter, _ *http.Request) {
	s.dispatch(w, intent.StartVoice{})
}

func (s *Server) voiceStopHandler(w http.ResponseWriter, _ *http.Request) {
	s.dispatch(w, intent.StopVoice{})
}

func (s *Server) notificationStatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"available":  s.notifier.Available(),
		"permission": s.notifier.Permission(),
		"banner":     notify.BannerVisible(s.notifier),
	})
}

func (s *Server) notificationRequestHandler(w http.ResponseWriter, _ *http.Request) {
	s.dispatch(w, intent.RequestNotifications{})
}

func (s *Server) dispatch(w http.ResponseWriter, in intent.Intent) {
	if _, err := s.dispatcher.Dispatch(in); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) taskViews() []taskView {
	filtered := s.store.FilteredTasks()
	views := make([]taskView, 0, len(filtered))
	for _, task := range filtered {
		views = append(views, s.view(task))
	}
	return views
}

func (s *Server) view(task model.Task) taskView {
	now := s.now()
	view := taskView{Task: task, Overdue: task.Overdue(now)}
	if task.Deadline != nil {
		view.DeadlineLabel = model.DeadlineLabel(*task.Deadline, now)
	}
	return view
}

func allFilters() []model.Filter {
	filters := []model.Filter{model.FilterAll}
	for _, category := range model.Categories {
		filters = append(filters, model.Filter(category))
	}
	return filters
}

// parseDeadline accepts RFC 3339 or the browser's datetime-local form, which
// is interpreted in the server's local zone.
func parseDeadline(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid deadline %q", value)
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, "[::]") {
		return "localhost" + strings.TrimPrefix(addr, "[::]")
	}
	if strings.HasPrefix(addr, "0.0.0.0") {
		return "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return addr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}

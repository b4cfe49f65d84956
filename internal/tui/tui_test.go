package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/tasks"
	"github.com/Joseda-hg/lazytodo/internal/voice"
)

func TestAddTaskThroughForm(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ui := newTestUI(store)
	if err := ui.addTask(nil, nil); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if ui.form == nil {
		t.Fatalf("expected form to open")
	}
	ui.form.fields[fieldText].Value = "  Pay rent  "
	ui.form.fields[fieldCategory].Value = nextCategory(ui.form.fields[fieldCategory].Value)
	ui.form.fields[fieldDeadline].Value = "2026-08-01 09:00"

	if err := ui.submitFormNow(nil, nil); err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if ui.form != nil {
		t.Fatalf("expected form to close, status %q", ui.status)
	}

	all := store.Tasks()
	if len(all) != 1 {
		t.Fatalf("expected 1 task, got %d", len(all))
	}
	task := all[0]
	if task.Text != "Pay rent" || task.Category != model.CategoryWork {
		t.Fatalf("unexpected task %+v", task)
	}
	want := time.Date(2026, 8, 1, 9, 0, 0, 0, time.Local)
	if task.Deadline == nil || !task.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, task.Deadline)
	}
	if len(ui.visible) != 1 {
		t.Fatalf("expected list to refresh")
	}
}

func TestSubmitFormRejectsInput(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	t.Run("blank text", func(t *testing.T) {
		ui := newTestUI(store)
		_ = ui.addTask(nil, nil)
		ui.form.fields[fieldText].Value = "   "
		if err := ui.submitFormNow(nil, nil); err != nil {
			t.Fatalf("submit form: %v", err)
		}
		if ui.form == nil || ui.status == "" {
			t.Fatalf("expected form to stay open with a status")
		}
	})

	t.Run("bad deadline", func(t *testing.T) {
		ui := newTestUI(store)
		_ = ui.addTask(nil, nil)
		ui.form.fields[fieldText].Value = "Dentist"
		ui.form.fields[fieldDeadline].Value = "next week"
		if err := ui.submitFormNow(nil, nil); err != nil {
			t.Fatalf("submit form: %v", err)
		}
		if ui.status != "invalid deadline" {
			t.Fatalf("expected invalid deadline status, got %q", ui.status)
		}
	})

	if len(store.Tasks()) != 0 {
		t.Fatalf("expected no tasks to be created")
	}
}

func TestToggleEditDeleteSelected(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	store.AddTask("first", model.CategoryPersonal, nil)
	store.AddTask("second", model.CategoryWork, nil)

	ui := newTestUI(store)
	if got := ui.selectedTask(); got == nil || got.Text != "second" {
		t.Fatalf("expected newest task selected first, got %+v", got)
	}

	if err := ui.moveDown(nil, nil); err != nil {
		t.Fatalf("move down: %v", err)
	}
	if err := ui.toggleTask(nil, nil); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !ui.visible[1].Completed {
		t.Fatalf("expected first task completed")
	}

	if err := ui.editTask(nil, nil); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(ui.form.fields) != 1 || ui.form.fields[fieldText].Value != "first" {
		t.Fatalf("expected single text field prefilled, got %+v", ui.form.fields)
	}
	ui.form.fields[fieldText].Value = "first, renamed"
	if err := ui.submitFormNow(nil, nil); err != nil {
		t.Fatalf("submit edit: %v", err)
	}
	if ui.visible[1].Text != "first, renamed" {
		t.Fatalf("expected renamed task, got %q", ui.visible[1].Text)
	}

	if err := ui.deleteTask(nil, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(ui.visible) != 1 || ui.selected != 0 {
		t.Fatalf("expected one task left with selection clamped, got %d selected %d", len(ui.visible), ui.selected)
	}
}

func TestFilterKeysNarrowList(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	store.AddTask("milk", model.CategoryShopping, nil)
	store.AddTask("report", model.CategoryWork, nil)

	ui := newTestUI(store)
	if err := ui.setFilter(nil, filterKeys[3]); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if store.Filter() != model.Filter(model.CategoryShopping) {
		t.Fatalf("expected store filter shopping, got %q", store.Filter())
	}
	if len(ui.visible) != 1 || ui.visible[0].Text != "milk" {
		t.Fatalf("unexpected visible tasks %+v", ui.visible)
	}

	_ = ui.addTask(nil, nil)
	if ui.form.fields[fieldCategory].Value != string(model.CategoryShopping) {
		t.Fatalf("expected add form to default to the active category")
	}
	_ = ui.cancelForm(nil, nil)

	_ = ui.setFilter(nil, filterKeys[0])
	if len(ui.visible) != 2 {
		t.Fatalf("expected all tasks, got %d", len(ui.visible))
	}
}

func TestHandlersIgnoredWhileFormOpen(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	store.AddTask("keep me", model.CategoryOther, nil)
	ui := newTestUI(store)
	_ = ui.addTask(nil, nil)

	_ = ui.deleteTask(nil, nil)
	_ = ui.toggleTask(nil, nil)
	if got, _ := store.Task(ui.visible[0].ID); got.Completed || len(store.Tasks()) != 1 {
		t.Fatalf("expected list actions to be ignored while the form is open")
	}
}

func TestVoicePromptAddsTask(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	prompt := &voice.Typed{}
	session := voice.NewSession(prompt, voice.NewInterpreter(store, nil), "en-GB")
	ui := NewUI(Deps{Store: store, Voice: session, Prompt: prompt})

	if err := ui.startVoice(nil, nil); err != nil {
		t.Fatalf("start voice: %v", err)
	}
	if !ui.voiceActive || !session.Recording() || ui.voiceLocale != "en-GB" {
		t.Fatalf("expected prompt open and session recording")
	}

	if err := ui.submitTranscript(nil, "Add call the plumber\n"); err != nil {
		t.Fatalf("submit transcript: %v", err)
	}
	if ui.voiceActive || session.Recording() {
		t.Fatalf("expected prompt closed and session idle")
	}
	if ui.status != voice.ConfirmationMessage {
		t.Fatalf("expected confirmation status, got %q", ui.status)
	}
	all := store.Tasks()
	if len(all) != 1 || all[0].Text != "call the plumber" || all[0].Category != model.DefaultCategory {
		t.Fatalf("unexpected tasks %+v", all)
	}
}

func TestVoicePromptCancel(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	prompt := &voice.Typed{}
	session := voice.NewSession(prompt, voice.NewInterpreter(store, nil), "")
	ui := NewUI(Deps{Store: store, Voice: session, Prompt: prompt})

	_ = ui.startVoice(nil, nil)
	if err := ui.stopVoice(nil, nil); err != nil {
		t.Fatalf("stop voice: %v", err)
	}
	if ui.voiceActive || session.Recording() || len(store.Tasks()) != 0 {
		t.Fatalf("expected cancelled prompt to add nothing")
	}
}

func TestVoiceUnavailable(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ui := newTestUI(store)
	if err := ui.startVoice(nil, nil); err != nil {
		t.Fatalf("start voice: %v", err)
	}
	if ui.voiceActive || ui.status == "" {
		t.Fatalf("expected unavailable status")
	}
}

func TestFormatTaskSummary(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	tomorrow := now.Add(20 * time.Hour)
	past := now.Add(-2 * 24 * time.Hour)

	cases := []struct {
		name string
		task model.Task
		want string
	}{
		{name: "plain", task: model.Task{Text: "Read", Category: model.CategoryPersonal}, want: "[ ] Read | personal"},
		{name: "done", task: model.Task{Text: "Read", Category: model.CategoryOther, Completed: true}, want: "[x] Read | other"},
		{name: "deadline", task: model.Task{Text: "Ship", Category: model.CategoryWork, Deadline: &tomorrow}, want: "[ ] Ship | work | Tomorrow"},
		{name: "overdue", task: model.Task{Text: "Ship", Category: model.CategoryWork, Deadline: &past}, want: "[ ] Ship | work | !Overdue"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatTaskSummary(tc.task, now); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCycleCategory(t *testing.T) {
	if got := nextCategory("other"); got != "personal" {
		t.Fatalf("expected wrap to personal, got %q", got)
	}
	if got := prevCategory("personal"); got != "other" {
		t.Fatalf("expected wrap to other, got %q", got)
	}
	if got := nextCategory("bogus"); got != "work" {
		t.Fatalf("expected unknown value to cycle from personal, got %q", got)
	}
}

func TestHelpMentionsFilterKeys(t *testing.T) {
	if !strings.Contains(helpText(), "0 all | 1 personal") {
		t.Fatalf("expected filter keys in help")
	}
}

func newTestUI(store *tasks.Store) *UI {
	return NewUI(Deps{Store: store})
}

func newTestStore(t *testing.T) (*tasks.Store, func()) {
	t.Helper()
	dbConn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	repo := db.NewTaskRepository(db.NewKV(dbConn), db.DefaultTasksKey)
	return tasks.New(tasks.Config{Persister: repo}), func() {
		_ = dbConn.Close()
	}
}

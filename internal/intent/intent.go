// Package intent defines the discrete user intents a presentation layer can
// emit and routes them to the task store, voice session and notifier.
package intent

import (
	"fmt"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/notify"
)

type Intent interface {
	intent()
}

type Add struct {
	Text     string
	Category model.Category
	Deadline *time.Time
}

type Delete struct{ ID string }

type Toggle struct{ ID string }

type Edit struct {
	ID   string
	Text string
}

type SetFilter struct{ Filter model.Filter }

type StartVoice struct{}

type StopVoice struct{}

type RequestNotifications struct{}

func (Add) intent()                  {}
func (Delete) intent()               {}
func (Toggle) intent()               {}
func (Edit) intent()                 {}
func (SetFilter) intent()            {}
func (StartVoice) intent()           {}
func (StopVoice) intent()            {}
func (RequestNotifications) intent() {}

type TaskStore interface {
	AddTask(text string, category model.Category, deadline *time.Time) (model.Task, bool)
	DeleteTask(id string)
	ToggleTask(id string)
	EditTask(id, newText string)
	FilterTasks(filter model.Filter)
}

type VoiceSession interface {
	Start()
	Stop()
}

// Result carries what a dispatched intent produced, for callers that echo it
// back (the HTTP API answers an Add with the created task).
type Result struct {
	Task    model.Task
	Created bool
}

type Dispatcher struct {
	Store    TaskStore
	Voice    VoiceSession
	Notifier notify.Provider
}

func (d *Dispatcher) Dispatch(in Intent) (Result, error) {
	switch in := in.(type) {
	case Add:
		task, ok := d.Store.AddTask(in.Text, in.Category, in.Deadline)
		return Result{Task: task, Created: ok}, nil
	case Delete:
		d.Store.DeleteTask(in.ID)
	case Toggle:
		d.Store.ToggleTask(in.ID)
	case Edit:
		d.Store.EditTask(in.ID, in.Text)
	case SetFilter:
		d.Store.FilterTasks(in.Filter)
	case StartVoice:
		if d.Voice != nil {
			d.Voice.Start()
		}
	case StopVoice:
		if d.Voice != nil {
			d.Voice.Stop()
		}
	case RequestNotifications:
		if d.Notifier != nil {
			d.Notifier.RequestPermission()
		}
	default:
		return Result{}, fmt.Errorf("unknown intent %T", in)
	}
	return Result{}, nil
}

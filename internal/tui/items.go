package tui

import (
	"fmt"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/notify"
	"github.com/Joseda-hg/lazytodo/internal/voice"
)

var filterKeys = []model.Filter{
	model.FilterAll,
	model.Filter(model.CategoryPersonal),
	model.Filter(model.CategoryWork),
	model.Filter(model.CategoryShopping),
	model.Filter(model.CategoryOther),
}

func formatTaskSummary(task model.Task, now time.Time) string {
	check := " "
	if task.Completed {
		check = "x"
	}
	summary := fmt.Sprintf("[%s] %s | %s", check, task.Text, task.Category)
	if task.Deadline != nil {
		label := model.DeadlineLabel(*task.Deadline, now)
		if task.Overdue(now) {
			label = "!" + label
		}
		summary += " | " + label
	}
	return summary
}

func countCompleted(tasks []model.Task) int {
	done := 0
	for _, task := range tasks {
		if task.Completed {
			done++
		}
	}
	return done
}

func voiceLabel(session *voice.Session) string {
	switch {
	case session == nil || !session.Available():
		return "unavailable"
	case session.Recording():
		return "listening"
	default:
		return "idle"
	}
}

func notificationLabel(provider notify.Provider) string {
	if provider == nil || !provider.Available() {
		return "unavailable"
	}
	return string(provider.Permission())
}

package voice

import (
	"regexp"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/notify"
)

const ConfirmationMessage = "Task added via voice!"

var commandKeywords = regexp.MustCompile(`(?i)\b(add|create|new)\b`)

// ParseTranscript turns a recognized utterance into task text. Command
// keywords are stripped from the original-case transcript; an utterance with
// no keyword is used verbatim.
func ParseTranscript(transcript string) (string, bool) {
	text := transcript
	if commandKeywords.MatchString(transcript) {
		text = strings.TrimSpace(commandKeywords.ReplaceAllString(transcript, ""))
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

type TaskAdder interface {
	AddTask(text string, category model.Category, deadline *time.Time) (model.Task, bool)
}

type Interpreter struct {
	adder    TaskAdder
	notifier notify.Provider
}

func NewInterpreter(adder TaskAdder, notifier notify.Provider) *Interpreter {
	if notifier == nil {
		notifier = notify.Unavailable{}
	}
	return &Interpreter{adder: adder, notifier: notifier}
}

// Process creates a task from transcript and confirms it. It reports whether
// a task was created.
func (i *Interpreter) Process(transcript string) bool {
	text, ok := ParseTranscript(transcript)
	if !ok {
		return false
	}
	if _, added := i.adder.AddTask(text, model.DefaultCategory, nil); !added {
		return false
	}
	i.notifier.Show(ConfirmationMessage)
	return true
}

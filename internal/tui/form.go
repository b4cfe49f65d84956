package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/model"
)

const deadlineLayout = "2006-01-02 15:04"

type formField struct {
	Label string
	Value string
}

const (
	fieldText = iota
	fieldCategory
	fieldDeadline
)

type formInput struct {
	Text     string
	Category model.Category
	Deadline *time.Time
}

// buildFormFields returns the add form for a nil task and the single-field
// edit form otherwise, since only the text of an existing task can change.
func buildFormFields(task *model.Task) []formField {
	if task != nil {
		return []formField{{Label: "Text", Value: task.Text}}
	}
	return []formField{
		{Label: "Text"},
		{Label: "Category (space/←→)", Value: string(model.DefaultCategory)},
		{Label: "Deadline (YYYY-MM-DD HH:MM)"},
	}
}

func parseFormFields(fields []formField) (formInput, error) {
	input := formInput{Text: fields[fieldText].Value}
	if len(fields) == 1 {
		return input, nil
	}

	category, ok := model.ParseCategory(fields[fieldCategory].Value)
	if !ok {
		category = model.DefaultCategory
	}
	input.Category = category

	deadline, err := parseDeadline(fields[fieldDeadline].Value)
	if err != nil {
		return formInput{}, err
	}
	input.Deadline = deadline
	return input, nil
}

// parseDeadline reads the deadline in the local zone. A bare date means the
// start of that day.
func parseDeadline(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{deadlineLayout, "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid deadline")
}

func isCategoryField(label string) bool {
	return strings.HasPrefix(label, "Category")
}

func nextCategory(current string) string {
	return cycleCategory(current, 1)
}

func prevCategory(current string) string {
	return cycleCategory(current, -1)
}

func cycleCategory(current string, delta int) string {
	index := 0
	for i, category := range model.Categories {
		if string(category) == current {
			index = i
			break
		}
	}
	count := len(model.Categories)
	return string(model.Categories[(index+delta+count)%count])
}

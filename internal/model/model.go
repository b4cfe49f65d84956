package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryShopping Category = "shopping"
	CategoryOther    Category = "other"

	DefaultCategory = CategoryPersonal
)

// Categories lists the fixed set in display order.
var Categories = []Category{CategoryPersonal, CategoryWork, CategoryShopping, CategoryOther}

// ParseCategory normalizes value and reports whether it names a known category.
func ParseCategory(value string) (Category, bool) {
	candidate := Category(strings.TrimSpace(strings.ToLower(value)))
	for _, category := range Categories {
		if category == candidate {
			return category, true
		}
	}
	return "", false
}

// Filter is either FilterAll or the name of a category.
type Filter string

const FilterAll Filter = "all"

func ParseFilter(value string) (Filter, bool) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == string(FilterAll) {
		return FilterAll, true
	}
	category, ok := ParseCategory(trimmed)
	if !ok {
		return "", false
	}
	return Filter(category), true
}

func (f Filter) Matches(task Task) bool {
	return f == FilterAll || Filter(task.Category) == f
}

type Task struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Category  Category   `json:"category"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"createdAt"`
	Deadline  *time.Time `json:"deadline"`
}

func (t Task) Overdue(now time.Time) bool {
	return t.Deadline != nil && now.After(*t.Deadline) && !t.Completed
}

// DeadlineLabel renders the relative deadline shown next to a task.
func DeadlineLabel(deadline, now time.Time) string {
	days := int(math.Ceil(deadline.Sub(now).Hours() / 24))
	switch {
	case days < 0:
		return "Overdue"
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days <= 7:
		return fmt.Sprintf("In %d days", days)
	default:
		return deadline.Format("1/2/2006")
	}
}

func EmptyStateText(filter Filter) string {
	label := string(filter)
	if filter == FilterAll || filter == "" {
		label = "tasks"
	}
	return fmt.Sprintf("No %s tasks yet", label)
}

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is a to-do item owned by exactly one user.
type Task struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string     `gorm:"type:varchar(36);not null;index" json:"userId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Completed   bool       `gorm:"not null;default:false;index" json:"completed"`
	Priority    Priority   `gorm:"size:16;not null;default:medium;index" json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask creates a task for userID.
func NewTask(userID, title, description string, priority Priority, dueDate *time.Time) *Task {
	if priority == "" {
		priority = PriorityMedium
	}
	now := time.Now().UTC()
	return &Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Priority:    priority,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TaskSortField is a column a listing can be ordered by.
type TaskSortField string

const (
	SortByCreatedAt TaskSortField = "createdAt"
	SortByDueDate   TaskSortField = "dueDate"
	SortByPriority  TaskSortField = "priority"
	SortByTitle     TaskSortField = "title"
)

// Column returns the database column of the sort field.
func (f TaskSortField) Column() (string, bool) {
	switch f {
	case SortByCreatedAt:
		return "created_at", true
	case SortByDueDate:
		return "due_date", true
	case SortByPriority:
		return "priority", true
	case SortByTitle:
		return "title", true
	}
	return "", false
}

// TaskFilter describes one listing query. Order is 1 for ascending and -1 for descending.
type TaskFilter struct {
	Completed *bool
	Priority  Priority
	SortBy    TaskSortField
	Order     int
	Page      int
	Limit     int
}

// Variant renders the filter as a stable cache key suffix. Two filters that select the
// same rows in the same order render identically.
func (f TaskFilter) Variant() string {
	completed := "any"
	if f.Completed != nil {
		completed = fmt.Sprintf("%t", *f.Completed)
	}
	priority := string(f.Priority)
	if priority == "" {
		priority = "any"
	}
	return fmt.Sprintf("sort_%s_%d_completed_%s_priority_%s_page_%d_limit_%d",
		f.SortBy, f.Order, completed, priority, f.Page, f.Limit)
}

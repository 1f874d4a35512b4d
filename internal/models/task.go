package models

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
)

// TaskStatuses lists every valid status.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusBlocked}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// TaskPriority ranks tasks.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// TaskPriorities lists every valid priority.
var TaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	for _, v := range TaskPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Task is the core work item. TeamID is fixed at creation; subtasks share
// their parent's team.
type Task struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	Title        string       `gorm:"size:200;not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	Status       TaskStatus   `gorm:"size:16;default:todo;index" json:"status"`
	Priority     TaskPriority `gorm:"size:16;default:medium;index" json:"priority"`
	DueDate      *time.Time   `json:"due_date"`
	ParentTaskID *string      `gorm:"size:36;index" json:"parent_task_id"`
	TeamID       string       `gorm:"size:36;not null;index" json:"team_id"`
	CreatedBy    string       `gorm:"size:36;not null;index" json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	Tags []Tag `gorm:"many2many:task_tags" json:"tags"`

	// Derived on read, never stored.
	IsBlocked         bool `gorm:"-" json:"is_blocked"`
	BlockingTaskCount int  `gorm:"-" json:"blocking_task_count"`
}

// DependencyType distinguishes hard prerequisites from advisory links.
type DependencyType string

const (
	DependencyBlocking DependencyType = "blocking"
	DependencySoft     DependencyType = "soft"
)

// Valid reports whether t is a known dependency type.
func (t DependencyType) Valid() bool {
	return t == DependencyBlocking || t == DependencySoft
}

// TaskDependency is a directed edge: TaskID depends on DependsOnTaskID.
type TaskDependency struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	TaskID          string         `gorm:"size:36;not null;uniqueIndex:idx_task_dependency" json:"task_id"`
	DependsOnTaskID string         `gorm:"size:36;not null;uniqueIndex:idx_task_dependency;index" json:"depends_on_task_id"`
	DependencyType  DependencyType `gorm:"size:16;default:blocking" json:"dependency_type"`
	CreatedAt       time.Time      `json:"created_at"`

	DependsOnTask *Task `gorm:"foreignKey:DependsOnTaskID" json:"depends_on_task,omitempty"`
}

// TaskAssignment links a user to a task.
type TaskAssignment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID     string    `gorm:"size:36;not null;uniqueIndex:idx_task_assignment" json:"task_id"`
	UserID     string    `gorm:"size:36;not null;uniqueIndex:idx_task_assignment;index" json:"user_id"`
	AssignedAt time.Time `gorm:"autoCreateTime" json:"assigned_at"`
	Role       string    `gorm:"size:32;default:assignee" json:"role"`
}

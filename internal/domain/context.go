package domain

import (
	"fmt"
	"strings"
)

// TaskType selects the retrieval profile used to assemble context.
type TaskType string

const (
	TaskChat       TaskType = "chat"
	TaskInsight    TaskType = "insight"
	TaskOnboarding TaskType = "onboarding"
	TaskTour       TaskType = "tour"
)

// TaskTypes lists every supported task in a stable order.
var TaskTypes = []TaskType{TaskChat, TaskInsight, TaskOnboarding, TaskTour}

// ParseTaskType normalizes s into a known TaskType.
func ParseTaskType(s string) (TaskType, bool) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TaskTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Section sources.
const (
	SourceCritical = "critical"
	SourceSimilar  = "similar"
)

// ContextSection is one chunk selected into a context bundle.
type ContextSection struct {
	FilePath string  `json:"file_path"`
	Ordinal  int     `json:"ordinal"`
	Content  string  `json:"content"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
}

// Heading renders the section header used in the assembled text.
func (s ContextSection) Heading() string {
	return fmt.Sprintf("### %s (chunk %d)", s.FilePath, s.Ordinal)
}

// ContextBundle is the assembled context for one task.
// Length is measured in bytes of Text and never exceeds MaxChars when MaxChars > 0.
type ContextBundle struct {
	ProjectID string           `json:"project_id"`
	Task      TaskType         `json:"task"`
	FileTree  string           `json:"file_tree"`
	Paths     []string         `json:"paths"`
	Sections  []ContextSection `json:"sections"`
	Text      string           `json:"text"`
	Length    int              `json:"length"`
	MaxChars  int              `json:"max_chars"`
	Truncated bool             `json:"truncated"`
	Dropped   int              `json:"dropped"`
}

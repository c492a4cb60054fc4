package view

import (
	"math"
	"slices"

	"github.com/tgienger/taskboard/internal/models"
)

// RecentLimit is how many tasks the dashboard lists as recent activity
const RecentLimit = 5

// Stats are task counts for a dashboard card or a team member
type Stats struct {
	Total        int
	Completed    int
	InProgress   int
	HighPriority int
}

// Summarize counts tasks by status and priority
func Summarize(tasks []models.Task) Stats {
	var s Stats
	for _, t := range tasks {
		s.Total++
		switch t.Status {
		case models.StatusDone:
			s.Completed++
		case models.StatusInProgress:
			s.InProgress++
		}
		if t.Priority == models.PriorityHigh {
			s.HighPriority++
		}
	}
	return s
}

// MemberStats summarizes the tasks assigned to userID
func MemberStats(userID string, tasks []models.Task) Stats {
	var assigned []models.Task
	for _, t := range tasks {
		if t.AssignedTo == userID {
			assigned = append(assigned, t)
		}
	}
	return Summarize(assigned)
}

// RecentTasks returns up to n tasks, most recently updated first. Ties
// keep read order.
func RecentTasks(tasks []models.Task, n int) []models.Task {
	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b models.Task) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Progress is a project's completion
type Progress struct {
	Total     int
	Completed int
	Percent   int // rounded; 0 for a project without tasks
}

// Remaining returns the number of tasks not done
func (p Progress) Remaining() int {
	return p.Total - p.Completed
}

// ProjectProgress computes completion over the project's member tasks
func ProjectProgress(project models.Project, tasks []models.Task) Progress {
	members := make(map[string]struct{}, len(project.TaskIDs))
	for _, id := range project.TaskIDs {
		members[id] = struct{}{}
	}

	var p Progress
	for _, t := range tasks {
		if _, ok := members[t.ID]; !ok {
			continue
		}
		p.Total++
		if t.Status == models.StatusDone {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}

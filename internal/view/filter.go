// Package view derives what the UI renders from the synchronized task
// set: status tabs, free-text search and dashboard aggregates. Nothing
// here mutates the store.
package view

import (
	"fmt"
	"strings"

	"github.com/tgienger/taskboard/internal/models"
)

// TaskSource is the read side of the store the filter works from
type TaskSource interface {
	Tasks() []models.Task
}

// Filter holds the UI's status tab and search query. The zero value is
// not usable; create one with NewFilter.
type Filter struct {
	source TaskSource
	status models.StatusFilter
	query  string
}

// NewFilter returns a filter over source showing all tasks
func NewFilter(source TaskSource) *Filter {
	return &Filter{source: source, status: models.FilterAll}
}

// SelectedStatus returns the active status tab
func (f *Filter) SelectedStatus() models.StatusFilter {
	return f.status
}

// SetSelectedStatus switches the status tab
func (f *Filter) SetSelectedStatus(status models.StatusFilter) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status filter %q", status)
	}
	f.status = status
	return nil
}

// SearchQuery returns the current search text
func (f *Filter) SearchQuery() string {
	return f.query
}

// SetSearchQuery replaces the search text
func (f *Filter) SetSearchQuery(query string) {
	f.query = query
}

// TasksByStatus returns every task for FilterAll, otherwise exactly the
// tasks with that status. Read order is kept.
func (f *Filter) TasksByStatus(status models.StatusFilter) []models.Task {
	return byStatus(f.source.Tasks(), status)
}

// FilteredTasks applies the selected status, then keeps the tasks whose
// title or description contains the search query, ignoring case. An
// empty query keeps everything.
func (f *Filter) FilteredTasks() []models.Task {
	tasks := f.TasksByStatus(f.status)
	if f.query == "" {
		return tasks
	}

	query := strings.ToLower(f.query)
	result := []models.Task{}
	for _, t := range tasks {
		if Matches(t, query) {
			result = append(result, t)
		}
	}
	return result
}

// StatusCounts returns how many tasks each status tab would show
func (f *Filter) StatusCounts() map[models.StatusFilter]int {
	tasks := f.source.Tasks()
	counts := make(map[models.StatusFilter]int, len(models.StatusFilters))
	counts[models.FilterAll] = len(tasks)
	for _, s := range models.Statuses {
		counts[models.FilterFor(s)] = 0
	}
	for _, t := range tasks {
		counts[models.FilterFor(t.Status)]++
	}
	return counts
}

// Matches reports whether t's title or description contains the
// lower-cased query
func Matches(t models.Task, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(t.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(t.Description), lowerQuery)
}

func byStatus(tasks []models.Task, status models.StatusFilter) []models.Task {
	if status == models.FilterAll {
		return tasks
	}
	result := []models.Task{}
	for _, t := range tasks {
		if models.FilterFor(t.Status) == status {
			result = append(result, t)
		}
	}
	return result
}

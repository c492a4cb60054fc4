package syncstore

import (
	"fmt"
	"time"

	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/remote"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// optional turns an empty id into a null column
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapUser(row remote.ProfileRow) models.User {
	return models.User{
		ID:     row.ID,
		Name:   row.Name,
		Avatar: deref(row.AvatarURL),
	}
}

// mapProject builds a project with an empty membership placeholder
func mapProject(row remote.ProjectRow) models.Project {
	return models.Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: deref(row.Description),
		TaskIDs:     []string{},
	}
}

// mapTask converts a row, rejecting enum values outside the fixed sets.
// UpdatedAt is clamped so it never precedes CreatedAt.
func mapTask(row remote.TaskRow) (models.Task, error) {
	taskType, err := models.ParseTaskType(row.Type)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %s: %w", row.ID, err)
	}
	priority, err := models.ParsePriority(row.Priority)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %s: %w", row.ID, err)
	}
	status, err := models.ParseStatus(row.Status)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %s: %w", row.ID, err)
	}

	createdAt := derefTime(row.CreatedAt)
	updatedAt := derefTime(row.UpdatedAt)
	if updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}

	return models.Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: deref(row.Description),
		Type:        taskType,
		Priority:    priority,
		Status:      status,
		ProjectID:   deref(row.ProjectID),
		AssignedTo:  deref(row.AssignedTo),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// mapTasks converts a full read. Any bad row fails the whole read.
func mapTasks(rows []remote.TaskRow) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %s", row.ID)
		}
		seen[row.ID] = struct{}{}

		task, err := mapTask(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// groupTasksByProject collects task ids per project id in task order.
// Tasks without a project are skipped.
func groupTasksByProject(tasks []models.Task) map[string][]string {
	groups := make(map[string][]string)
	for _, t := range tasks {
		if t.ProjectID == "" {
			continue
		}
		groups[t.ProjectID] = append(groups[t.ProjectID], t.ID)
	}
	return groups
}

// reconcile returns a copy of projects whose TaskIDs are exactly the ids
// of the tasks referencing each project.
func reconcile(projects []models.Project, tasks []models.Task) []models.Project {
	groups := groupTasksByProject(tasks)
	out := make([]models.Project, len(projects))
	for i, p := range projects {
		p.TaskIDs = groups[p.ID]
		if p.TaskIDs == nil {
			p.TaskIDs = []string{}
		}
		out[i] = p
	}
	return out
}

func taskUpdate(patch models.TaskPatch, now time.Time) remote.TaskUpdate {
	update := remote.TaskUpdate{
		Title:       patch.Title,
		Description: patch.Description,
		ProjectID:   patch.ProjectID,
		AssignedTo:  patch.AssignedTo,
		UpdatedAt:   now,
	}
	if patch.Type != nil {
		v := string(*patch.Type)
		update.Type = &v
	}
	if patch.Priority != nil {
		v := string(*patch.Priority)
		update.Priority = &v
	}
	if patch.Status != nil {
		v := string(*patch.Status)
		update.Status = &v
	}
	return update
}

package syncstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tgienger/taskboard/internal/remote"
)

// fakeRemote is an in-memory backend. Writes change its rows and notify
// its subscribers the way the real backend does.
type fakeRemote struct {
	mu       sync.Mutex
	profiles []remote.ProfileRow
	projects []remote.ProjectRow
	tasks    []remote.TaskRow

	listErr      map[remote.Table]error
	writeErr     error
	subscribeErr error

	// gate, when set, blocks ListTasks until it is closed.
	// listStarted receives a value each time a gated ListTasks starts.
	gate        chan struct{}
	listStarted chan struct{}

	listCalls      map[remote.Table]int
	subscribeCalls map[remote.Table]int
	subs           map[remote.Table][]*remote.ChanSubscription

	inserts []remote.TaskInsert
	updates []remote.TaskUpdate
	nextID  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		listErr:        make(map[remote.Table]error),
		listCalls:      make(map[remote.Table]int),
		subscribeCalls: make(map[remote.Table]int),
		subs:           make(map[remote.Table][]*remote.ChanSubscription),
	}
}

var baseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func timep(t time.Time) *time.Time { return &t }

func taskRow(id, title, description, status, projectID string) remote.TaskRow {
	row := remote.TaskRow{
		ID:        id,
		Title:     title,
		Type:      "OTHER",
		Priority:  "MEDIUM",
		Status:    status,
		CreatedBy: "u1",
		CreatedAt: timep(baseTime),
		UpdatedAt: timep(baseTime),
	}
	if description != "" {
		row.Description = strp(description)
	}
	if projectID != "" {
		row.ProjectID = strp(projectID)
	}
	return row
}

func projectRow(id, name string) remote.ProjectRow {
	return remote.ProjectRow{ID: id, Name: name, CreatedBy: "u1", CreatedAt: timep(baseTime)}
}

func (f *fakeRemote) setTasks(rows ...remote.TaskRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = rows
}

func (f *fakeRemote) calls(table remote.Table) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[table]
}

func (f *fakeRemote) subscriptions(table remote.Table) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeCalls[table]
}

// emit notifies every open subscription on table
func (f *fakeRemote) emit(kind remote.EventKind, table remote.Table) {
	f.mu.Lock()
	subs := append([]*remote.ChanSubscription(nil), f.subs[table]...)
	f.mu.Unlock()
	for _, sub := range subs {
		sub.Send(remote.NewEvent(kind, table))
	}
}

// drop ends every open subscription on table from the backend side
func (f *fakeRemote) drop(table remote.Table) {
	f.mu.Lock()
	subs := append([]*remote.ChanSubscription(nil), f.subs[table]...)
	f.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (f *fakeRemote) openSubs(table remote.Table) []*remote.ChanSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*remote.ChanSubscription(nil), f.subs[table]...)
}

func (f *fakeRemote) ListProfiles(ctx context.Context) ([]remote.ProfileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[remote.TableProfiles]++
	if err := f.listErr[remote.TableProfiles]; err != nil {
		return nil, err
	}
	return append([]remote.ProfileRow(nil), f.profiles...), nil
}

func (f *fakeRemote) GetProfile(ctx context.Context, id string) (remote.ProfileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[remote.TableProfiles]; err != nil {
		return remote.ProfileRow{}, err
	}
	for _, p := range f.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return remote.ProfileRow{}, remote.Errorf(remote.CodeNotFound, "profile %s", id)
}

func (f *fakeRemote) ListProjects(ctx context.Context) ([]remote.ProjectRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[remote.TableProjects]++
	if err := f.listErr[remote.TableProjects]; err != nil {
		return nil, err
	}
	return append([]remote.ProjectRow(nil), f.projects...), nil
}

func (f *fakeRemote) ListTasks(ctx context.Context) ([]remote.TaskRow, error) {
	f.mu.Lock()
	f.listCalls[remote.TableTasks]++
	gate, started := f.gate, f.listStarted
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[remote.TableTasks]; err != nil {
		return nil, err
	}
	return append([]remote.TaskRow(nil), f.tasks...), nil
}

func (f *fakeRemote) InsertTask(ctx context.Context, row remote.TaskInsert) (string, error) {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return "", f.writeErr
	}
	f.nextID++
	id := fmt.Sprintf("new-%d", f.nextID)
	f.inserts = append(f.inserts, row)
	f.tasks = append(f.tasks, remote.TaskRow{
		ID:          id,
		Title:       row.Title,
		Description: strp(row.Description),
		Type:        row.Type,
		Priority:    row.Priority,
		Status:      row.Status,
		ProjectID:   row.ProjectID,
		AssignedTo:  row.AssignedTo,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   timep(baseTime),
		UpdatedAt:   timep(baseTime),
	})
	f.mu.Unlock()

	f.emit(remote.EventInsert, remote.TableTasks)
	return id, nil
}

func (f *fakeRemote) UpdateTask(ctx context.Context, id string, update remote.TaskUpdate) error {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return f.writeErr
	}
	found := false
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		found = true
		if update.Title != nil {
			f.tasks[i].Title = *update.Title
		}
		if update.Status != nil {
			f.tasks[i].Status = *update.Status
		}
		if update.ProjectID != nil {
			f.tasks[i].ProjectID = update.ProjectID
			if *update.ProjectID == "" {
				f.tasks[i].ProjectID = nil
			}
		}
		f.tasks[i].UpdatedAt = timep(update.UpdatedAt)
	}
	f.updates = append(f.updates, update)
	f.mu.Unlock()

	if !found {
		return remote.Errorf(remote.CodeNotFound, "task %s", id)
	}
	f.emit(remote.EventUpdate, remote.TableTasks)
	return nil
}

func (f *fakeRemote) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return f.writeErr
	}
	kept := f.tasks[:0]
	found := false
	for _, t := range f.tasks {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	f.tasks = kept
	f.mu.Unlock()

	if !found {
		return remote.Errorf(remote.CodeNotFound, "task %s", id)
	}
	f.emit(remote.EventDelete, remote.TableTasks)
	return nil
}

func (f *fakeRemote) InsertProject(ctx context.Context, row remote.ProjectInsert) (string, error) {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return "", f.writeErr
	}
	f.nextID++
	id := fmt.Sprintf("proj-%d", f.nextID)
	f.projects = append(f.projects, remote.ProjectRow{
		ID:          id,
		Name:        row.Name,
		Description: strp(row.Description),
		CreatedBy:   row.CreatedBy,
	})
	f.mu.Unlock()

	f.emit(remote.EventInsert, remote.TableProjects)
	return id, nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, table remote.Table) (remote.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls[table]++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}

	var sub *remote.ChanSubscription
	sub = remote.NewChanSubscription(16, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subs[table]
		for i, s := range subs {
			if s == sub {
				f.subs[table] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	})
	f.subs[table] = append(f.subs[table], sub)
	return sub, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// changeRecorder collects OnChange notifications
type changeRecorder struct {
	ch chan Collection
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{ch: make(chan Collection, 256)}
}

func (r *changeRecorder) record(c Collection) {
	select {
	case r.ch <- c:
	default:
	}
}

// wait blocks until a notification for c arrives
func (r *changeRecorder) wait(t *testing.T, c Collection) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.ch:
			if got == c {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s change", c)
		}
	}
}

// reset discards pending notifications
func (r *changeRecorder) reset() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

package syncstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/remote"
)

var alice = &auth.Identity{ID: "u1", Email: "alice@example.com"}

func seededRemote() *fakeRemote {
	f := newFakeRemote()
	f.profiles = []remote.ProfileRow{
		{ID: "u1", Name: "Alice", AvatarURL: strp("https://example.com/alice.png")},
		{ID: "u2", Name: "Bob"},
	}
	f.projects = []remote.ProjectRow{projectRow("p1", "Infra"), projectRow("p2", "App")}
	f.tasks = []remote.TaskRow{
		taskRow("t1", "Server Setup", "deploy", "TODO", "p1"),
		taskRow("t2", "Bug Fixing", "fix bug", "DONE", "p2"),
		taskRow("t3", "Rotate keys", "", "IN_PROGRESS", "p1"),
		taskRow("t4", "Loose end", "", "TODO", ""),
	}
	return f
}

func newTestStore(t *testing.T, f *fakeRemote, identity *auth.Identity, opts Options) *Store {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	s := New(f, identity, opts)
	t.Cleanup(func() { s.Close() })
	return s
}

func noFeeds() *SubscribeConfig { return &SubscribeConfig{} }

func taskIDs(tasks []models.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// assertMembership checks that every project lists exactly the tasks
// referencing it, in task order.
func assertMembership(t *testing.T, projects []models.Project, tasks []models.Task) {
	t.Helper()
	for _, p := range projects {
		want := []string{}
		for _, task := range tasks {
			if task.ProjectID == p.ID {
				want = append(want, task.ID)
			}
		}
		if !reflect.DeepEqual(p.TaskIDs, want) {
			t.Errorf("project %s TaskIDs = %v, want %v", p.ID, p.TaskIDs, want)
		}
	}
}

func TestStart_LoadsEverything(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	users := s.Users()
	if len(users) != 2 || users[0].Avatar != "https://example.com/alice.png" || users[1].Avatar != "" {
		t.Errorf("Users() = %+v", users)
	}
	me, ok := s.CurrentUser()
	if !ok || me.Name != "Alice" {
		t.Errorf("CurrentUser() = %+v, %v", me, ok)
	}

	tasks := s.Tasks()
	if got := taskIDs(tasks); !reflect.DeepEqual(got, []string{"t1", "t2", "t3", "t4"}) {
		t.Errorf("task ids = %v", got)
	}
	if tasks[0].Description != "deploy" || tasks[2].Description != "" {
		t.Errorf("descriptions not mapped: %+v", tasks)
	}
	if tasks[3].ProjectID != "" {
		t.Errorf("task without project has ProjectID %q", tasks[3].ProjectID)
	}

	projects := s.Projects()
	if len(projects) != 2 {
		t.Fatalf("got %d projects", len(projects))
	}
	assertMembership(t, projects, tasks)
	if !reflect.DeepEqual(projects[0].TaskIDs, []string{"t1", "t3"}) {
		t.Errorf("p1 TaskIDs = %v", projects[0].TaskIDs)
	}

	if n := f.subscriptions(remote.TableTasks); n != 1 {
		t.Errorf("tasks feed opened %d times, want 1", n)
	}
	if n := f.subscriptions(remote.TableProjects); n != 0 {
		t.Errorf("projects feed opened %d times by default, want 0", n)
	}
}

func TestStart_WithoutIdentity(t *testing.T) {
	s := newTestStore(t, seededRemote(), nil, Options{Subscribe: noFeeds()})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, ok := s.CurrentUser(); ok {
		t.Error("store without identity resolved a current user")
	}
	if len(s.Tasks()) != 4 {
		t.Error("reads should work without identity")
	}
}

func TestReconcile_Membership(t *testing.T) {
	projects := []models.Project{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}

	tests := []struct {
		name  string
		tasks []models.Task
	}{
		{"empty", nil},
		{"all in one project", []models.Task{{ID: "a", ProjectID: "p1"}, {ID: "b", ProjectID: "p1"}}},
		{"mixed", []models.Task{
			{ID: "a", ProjectID: "p2"},
			{ID: "b"},
			{ID: "c", ProjectID: "p1"},
			{ID: "d", ProjectID: "p2"},
		}},
		{"unknown project", []models.Task{{ID: "a", ProjectID: "gone"}, {ID: "b", ProjectID: "p3"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconcile(projects, tt.tasks)
			if len(got) != len(projects) {
				t.Fatalf("reconcile returned %d projects", len(got))
			}
			assertMembership(t, got, tt.tasks)
		})
	}

	// Input is not modified
	for _, p := range projects {
		if p.TaskIDs != nil {
			t.Errorf("reconcile mutated input project %s", p.ID)
		}
	}
}

func TestLoadProjects_MembershipFollowsTasks(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})
	ctx := context.Background()

	if err := s.LoadProjects(ctx); err != nil {
		t.Fatalf("LoadProjects failed: %v", err)
	}
	for _, p := range s.Projects() {
		if p.TaskIDs == nil || len(p.TaskIDs) != 0 {
			t.Errorf("project %s before task load: TaskIDs = %v, want empty placeholder", p.ID, p.TaskIDs)
		}
	}

	if err := s.LoadTasksAndReconcile(ctx); err != nil {
		t.Fatalf("LoadTasksAndReconcile failed: %v", err)
	}
	assertMembership(t, s.Projects(), s.Tasks())

	// A project reload after tasks are known keeps membership consistent
	f.mu.Lock()
	f.projects = append(f.projects, projectRow("p3", "New"))
	f.tasks = append(f.tasks, taskRow("t5", "Later", "", "TODO", "p3"))
	f.mu.Unlock()

	if err := s.LoadProjects(ctx); err != nil {
		t.Fatalf("LoadProjects failed: %v", err)
	}
	projects := s.Projects()
	if len(projects) != 3 {
		t.Fatalf("got %d projects, want 3", len(projects))
	}
	assertMembership(t, projects, s.Tasks())

	if err := s.LoadTasksAndReconcile(ctx); err != nil {
		t.Fatalf("LoadTasksAndReconcile failed: %v", err)
	}
	assertMembership(t, s.Projects(), s.Tasks())
	if got := s.Projects()[2].TaskIDs; !reflect.DeepEqual(got, []string{"t5"}) {
		t.Errorf("p3 TaskIDs = %v, want [t5]", got)
	}
}

func TestLoad_ReadFailureKeepsState(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	tasksBefore, projectsBefore, usersBefore := s.Tasks(), s.Projects(), s.Users()

	boom := errors.New("connection reset")
	f.mu.Lock()
	f.listErr[remote.TableTasks] = boom
	f.listErr[remote.TableProjects] = boom
	f.listErr[remote.TableProfiles] = boom
	f.tasks = nil
	f.mu.Unlock()

	loads := map[remote.Table]func(context.Context) error{
		remote.TableTasks:    s.LoadTasksAndReconcile,
		remote.TableProjects: s.LoadProjects,
		remote.TableProfiles: s.LoadUsers,
	}
	for table, load := range loads {
		err := load(ctx)
		var readErr *ReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("%s: error = %v, want *ReadError", table, err)
		}
		if readErr.Table != table || !errors.Is(err, boom) {
			t.Errorf("%s: ReadError = %+v", table, readErr)
		}
	}

	if !reflect.DeepEqual(s.Tasks(), tasksBefore) {
		t.Error("tasks changed after failed read")
	}
	if !reflect.DeepEqual(s.Projects(), projectsBefore) {
		t.Error("projects changed after failed read")
	}
	if !reflect.DeepEqual(s.Users(), usersBefore) {
		t.Error("users changed after failed read")
	}
}

func TestLoadTasks_RejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*remote.TaskRow)
	}{
		{"status", func(r *remote.TaskRow) { r.Status = "BLOCKED" }},
		{"priority", func(r *remote.TaskRow) { r.Priority = "URGENT" }},
		{"type", func(r *remote.TaskRow) { r.Type = "DOCS" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := seededRemote()
			s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})
			ctx := context.Background()
			if err := s.LoadTasksAndReconcile(ctx); err != nil {
				t.Fatalf("initial load failed: %v", err)
			}

			bad := taskRow("t9", "Bad", "", "TODO", "")
			tt.mutate(&bad)
			f.mu.Lock()
			f.tasks = append(f.tasks, bad)
			f.mu.Unlock()

			var readErr *ReadError
			if err := s.LoadTasksAndReconcile(ctx); !errors.As(err, &readErr) {
				t.Fatalf("error = %v, want *ReadError", err)
			}
			if len(s.Tasks()) != 4 {
				t.Errorf("bad read applied partially: %v", taskIDs(s.Tasks()))
			}
		})
	}
}

func TestLoadTasks_RejectsDuplicateIDs(t *testing.T) {
	f := seededRemote()
	f.tasks = append(f.tasks, taskRow("t1", "Again", "", "TODO", ""))
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})

	var readErr *ReadError
	if err := s.LoadTasksAndReconcile(context.Background()); !errors.As(err, &readErr) {
		t.Fatalf("error = %v, want *ReadError", err)
	}
	if len(s.Tasks()) != 0 {
		t.Error("duplicate read should leave the set empty")
	}
}

func TestLoadTasks_ClampsUpdatedAt(t *testing.T) {
	f := seededRemote()
	row := taskRow("t9", "Skewed", "", "TODO", "")
	row.UpdatedAt = timep(baseTime.Add(-time.Hour))
	f.tasks = []remote.TaskRow{row}
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})

	if err := s.LoadTasksAndReconcile(context.Background()); err != nil {
		t.Fatalf("LoadTasksAndReconcile failed: %v", err)
	}
	task, ok := s.Task("t9")
	if !ok {
		t.Fatal("task t9 missing")
	}
	if task.UpdatedAt.Before(task.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", task.UpdatedAt, task.CreatedAt)
	}
}

func TestLoadTasks_Idempotent(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})
	ctx := context.Background()
	if err := s.LoadProjects(ctx); err != nil {
		t.Fatalf("LoadProjects failed: %v", err)
	}

	if err := s.LoadTasksAndReconcile(ctx); err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	tasks, projects := s.Tasks(), s.Projects()

	if err := s.LoadTasksAndReconcile(ctx); err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if !reflect.DeepEqual(s.Tasks(), tasks) {
		t.Error("second load changed tasks")
	}
	if !reflect.DeepEqual(s.Projects(), projects) {
		t.Error("second load changed projects")
	}
}

func TestWrites_NoLocalMutation(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds(), Now: func() time.Time { return baseTime.Add(time.Hour) }})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	before := s.Tasks()

	id, err := s.AddTask(ctx, models.TaskDraft{Title: "Patch kernel", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if err := s.UpdateTask(ctx, "t1", models.TaskPatch{Status: models.Ptr(models.StatusDone)}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if err := s.DeleteTask(ctx, "t2"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if !reflect.DeepEqual(s.Tasks(), before) {
		t.Fatal("writes mutated the local task set")
	}

	f.mu.Lock()
	insert := f.inserts[0]
	update := f.updates[0]
	f.mu.Unlock()
	if insert.CreatedBy != "u1" {
		t.Errorf("insert CreatedBy = %q, want u1", insert.CreatedBy)
	}
	if insert.Type != "OTHER" || insert.Priority != "MEDIUM" || insert.Status != "TODO" {
		t.Errorf("insert defaults = %s/%s/%s", insert.Type, insert.Priority, insert.Status)
	}
	if insert.ProjectID == nil || *insert.ProjectID != "p1" || insert.AssignedTo != nil {
		t.Errorf("insert references = %v/%v", insert.ProjectID, insert.AssignedTo)
	}
	if update.Status == nil || *update.Status != "DONE" || update.Title != nil {
		t.Errorf("update payload = %+v", update)
	}
	if !update.UpdatedAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("update UpdatedAt = %v", update.UpdatedAt)
	}

	// A reload makes all three writes visible
	if err := s.LoadTasksAndReconcile(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, ok := s.Task(id); !ok {
		t.Error("inserted task missing after reload")
	}
	if task, _ := s.Task("t1"); task.Status != models.StatusDone {
		t.Errorf("t1 status = %s after reload", task.Status)
	}
	if _, ok := s.Task("t2"); ok {
		t.Error("deleted task still present after reload")
	}
	assertMembership(t, s.Projects(), s.Tasks())
}

func TestAddProject_VisibleAfterExplicitReload(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	id, err := s.AddProject(ctx, models.ProjectDraft{Name: "Docs", Description: "handbook"})
	if err != nil {
		t.Fatalf("AddProject failed: %v", err)
	}
	if len(s.Projects()) != 2 {
		t.Fatal("AddProject inserted locally")
	}

	if err := s.LoadProjects(ctx); err != nil {
		t.Fatalf("LoadProjects failed: %v", err)
	}
	projects := s.Projects()
	if len(projects) != 3 || projects[2].ID != id || projects[2].Description != "handbook" {
		t.Errorf("projects after reload = %+v", projects)
	}
	assertMembership(t, projects, s.Tasks())
}

func TestWrites_NotAuthenticated(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, nil, Options{Subscribe: noFeeds()})
	ctx := context.Background()

	_, addErr := s.AddTask(ctx, models.TaskDraft{Title: "x"})
	_, projErr := s.AddProject(ctx, models.ProjectDraft{Name: "x"})
	errs := []error{
		addErr,
		s.UpdateTask(ctx, "t1", models.TaskPatch{Title: models.Ptr("y")}),
		s.DeleteTask(ctx, "t1"),
		projErr,
	}
	for i, err := range errs {
		var writeErr *WriteError
		if !errors.As(err, &writeErr) {
			t.Errorf("write %d: error = %v, want *WriteError", i, err)
			continue
		}
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("write %d: error = %v, want ErrNotAuthenticated", i, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inserts) != 0 || len(f.updates) != 0 || len(f.tasks) != 4 {
		t.Error("unauthenticated writes reached the remote")
	}
}

func TestWrites_PropagateRemoteErrors(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})
	ctx := context.Background()

	err := s.UpdateTask(ctx, "missing", models.TaskPatch{Title: models.Ptr("y")})
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("error = %v, want *WriteError", err)
	}
	if writeErr.Op != OpUpdate || writeErr.ID != "missing" || !remote.IsNotFound(err) {
		t.Errorf("WriteError = %+v", writeErr)
	}

	if err := s.DeleteTask(ctx, "missing"); !remote.IsNotFound(err) {
		t.Errorf("DeleteTask(missing) = %v, want not_found", err)
	}

	f.mu.Lock()
	f.writeErr = remote.Errorf(remote.CodeInvalid, "title required")
	f.mu.Unlock()
	if _, err := s.AddTask(ctx, models.TaskDraft{}); remote.CodeOf(err) != remote.CodeInvalid {
		t.Errorf("AddTask error = %v, want invalid", err)
	}
	if _, err := s.AddProject(ctx, models.ProjectDraft{}); !errors.As(err, &writeErr) || writeErr.Table != remote.TableProjects {
		t.Errorf("AddProject error = %v", err)
	}
}

func TestChangeEvent_TriggersReload(t *testing.T) {
	f := seededRemote()
	rec := newChangeRecorder()
	s := newTestStore(t, f, alice, Options{OnChange: rec.record})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec.reset()

	// Another session inserts a task
	f.mu.Lock()
	f.tasks = append(f.tasks, taskRow("t5", "From elsewhere", "", "TODO", "p2"))
	f.mu.Unlock()
	f.emit(remote.EventInsert, remote.TableTasks)

	rec.wait(t, CollectionTasks)
	if _, ok := s.Task("t5"); !ok {
		t.Fatal("external insert not visible after change event")
	}
	assertMembership(t, s.Projects(), s.Tasks())

	// Any event kind triggers a full reload
	f.setTasks(taskRow("t1", "Server Setup", "deploy", "DONE", "p1"))
	f.emit(remote.EventAny, remote.TableTasks)
	rec.wait(t, CollectionTasks)
	if got := taskIDs(s.Tasks()); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("tasks after reload = %v", got)
	}
}

func TestGhostEntry(t *testing.T) {
	f := seededRemote()
	rec := newChangeRecorder()
	s := newTestStore(t, f, alice, Options{OnChange: rec.record})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	before := s.Tasks()

	// Hold the next task read open
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	f.mu.Lock()
	f.gate, f.listStarted = gate, started
	f.mu.Unlock()
	rec.reset()

	// The insert fires a change event; its reload blocks on the gate
	id, err := s.AddTask(ctx, models.TaskDraft{Title: "Ghost?"})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if !reflect.DeepEqual(s.Tasks(), before) {
		t.Fatal("task set changed as soon as AddTask returned")
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("change event did not start a reload")
	}
	if !reflect.DeepEqual(s.Tasks(), before) {
		t.Fatal("task set changed while the reload was in flight")
	}

	f.mu.Lock()
	f.gate, f.listStarted = nil, nil
	f.mu.Unlock()
	close(gate)

	rec.wait(t, CollectionTasks)
	tasks := s.Tasks()
	if len(tasks) != len(before)+1 {
		t.Fatalf("got %d tasks after reload, want %d", len(tasks), len(before)+1)
	}
	if _, ok := s.Task(id); !ok {
		t.Error("new task missing after reload")
	}
}

func TestClose_StopsReloads(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	subs := f.openSubs(remote.TableTasks)
	if len(subs) != 1 {
		t.Fatalf("open task feeds = %d, want 1", len(subs))
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !subs[0].Closed() {
		t.Error("feed still subscribed after Close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	calls := f.calls(remote.TableTasks)
	subs[0].Send(remote.NewEvent(remote.EventInsert, remote.TableTasks))
	f.emit(remote.EventInsert, remote.TableTasks)
	time.Sleep(20 * time.Millisecond)
	if got := f.calls(remote.TableTasks); got != calls {
		t.Errorf("reload triggered after Close: %d -> %d calls", calls, got)
	}

	var subErr *SubscriptionError
	if err := s.SubscribeToTaskChanges(ctx); !errors.As(err, &subErr) || !errors.Is(err, ErrClosed) {
		t.Errorf("subscribe after Close = %v, want ErrClosed", err)
	}
}

func TestClose_AbandonsInFlightReload(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	before := s.Tasks()

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	f.mu.Lock()
	f.gate, f.listStarted = gate, started
	f.mu.Unlock()
	defer close(gate)

	f.emit(remote.EventUpdate, remote.TableTasks)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("change event did not start a reload")
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an in-flight reload")
	}
	if !reflect.DeepEqual(s.Tasks(), before) {
		t.Error("abandoned reload changed the task set")
	}
}

func TestSubscribe_Twice(t *testing.T) {
	f := seededRemote()
	s := newTestStore(t, f, alice, Options{Subscribe: noFeeds()})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.SubscribeToTaskChanges(ctx); err != nil {
			t.Fatalf("SubscribeToTaskChanges failed: %v", err)
		}
	}
	if n := f.subscriptions(remote.TableTasks); n != 1 {
		t.Errorf("Subscribe called %d times, want 1", n)
	}
}

func TestStart_SubscriptionFailure(t *testing.T) {
	f := seededRemote()
	f.subscribeErr = remote.Errorf(remote.CodeUnavailable, "feed offline")
	s := newTestStore(t, f, alice, Options{Subscribe: &SubscribeConfig{Tasks: true, Projects: true}})

	err := s.Start(context.Background())
	var subErr *SubscriptionError
	if !errors.As(err, &subErr) {
		t.Fatalf("Start error = %v, want *SubscriptionError", err)
	}
	if remote.CodeOf(err) != remote.CodeUnavailable {
		t.Errorf("error code = %q", remote.CodeOf(err))
	}
	if len(s.Tasks()) != 4 || len(s.Projects()) != 2 {
		t.Error("store should still load after a feed failure")
	}
}

func TestFeed_ReconnectsAndReloads(t *testing.T) {
	f := seededRemote()
	rec := newChangeRecorder()
	s := newTestStore(t, f, alice, Options{
		OnChange: rec.record,
		Backoff:  BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond},
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec.reset()

	// A write lands without its event reaching the store, then the feed drops
	f.mu.Lock()
	f.tasks = append(f.tasks, taskRow("t5", "Missed", "", "TODO", ""))
	f.mu.Unlock()
	f.drop(remote.TableTasks)

	eventually(t, "reconnect", func() bool { return f.subscriptions(remote.TableTasks) >= 2 })
	rec.wait(t, CollectionTasks)
	if _, ok := s.Task("t5"); !ok {
		t.Error("write made while disconnected not picked up after reconnect")
	}

	// The new feed works
	f.setTasks()
	f.emit(remote.EventDelete, remote.TableTasks)
	eventually(t, "reload through new feed", func() bool { return len(s.Tasks()) == 0 })
}

func TestProjectsFeed(t *testing.T) {
	f := seededRemote()
	rec := newChangeRecorder()
	s := newTestStore(t, f, alice, Options{
		OnChange:  rec.record,
		Subscribe: &SubscribeConfig{Tasks: true, Projects: true},
	})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec.reset()

	id, err := s.AddProject(ctx, models.ProjectDraft{Name: "Docs"})
	if err != nil {
		t.Fatalf("AddProject failed: %v", err)
	}
	rec.wait(t, CollectionProjects)
	eventually(t, "project via feed", func() bool {
		for _, p := range s.Projects() {
			if p.ID == id {
				return true
			}
		}
		return false
	})
	assertMembership(t, s.Projects(), s.Tasks())
}

func TestAccessors_ReturnCopies(t *testing.T) {
	s := newTestStore(t, seededRemote(), alice, Options{Subscribe: noFeeds()})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Tasks()[0].Title = "changed"
	s.Projects()[0].TaskIDs[0] = "changed"
	s.Users()[0].Name = "changed"
	s.Identity().ID = "changed"

	if task, _ := s.Task("t1"); task.Title != "Server Setup" {
		t.Error("Tasks() exposed internal state")
	}
	if s.Projects()[0].TaskIDs[0] != "t1" {
		t.Error("Projects() exposed internal state")
	}
	if user, _ := s.User("u1"); user.Name != "Alice" {
		t.Error("Users() exposed internal state")
	}
	if s.Identity().ID != "u1" {
		t.Error("Identity() exposed internal state")
	}
	if _, ok := s.User("nobody"); ok {
		t.Error("User(nobody) found")
	}
}

// Package syncstore keeps an in-memory mirror of the remote users,
// projects and tasks and mediates every write to them.
//
// The store never applies a write locally. A successful write shows up
// only after the change event it causes triggers a full re-read of the
// collection, so local state always converges to the remote's current
// truth rather than to a merge of local history.
package syncstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tgienger/taskboard/internal/auth"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/remote"
)

// Collection names a piece of store state for change notifications
type Collection string

const (
	CollectionUsers       Collection = "users"
	CollectionCurrentUser Collection = "current_user"
	CollectionProjects    Collection = "projects"
	CollectionTasks       Collection = "tasks"
)

// SubscribeConfig selects which collections get a standing change feed
type SubscribeConfig struct {
	Tasks    bool
	Projects bool
}

// DefaultSubscribeConfig follows tasks only. Projects are reloaded
// explicitly after the session's own project writes.
func DefaultSubscribeConfig() SubscribeConfig {
	return SubscribeConfig{Tasks: true, Projects: false}
}

// BackoffConfig bounds the delay between feed reconnect attempts
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoffConfig returns the reconnect delays used when none are set
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Initial: time.Second, Max: 30 * time.Second}
}

// Options configures a Store. The zero value is usable.
type Options struct {
	Logger *slog.Logger

	// Subscribe is consulted by Start. Nil means DefaultSubscribeConfig.
	Subscribe *SubscribeConfig

	// OnChange is called after a collection was replaced. It runs on
	// the goroutine that performed the load and must not block.
	OnChange func(Collection)

	// Now stamps task updates. Defaults to time.Now.
	Now func() time.Time

	Backoff BackoffConfig
}

// Store is the session's application state. Create it when a session
// starts and Close it on sign-out.
type Store struct {
	client    remote.Client
	identity  *auth.Identity
	logger    *slog.Logger
	onChange  func(Collection)
	now       func() time.Time
	backoff   BackoffConfig
	subscribe SubscribeConfig

	// loadMu serializes loads so a slower, older read never lands on
	// top of a newer one.
	loadMu sync.Mutex

	mu          sync.RWMutex
	users       []models.User
	currentUser *models.User
	projects    []models.Project
	tasks       []models.Task
	tasksLoaded bool

	subMu  sync.Mutex
	feeds  map[remote.Table]bool
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a store over client acting as identity. A nil identity
// gives a read-only store whose writes fail with ErrNotAuthenticated.
func New(client remote.Client, identity *auth.Identity, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	subscribe := DefaultSubscribeConfig()
	if opts.Subscribe != nil {
		subscribe = *opts.Subscribe
	}
	backoff := opts.Backoff
	defaults := DefaultBackoffConfig()
	if backoff.Initial <= 0 {
		backoff.Initial = defaults.Initial
	}
	if backoff.Max < backoff.Initial {
		backoff.Max = max(defaults.Max, backoff.Initial)
	}

	var id *auth.Identity
	if identity != nil {
		copied := *identity
		id = &copied
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		client:    client,
		identity:  id,
		logger:    logger.With("component", "syncstore"),
		onChange:  opts.OnChange,
		now:       now,
		backoff:   backoff,
		subscribe: subscribe,
		feeds:     make(map[remote.Table]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start opens the configured change feeds and performs the initial full
// read of every collection. Feeds are opened first so no change between
// the read and the subscription is missed. Read failures are logged and
// do not fail Start; feed failures are returned as SubscriptionErrors
// and leave the store usable.
func (s *Store) Start(ctx context.Context) error {
	var errs []error
	if s.subscribe.Tasks {
		if err := s.SubscribeToTaskChanges(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.subscribe.Projects {
		if err := s.SubscribeToProjectChanges(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	_ = s.LoadUsers(ctx)
	_ = s.LoadCurrentUser(ctx)
	_ = s.LoadProjects(ctx)
	_ = s.LoadTasksAndReconcile(ctx)

	return errors.Join(errs...)
}

// Close ends every change feed and waits for the feed goroutines to
// exit. After Close returns no feed triggers another reload. Safe to
// call more than once.
func (s *Store) Close() error {
	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		return nil
	}
	s.closed = true
	s.subMu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Debug("store closed")
	return nil
}

// Identity returns the identity the store writes as, or nil
func (s *Store) Identity() *auth.Identity {
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// LoadUsers replaces the user set with a full read of the profiles
func (s *Store) LoadUsers(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	rows, err := s.client.ListProfiles(ctx)
	if err != nil {
		return s.readFailed(ctx, remote.TableProfiles, err)
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapUser(row))
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.changed(CollectionUsers)
	return nil
}

// LoadCurrentUser resolves the profile of the signed-in identity. It is
// a no-op for a store without identity.
func (s *Store) LoadCurrentUser(ctx context.Context) error {
	if s.identity == nil {
		return nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	row, err := s.client.GetProfile(ctx, s.identity.ID)
	if err != nil {
		return s.readFailed(ctx, remote.TableProfiles, err)
	}
	user := mapUser(row)

	s.mu.Lock()
	s.currentUser = &user
	s.mu.Unlock()

	s.changed(CollectionCurrentUser)
	return nil
}

// LoadProjects replaces the project set with a full read. Before the
// first task load every project's membership is an empty placeholder;
// afterwards it is recomputed from the current tasks.
func (s *Store) LoadProjects(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	rows, err := s.client.ListProjects(ctx)
	if err != nil {
		return s.readFailed(ctx, remote.TableProjects, err)
	}

	projects := make([]models.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, mapProject(row))
	}

	s.mu.Lock()
	if s.tasksLoaded {
		projects = reconcile(projects, s.tasks)
	}
	s.projects = projects
	s.mu.Unlock()

	s.changed(CollectionProjects)
	return nil
}

// LoadTasksAndReconcile replaces the task set with a full read and
// recomputes every project's membership from it, in one step.
func (s *Store) LoadTasksAndReconcile(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	rows, err := s.client.ListTasks(ctx)
	if err != nil {
		return s.readFailed(ctx, remote.TableTasks, err)
	}
	tasks, err := mapTasks(rows)
	if err != nil {
		return s.readFailed(ctx, remote.TableTasks, err)
	}

	s.mu.Lock()
	s.tasks = tasks
	s.projects = reconcile(s.projects, tasks)
	s.tasksLoaded = true
	s.mu.Unlock()

	s.changed(CollectionTasks)
	s.changed(CollectionProjects)
	return nil
}

// SubscribeToTaskChanges opens a standing feed on the tasks table. Every
// event triggers LoadTasksAndReconcile. The feed lives until Close;
// subscribing twice is a no-op.
func (s *Store) SubscribeToTaskChanges(ctx context.Context) error {
	return s.openFeed(ctx, remote.TableTasks, s.LoadTasksAndReconcile)
}

// SubscribeToProjectChanges opens a standing feed on the projects table.
// Every event triggers LoadProjects.
func (s *Store) SubscribeToProjectChanges(ctx context.Context) error {
	return s.openFeed(ctx, remote.TableProjects, s.LoadProjects)
}

// AddTask submits a new task created by the store's identity and
// returns its id. The task becomes visible only after the next task
// reload.
func (s *Store) AddTask(ctx context.Context, draft models.TaskDraft) (string, error) {
	if s.identity == nil {
		return "", &WriteError{Op: OpInsert, Table: remote.TableTasks, Err: ErrNotAuthenticated}
	}

	d := draft.WithDefaults()
	id, err := s.client.InsertTask(ctx, remote.TaskInsert{
		Title:       d.Title,
		Description: d.Description,
		Type:        string(d.Type),
		Priority:    string(d.Priority),
		Status:      string(d.Status),
		ProjectID:   optional(d.ProjectID),
		AssignedTo:  optional(d.AssignedTo),
		CreatedBy:   s.identity.ID,
	})
	if err != nil {
		return "", s.writeFailed(OpInsert, remote.TableTasks, "", err)
	}

	s.logger.Info("task submitted", "id", id)
	return id, nil
}

// UpdateTask submits patch for task id with a fresh update timestamp
func (s *Store) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) error {
	if s.identity == nil {
		return &WriteError{Op: OpUpdate, Table: remote.TableTasks, ID: id, Err: ErrNotAuthenticated}
	}

	if err := s.client.UpdateTask(ctx, id, taskUpdate(patch, s.now())); err != nil {
		return s.writeFailed(OpUpdate, remote.TableTasks, id, err)
	}

	s.logger.Info("task update submitted", "id", id)
	return nil
}

// DeleteTask submits the deletion of task id
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if s.identity == nil {
		return &WriteError{Op: OpDelete, Table: remote.TableTasks, ID: id, Err: ErrNotAuthenticated}
	}

	if err := s.client.DeleteTask(ctx, id); err != nil {
		return s.writeFailed(OpDelete, remote.TableTasks, id, err)
	}

	s.logger.Info("task delete submitted", "id", id)
	return nil
}

// AddProject submits a new project and returns its id. Without a
// projects feed the caller must LoadProjects to see it.
func (s *Store) AddProject(ctx context.Context, draft models.ProjectDraft) (string, error) {
	if s.identity == nil {
		return "", &WriteError{Op: OpInsert, Table: remote.TableProjects, Err: ErrNotAuthenticated}
	}

	id, err := s.client.InsertProject(ctx, remote.ProjectInsert{
		Name:        draft.Name,
		Description: draft.Description,
		CreatedBy:   s.identity.ID,
	})
	if err != nil {
		return "", s.writeFailed(OpInsert, remote.TableProjects, "", err)
	}

	s.logger.Info("project submitted", "id", id)
	return id, nil
}

// Tasks returns a copy of the task set in read order
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Task returns the task with the given id
func (s *Store) Task(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Projects returns a copy of the project set
func (s *Store) Projects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Project, len(s.projects))
	for i, p := range s.projects {
		p.TaskIDs = append([]string{}, p.TaskIDs...)
		out[i] = p
	}
	return out
}

// Users returns a copy of the user set
func (s *Store) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, len(s.users))
	copy(out, s.users)
	return out
}

// User returns the user with the given id
func (s *Store) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// CurrentUser returns the signed-in user's profile once resolved
func (s *Store) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return models.User{}, false
	}
	return *s.currentUser, true
}

func (s *Store) changed(c Collection) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

func (s *Store) readFailed(ctx context.Context, table remote.Table, err error) error {
	readErr := &ReadError{Table: table, Err: err}
	if ctx.Err() != nil {
		s.logger.Debug("read abandoned", "table", table, "error", err)
	} else {
		s.logger.Error("read failed, keeping last known state", "table", table, "error", err)
	}
	return readErr
}

func (s *Store) writeFailed(op string, table remote.Table, id string, err error) error {
	s.logger.Warn("write failed", "op", op, "table", table, "id", id, "error", err)
	return &WriteError{Op: op, Table: table, ID: id, Err: err}
}

package usecase

import (
	"context"
	"fmt"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/semmidev/harmony/internal/adapter/compressor"
	"github.com/semmidev/harmony/internal/adapter/crypto"
	"github.com/semmidev/harmony/internal/adapter/database"
	"github.com/semmidev/harmony/internal/adapter/lock"
	"github.com/semmidev/harmony/internal/adapter/storage"
	"github.com/semmidev/harmony/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

type testAuth struct {
	user  string
	perms map[string]bool
}

func (a testAuth) CurrentUserID() string { return a.user }

func (a testAuth) HasPermission(resource, action string) bool {
	return a.perms["*"] || a.perms[resource+":"+action]
}

var (
	admin  = testAuth{user: "alice", perms: map[string]bool{"*": true}}
	viewer = testAuth{user: "victor", perms: map[string]bool{"settings:read": true, "content:read": true}}
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fixture struct {
	backups *database.BackupStore
	jobs    *database.JobStore
	content *database.SQLiteContent
	storage *storage.LocalStorage
	packer  *Packer
	locks   *lock.Memory
	clock   *fixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("open local storage: %v", err)
	}
	enc, err := crypto.NewAESGCM("correct horse battery staple")
	if err != nil {
		t.Fatalf("init encryption: %v", err)
	}

	return &fixture{
		backups: database.NewBackupStore(db),
		jobs:    database.NewJobStore(db),
		content: database.NewSQLiteContent(db),
		storage: local,
		packer:  NewPacker(compressor.NewGzip(), enc),
		locks:   lock.NewMemory(),
		clock:   &fixedClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}
}

// seed writes n animals and n blog posts.
func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		animal := domain.Record{"id": fmt.Sprintf("a%02d", i), "name": fmt.Sprintf("Goat %d", i), "species": "goat"}
		post := domain.Record{"id": fmt.Sprintf("p%02d", i), "title": fmt.Sprintf("Post %d", i), "published": i%2 == 0}
		if err := f.content.Upsert(ctx, domain.ContentAnimals, animal); err != nil {
			t.Fatalf("seed animal: %v", err)
		}
		if err := f.content.Upsert(ctx, domain.ContentBlog, post); err != nil {
			t.Fatalf("seed post: %v", err)
		}
	}
}

func (f *fixture) backupService(content domain.ContentStore, opts BackupOptions) *Backup {
	if content == nil {
		content = f.content
	}
	b := NewBackup(f.backups, content, f.storage, f.packer, nopLogger{}, opts)
	b.now = f.clock.Now
	return b
}

func nightlyDraft() domain.BackupJob {
	return domain.BackupJob{
		Name:         "Nightly",
		Type:         domain.BackupFull,
		ContentTypes: []domain.ContentType{domain.ContentBlog, domain.ContentAnimals},
		Schedule: domain.BackupSchedule{
			Frequency: domain.FrequencyDaily,
			Time:      "02:00",
			Timezone:  "UTC",
			Enabled:   true,
		},
		RetentionDays: 30,
		MaxBackups:    5,
	}
}

// gatedContent pauses before every batch until proceed is closed or the
// stream's context ends.
type gatedContent struct {
	domain.ContentStore
	reached chan struct{}
	proceed chan struct{}
}

func newGated(inner domain.ContentStore) *gatedContent {
	return &gatedContent{ContentStore: inner, reached: make(chan struct{}, 64), proceed: make(chan struct{})}
}

func (g *gatedContent) StreamRecords(ctx context.Context, ct domain.ContentType, batchSize int, fn func([]domain.Record) error) error {
	return g.ContentStore.StreamRecords(ctx, ct, batchSize, func(batch []domain.Record) error {
		g.reached <- struct{}{}
		select {
		case <-g.proceed:
		case <-ctx.Done():
		}
		return fn(batch)
	})
}

var errUnreachable = errors.New("storage unreachable")

// flakyStorage refuses writes while down is set.
type flakyStorage struct {
	domain.ArtifactStorage
	down atomic.Bool
}

func (s *flakyStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	if s.down.Load() {
		return "", errUnreachable
	}
	return s.ArtifactStorage.Put(ctx, key, data)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fakeScheduler struct {
	mu      sync.Mutex
	entries map[string]func(context.Context) error
}

func (s *fakeScheduler) Schedule(key string, _ cron.Schedule, job func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]func(context.Context) error)
	}
	s.entries[key] = job
}

func (s *fakeScheduler) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *fakeScheduler) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

func wait(t *testing.T, b *Backup, execID string) *domain.BackupExecution {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exec, err := b.WaitExecution(ctx, execID)
	if err != nil {
		t.Fatalf("wait for execution: %v", err)
	}
	return exec
}

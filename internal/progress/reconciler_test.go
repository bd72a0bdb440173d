package progress_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-courses/internal/catalog"
	"github.com/p-n-ai/pai-courses/internal/notify"
	"github.com/p-n-ai/pai-courses/internal/progress"
)

// flakyRepository wraps a MemoryRepository and fails on demand.
type flakyRepository struct {
	*progress.MemoryRepository
	mu          sync.Mutex
	fetchErr    error
	upsertErr   error
	fetched     []progress.Record // overrides the stored records when non-nil
	upserts     int
	upsertDelay time.Duration
	onUpsert    func()
	onFetch     func()
}

func newFlakyRepository() *flakyRepository {
	return &flakyRepository{MemoryRepository: progress.NewMemoryRepository()}
}

func (f *flakyRepository) FetchAll(ctx context.Context, userID string) ([]progress.Record, error) {
	f.mu.Lock()
	err, fetched, hook := f.fetchErr, f.fetched, f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if fetched != nil {
		return fetched, nil
	}
	return f.MemoryRepository.FetchAll(ctx, userID)
}

func (f *flakyRepository) Upsert(ctx context.Context, rec progress.Record) (progress.Record, error) {
	f.mu.Lock()
	err, delay, hook := f.upsertErr, f.upsertDelay, f.onUpsert
	f.upserts++
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return progress.Record{}, err
	}
	return f.MemoryRepository.Upsert(ctx, rec)
}

func (f *flakyRepository) setUpsertErr(err error) {
	f.mu.Lock()
	f.upsertErr = err
	f.mu.Unlock()
}

func newReconciler(t *testing.T, repo progress.Repository) (*progress.Reconciler, *notify.Memory) {
	t.Helper()
	mem := notify.NewMemory()
	r := progress.NewReconciler(progress.ReconcilerConfig{
		Catalog:    catalog.MustBuiltin(),
		Repository: repo,
		Notifier:   mem,
	})
	return r, mem
}

func TestReconciler_InitialState(t *testing.T) {
	r, _ := newReconciler(t, newFlakyRepository())

	if r.State() != progress.StateUninitialized {
		t.Errorf("State() = %v, want uninitialized", r.State())
	}
	if _, err := r.Toggle(context.Background(), "dsa", "0-0"); !errors.Is(err, progress.ErrNoUser) {
		t.Errorf("Toggle() without user error = %v, want ErrNoUser", err)
	}
	if got := r.Progress("dsa"); got != 0 {
		t.Errorf("Progress(dsa) = %d, want 0", got)
	}
}

func TestReconciler_StartEmptyUser(t *testing.T) {
	r, _ := newReconciler(t, newFlakyRepository())

	if err := r.Start(context.Background(), ""); !errors.Is(err, progress.ErrNoUser) {
		t.Errorf("Start(\"\") error = %v, want ErrNoUser", err)
	}
	if r.State() != progress.StateUninitialized {
		t.Errorf("State() = %v, want uninitialized", r.State())
	}
}

func TestReconciler_StartLoadsRecords(t *testing.T) {
	repo := newFlakyRepository()
	ctx := context.Background()
	repo.MemoryRepository.Upsert(ctx, progress.Record{UserID: "u1", CourseID: "dsa", LessonID: "0-1", Completed: true})
	repo.MemoryRepository.Upsert(ctx, progress.Record{UserID: "u1", CourseID: "ml", LessonID: "2-3", Completed: false})
	repo.MemoryRepository.Upsert(ctx, progress.Record{UserID: "u2", CourseID: "dsa", LessonID: "0-0", Completed: true})

	r, _ := newReconciler(t, repo)
	if err := r.Start(ctx, "u1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if r.State() != progress.StateReady {
		t.Errorf("State() = %v, want ready", r.State())
	}
	want := map[string]bool{"dsa-0-1": true, "ml-2-3": false}
	if got := r.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
	if r.IsCompleted("dsa", "0-0") {
		t.Error("IsCompleted(dsa, 0-0) should be false: that record belongs to u2")
	}
}

func TestReconciler_ToggleCompletes(t *testing.T) {
	repo := newFlakyRepository()
	r, mem := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	done, err := r.Toggle(ctx, "dsa", "0-2")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !done {
		t.Error("Toggle() = false, want true")
	}
	if got := r.Snapshot()["dsa-0-2"]; !got {
		t.Error(`Snapshot()["dsa-0-2"] = false, want true`)
	}

	n, ok := mem.Last()
	if !ok {
		t.Fatal("no notification")
	}
	if n.Kind != notify.KindSuccess || n.Cause != notify.CauseLessonCompleted {
		t.Errorf("notification = %s/%s, want success/lesson_completed", n.Kind, n.Cause)
	}

	rec, ok := repo.Get("u1", progress.Key{CourseID: "dsa", LessonID: "0-2"})
	if !ok || !rec.Completed || rec.CompletedAt == nil {
		t.Errorf("stored record = %+v, want completed with completed_at", rec)
	}
}

func TestReconciler_ToggleWriteFailureLeavesMapUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		initial *bool
	}{
		{name: "absent"},
		{name: "completed", initial: ptr(true)},
		{name: "not completed", initial: ptr(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFlakyRepository()
			ctx := context.Background()
			if tt.initial != nil {
				repo.MemoryRepository.Upsert(ctx, progress.Record{UserID: "u1", CourseID: "dsa", LessonID: "0-2", Completed: *tt.initial})
			}
			r, mem := newReconciler(t, repo)
			_ = r.Start(ctx, "u1")
			before := r.Snapshot()

			repo.setUpsertErr(errors.New("connection reset"))
			got, err := r.Toggle(ctx, "dsa", "0-2")

			if !progress.IsWriteError(err) {
				t.Fatalf("Toggle() error = %v, want write error", err)
			}
			if want := tt.initial != nil && *tt.initial; got != want {
				t.Errorf("Toggle() = %v, want previous state %v", got, want)
			}
			if after := r.Snapshot(); !reflect.DeepEqual(before, after) {
				t.Errorf("Snapshot changed on failed write: before %v, after %v", before, after)
			}
			n, _ := mem.Last()
			if n.Kind != notify.KindFailure || n.Cause != notify.CauseWriteFailed {
				t.Errorf("notification = %s/%s, want failure/write_failed", n.Kind, n.Cause)
			}
		})
	}
}

func TestReconciler_RetryAfterWriteFailure(t *testing.T) {
	repo := newFlakyRepository()
	r, _ := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	repo.setUpsertErr(errors.New("timeout"))
	_, _ = r.Toggle(ctx, "ml", "0-0")
	repo.setUpsertErr(nil)

	done, err := r.Toggle(ctx, "ml", "0-0")
	if err != nil {
		t.Fatalf("retry Toggle() error = %v", err)
	}
	if !done {
		t.Error("retry Toggle() = false, want true")
	}
}

func TestReconciler_TogglePairRestoresState(t *testing.T) {
	repo := newFlakyRepository()
	r, mem := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	for _, l := range catalog.MustBuiltin().Lessons("fullstack") {
		before := r.IsCompleted("fullstack", l.ID())
		if _, err := r.Toggle(ctx, "fullstack", l.ID()); err != nil {
			t.Fatalf("first Toggle(%s) error = %v", l.ID(), err)
		}
		if _, err := r.Toggle(ctx, "fullstack", l.ID()); err != nil {
			t.Fatalf("second Toggle(%s) error = %v", l.ID(), err)
		}
		if got := r.IsCompleted("fullstack", l.ID()); got != before {
			t.Errorf("IsCompleted(%s) = %v after two toggles, want %v", l.ID(), got, before)
		}
		rec, _ := repo.Get("u1", progress.Key{CourseID: "fullstack", LessonID: l.ID()})
		if rec.CompletedAt != nil {
			t.Errorf("record %s CompletedAt = %v, want nil", l.ID(), rec.CompletedAt)
		}
	}

	n, _ := mem.Last()
	if n.Cause != notify.CauseLessonReset {
		t.Errorf("last cause = %s, want lesson_reset", n.Cause)
	}
}

func TestReconciler_FetchFailureFailsOpen(t *testing.T) {
	repo := newFlakyRepository()
	repo.fetchErr = errors.New("permission denied")
	r, mem := newReconciler(t, repo)
	ctx := context.Background()

	if err := r.Start(ctx, "u1"); err != nil {
		t.Fatalf("Start() error = %v, want nil (fail-open)", err)
	}
	if r.State() != progress.StateReady {
		t.Errorf("State() = %v, want ready", r.State())
	}
	if !progress.IsFetchError(r.LoadError()) {
		t.Errorf("LoadError() = %v, want fetch error", r.LoadError())
	}
	for _, c := range catalog.MustBuiltin().ListCourses() {
		if got := r.Progress(c.ID); got != 0 {
			t.Errorf("Progress(%s) = %d, want 0", c.ID, got)
		}
	}
	n, _ := mem.Last()
	if n.Kind != notify.KindWarning || n.Cause != notify.CauseFetchFailed {
		t.Errorf("notification = %s/%s, want warning/fetch_failed", n.Kind, n.Cause)
	}

	// Toggling still works and starts from "not completed".
	done, err := r.Toggle(ctx, "dsa", "0-0")
	if err != nil || !done {
		t.Errorf("Toggle() after failed fetch = (%v, %v), want (true, nil)", done, err)
	}
}

func TestReconciler_ReloadRecoversAfterFetchFailure(t *testing.T) {
	repo := newFlakyRepository()
	ctx := context.Background()
	repo.MemoryRepository.Upsert(ctx, progress.Record{UserID: "u1", CourseID: "dsa", LessonID: "0-0", Completed: true})
	repo.fetchErr = errors.New("offline")

	r, _ := newReconciler(t, repo)
	_ = r.Start(ctx, "u1")
	if r.IsCompleted("dsa", "0-0") {
		t.Fatal("IsCompleted should be false while fetch fails")
	}

	repo.mu.Lock()
	repo.fetchErr = nil
	repo.mu.Unlock()
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !r.IsCompleted("dsa", "0-0") {
		t.Error("IsCompleted(dsa, 0-0) = false after reload, want true")
	}
	if r.LoadError() != nil {
		t.Errorf("LoadError() = %v after successful reload, want nil", r.LoadError())
	}
}

func TestReconciler_Progress(t *testing.T) {
	tests := []struct {
		name      string
		courseID  string
		completed int
		want      int
	}{
		{"quarter of dsa", "dsa", 45, 25},
		{"none", "dsa", 0, 0},
		{"one of 150", "fullstack", 1, 1},
		{"rounds half up", "ml", 1, 1},     // 0.5 -> 1
		{"rounds down", "fullstack", 2, 1}, // 1.33 -> 1
		{"all", "ml", 200, 100},
		{"unknown course", "rust", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFlakyRepository()
			records := make([]progress.Record, 0, tt.completed+1)
			for i := 0; i < tt.completed; i++ {
				records = append(records, progress.Record{
					UserID: "u1", CourseID: tt.courseID, LessonID: fmt.Sprintf("x-%d", i), Completed: true,
				})
			}
			// A record marked not completed never counts.
			records = append(records, progress.Record{UserID: "u1", CourseID: tt.courseID, LessonID: "y-0"})
			repo.fetched = records

			r, _ := newReconciler(t, repo)
			_ = r.Start(context.Background(), "u1")

			if got := r.Progress(tt.courseID); got != tt.want {
				t.Errorf("Progress(%s) = %d, want %d", tt.courseID, got, tt.want)
			}
		})
	}
}

func TestReconciler_ProgressDoesNotMatchCoursePrefix(t *testing.T) {
	cat, err := catalog.New([]catalog.Course{
		{ID: "go", Lessons: 10, Modules: []catalog.Module{{Name: "a", Topics: []string{"t"}}}},
		{ID: "gopher", Lessons: 10, Modules: []catalog.Module{{Name: "a", Topics: []string{"t"}}}},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	repo := newFlakyRepository()
	repo.fetched = []progress.Record{{UserID: "u1", CourseID: "gopher", LessonID: "0-0", Completed: true}}

	r := progress.NewReconciler(progress.ReconcilerConfig{Catalog: cat, Repository: repo})
	_ = r.Start(context.Background(), "u1")

	if got := r.Progress("go"); got != 0 {
		t.Errorf("Progress(go) = %d, want 0", got)
	}
	if got := r.Progress("gopher"); got != 10 {
		t.Errorf("Progress(gopher) = %d, want 10", got)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{45, 180, 25},
		{0, 0, 0},
		{5, 0, 0},
		{3, -1, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
	}
	for _, tt := range tests {
		if got := progress.Percent(tt.completed, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestReconciler_LoadIsOrderIndependent(t *testing.T) {
	records := []progress.Record{
		{UserID: "u1", CourseID: "ml", LessonID: "1-0", Completed: true},
		{UserID: "u1", CourseID: "dsa", LessonID: "0-0", Completed: false},
		{UserID: "u1", CourseID: "fullstack", LessonID: "4-4", Completed: true},
	}
	reversed := []progress.Record{records[2], records[1], records[0]}

	first := newFlakyRepository()
	first.fetched = records
	second := newFlakyRepository()
	second.fetched = reversed

	r1, _ := newReconciler(t, first)
	r2, _ := newReconciler(t, second)
	_ = r1.Start(context.Background(), "u1")
	_ = r2.Start(context.Background(), "u1")

	if !reflect.DeepEqual(r1.Snapshot(), r2.Snapshot()) {
		t.Errorf("Snapshots differ: %v vs %v", r1.Snapshot(), r2.Snapshot())
	}
	if len(r1.Snapshot()) != 3 {
		t.Errorf("len(Snapshot()) = %d, want 3", len(r1.Snapshot()))
	}
}

func TestReconciler_StoreKeepsLatestRecordPerKey(t *testing.T) {
	repo := newFlakyRepository()
	ctx := context.Background()
	repo.MemoryRepository.Upsert(ctx, progress.Record{UserID: "u1", CourseID: "ml", LessonID: "1-0", Completed: true})
	repo.MemoryRepository.Upsert(ctx, progress.Record{UserID: "u1", CourseID: "ml", LessonID: "1-0", Completed: false})

	r, _ := newReconciler(t, repo)
	_ = r.Start(ctx, "u1")

	want := map[string]bool{"ml-1-0": false}
	if got := r.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
}

func TestReconciler_ToggleUnknownLesson(t *testing.T) {
	repo := newFlakyRepository()
	r, _ := newReconciler(t, repo)
	_ = r.Start(context.Background(), "u1")

	tests := []struct{ course, lesson string }{
		{"dsa", "9-9"},
		{"rust", "0-0"},
		{"dsa", "first"},
	}
	for _, tt := range tests {
		if _, err := r.Toggle(context.Background(), tt.course, tt.lesson); !errors.Is(err, progress.ErrUnknownLesson) {
			t.Errorf("Toggle(%s, %s) error = %v, want ErrUnknownLesson", tt.course, tt.lesson, err)
		}
	}
	if repo.upserts != 0 {
		t.Errorf("upserts = %d, want 0", repo.upserts)
	}
}

func TestReconciler_ToggleRejectsNonCanonicalLessonID(t *testing.T) {
	repo := newFlakyRepository()
	r, _ := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	if _, err := r.Toggle(ctx, "dsa", "0-2"); err != nil {
		t.Fatalf("Toggle(dsa, 0-2) error = %v", err)
	}
	for _, id := range []string{"0-02", "00-2", "0-002"} {
		if _, err := r.Toggle(ctx, "dsa", id); !errors.Is(err, progress.ErrUnknownLesson) {
			t.Errorf("Toggle(dsa, %s) error = %v, want ErrUnknownLesson", id, err)
		}
	}

	if got := r.CompletedCount("dsa"); got != 1 {
		t.Errorf("CompletedCount(dsa) = %d, want 1", got)
	}
	records, err := repo.FetchAll(ctx, "u1")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 1 || records[0].LessonID != "0-2" {
		t.Errorf("stored records = %+v, want a single dsa 0-2", records)
	}
	if got := r.Progress("dsa"); got != progress.Percent(1, 180) {
		t.Errorf("Progress(dsa) = %d, want %d", got, progress.Percent(1, 180))
	}
}

func TestReconciler_ReloadKeepsToggleConfirmedDuringFetch(t *testing.T) {
	repo := newFlakyRepository()
	r, _ := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	inFlight := make(chan struct{})
	proceed := make(chan struct{})
	fetching := make(chan struct{})
	fetchProceed := make(chan struct{})
	repo.mu.Lock()
	repo.onUpsert = func() {
		close(inFlight)
		<-proceed
	}
	repo.mu.Unlock()

	type result struct {
		completed bool
		err       error
	}
	toggled := make(chan result, 1)
	go func() {
		completed, err := r.Toggle(ctx, "dsa", "2-0")
		toggled <- result{completed, err}
	}()
	<-inFlight

	// The reload reads a snapshot taken before the write lands.
	repo.mu.Lock()
	repo.onUpsert = nil
	repo.fetched = []progress.Record{}
	repo.onFetch = func() {
		close(fetching)
		<-fetchProceed
	}
	repo.mu.Unlock()

	reloaded := make(chan error, 1)
	go func() {
		reloaded <- r.Reload(ctx)
	}()
	<-fetching

	close(proceed)
	res := <-toggled
	if res.err != nil || !res.completed {
		t.Fatalf("Toggle() = (%v, %v), want (true, nil)", res.completed, res.err)
	}

	close(fetchProceed)
	if err := <-reloaded; err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if !r.IsCompleted("dsa", "2-0") {
		t.Error("confirmed toggle was lost by the reload")
	}
	rec, ok := repo.Get("u1", progress.Key{CourseID: "dsa", LessonID: "2-0"})
	if !ok || !rec.Completed {
		t.Errorf("stored record = %+v, %v, want completed", rec, ok)
	}
}

func TestReconciler_ResetDiscardsMap(t *testing.T) {
	r, _ := newReconciler(t, newFlakyRepository())
	ctx := context.Background()
	_ = r.Start(ctx, "u1")
	_, _ = r.Toggle(ctx, "dsa", "0-0")

	r.Reset()

	if r.State() != progress.StateUninitialized {
		t.Errorf("State() = %v, want uninitialized", r.State())
	}
	if r.UserID() != "" {
		t.Errorf("UserID() = %q, want empty", r.UserID())
	}
	if len(r.Snapshot()) != 0 {
		t.Errorf("Snapshot() = %v, want empty", r.Snapshot())
	}
}

func TestReconciler_UserChangeDiscardsInFlightToggle(t *testing.T) {
	repo := newFlakyRepository()
	inFlight := make(chan struct{})
	proceed := make(chan struct{})
	repo.onUpsert = func() {
		close(inFlight)
		<-proceed
	}
	r, _ := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Toggle(ctx, "dsa", "0-0")
		errCh <- err
	}()

	<-inFlight
	_ = r.Start(ctx, "u2")
	close(proceed)

	if err := <-errCh; !errors.Is(err, progress.ErrSessionChanged) {
		t.Errorf("in-flight Toggle() error = %v, want ErrSessionChanged", err)
	}
	if r.IsCompleted("dsa", "0-0") {
		t.Error("u1's toggle leaked into u2's map")
	}
}

func TestReconciler_ConcurrentTogglesOnDifferentLessons(t *testing.T) {
	repo := newFlakyRepository()
	r, _ := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	lessons := catalog.MustBuiltin().Lessons("ml")
	var wg sync.WaitGroup
	for _, l := range lessons {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := r.Toggle(ctx, "ml", id); err != nil {
				t.Errorf("Toggle(%s) error = %v", id, err)
			}
		}(l.ID())
	}
	wg.Wait()

	if got := r.CompletedCount("ml"); got != len(lessons) {
		t.Errorf("CompletedCount(ml) = %d, want %d", got, len(lessons))
	}
}

func TestReconciler_ConcurrentTogglesOnSameLessonAreSerialized(t *testing.T) {
	repo := newFlakyRepository()
	repo.upsertDelay = time.Millisecond
	r, _ := newReconciler(t, repo)
	ctx := context.Background()
	_ = r.Start(ctx, "u1")

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Toggle(ctx, "dsa", "1-1")
		}()
	}
	wg.Wait()

	// An even number of serialized flips ends where it started.
	if r.IsCompleted("dsa", "1-1") {
		t.Error("IsCompleted(dsa, 1-1) = true after an even number of toggles")
	}
	rec, _ := repo.Get("u1", progress.Key{CourseID: "dsa", LessonID: "1-1"})
	if rec.Completed {
		t.Error("stored record diverged from the map")
	}
}

func TestReconciler_ToggleWhileLoading(t *testing.T) {
	repo := &blockingRepository{release: make(chan struct{}), started: make(chan struct{})}
	r := progress.NewReconciler(progress.ReconcilerConfig{Repository: repo})

	done := make(chan struct{})
	go func() {
		_ = r.Start(context.Background(), "u1")
		close(done)
	}()

	<-repo.started
	if r.State() != progress.StateLoading {
		t.Errorf("State() = %v, want loading", r.State())
	}
	if _, err := r.Toggle(context.Background(), "dsa", "0-0"); !errors.Is(err, progress.ErrNotReady) {
		t.Errorf("Toggle() while loading error = %v, want ErrNotReady", err)
	}
	close(repo.release)
	<-done

	if r.State() != progress.StateReady {
		t.Errorf("State() = %v, want ready", r.State())
	}
}

func TestReconciler_CallTimeout(t *testing.T) {
	repo := &blockingRepository{release: make(chan struct{}), started: make(chan struct{})}
	r := progress.NewReconciler(progress.ReconcilerConfig{
		Repository: repo,
		Timeout:    20 * time.Millisecond,
	})

	if err := r.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !errors.Is(r.LoadError(), context.DeadlineExceeded) {
		t.Errorf("LoadError() = %v, want deadline exceeded", r.LoadError())
	}
}

// blockingRepository blocks FetchAll until released or the context ends.
type blockingRepository struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingRepository) FetchAll(ctx context.Context, _ string) ([]progress.Record, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingRepository) Upsert(_ context.Context, rec progress.Record) (progress.Record, error) {
	return rec, nil
}

func ptr[T any](v T) *T {
	return &v
}

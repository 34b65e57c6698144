package plan

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasfsr/triplan/internal/database"
	"github.com/thomasfsr/triplan/internal/llm"
)

type fakeGenerator struct {
	calls   atomic.Int32
	delay   time.Duration
	entries []llm.WorkoutEntry
	err     error

	// When release is set, Generate signals started and then blocks until
	// release is closed or its context ends.
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, _ string, _ int) ([]llm.WorkoutEntry, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.release != nil {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.entries, g.err
}

// partialSaveStore writes only the first few rows of the first save and then
// reports the interruption, the way a save cut off midway does.
type partialSaveStore struct {
	*database.Store
	interrupted bool
}

func (s *partialSaveStore) SaveWorkouts(ctx context.Context, userID int64, workouts []database.Workout) (int, error) {
	if s.interrupted {
		return s.Store.SaveWorkouts(ctx, userID, workouts)
	}
	s.interrupted = true
	saved, err := s.Store.SaveWorkouts(ctx, userID, workouts[:3])
	if err != nil {
		return saved, err
	}
	return saved, context.DeadlineExceeded
}

type recordedEvent struct {
	Type    string
	UserID  int64
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, userID int64, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{eventType, userID, payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func fourWeeks() []llm.WorkoutEntry {
	var entries []llm.WorkoutEntry
	for week := 1; week <= PlanWeeks; week++ {
		for day := 1; day <= 7; day++ {
			e := llm.WorkoutEntry{Week: week, Day: day, Activity: "bike", Duration: 60, Description: "Steady ride"}
			if day == 7 {
				e.Activity, e.Duration, e.Description = "rest", 0, "Full rest"
			}
			entries = append(entries, e)
		}
	}
	return entries
}

func newTestService(t *testing.T, gen PlanGenerator) (*Service, *database.Store, *recordingPublisher) {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db, zerolog.New(io.Discard))
	pub := &recordingPublisher{}
	return NewService(store, gen, pub, zerolog.New(io.Discard)), store, pub
}

const halfIronman = "I'm training for a half Ironman in 12 weeks. I can swim 2km, bike 60km, and run 15km comfortably."

func TestSetupCreatesProfile(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeGenerator{})
	ctx := context.Background()

	id, err := svc.Setup(ctx, SetupInput{Description: "  " + halfIronman + "\n", Days: "5"})
	require.NoError(t, err)

	user, err := store.GetUser(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "5", user.DaysPerWeek)
	assert.Equal(t, halfIronman, user.Description)
	assert.Equal(t, database.DefaultGoal, user.Goal)
}

func TestSetupRejectsInvalidInput(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeGenerator{})
	ctx := context.Background()

	_, err := svc.Setup(ctx, SetupInput{Description: "I like to run.", Days: "5"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "description", verr.Field)

	// Nothing was written: the first valid profile still gets id 1.
	id, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "3"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	user, err := store.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestPlanGeneratesOnce(t *testing.T) {
	gen := &fakeGenerator{entries: fourWeeks()}
	svc, _, pub := newTestService(t, gen)
	ctx := context.Background()

	id, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "5"})
	require.NoError(t, err)

	user, workouts, err := svc.Plan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	require.Len(t, workouts, 28)
	assert.Equal(t, 1, workouts[0].WeekNumber)
	assert.Equal(t, 4, workouts[27].WeekNumber)
	assert.True(t, workouts[6].IsRest())

	_, again, err := svc.Plan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, workouts, again)
	assert.EqualValues(t, 1, gen.calls.Load())

	require.Len(t, pub.events, 1)
	assert.Equal(t, "plan.generated", pub.events[0].Type)
	assert.Equal(t, id, pub.events[0].UserID)
}

func TestPlanConcurrentRequestsShareGeneration(t *testing.T) {
	gen := &fakeGenerator{entries: fourWeeks(), delay: 50 * time.Millisecond}
	svc, store, _ := newTestService(t, gen)
	ctx := context.Background()

	id, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "6"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Plan(ctx, id)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, gen.calls.Load())

	stored, err := store.GetWorkouts(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored, 28)
}

func TestPlanSurvivesFirstCallerLeaving(t *testing.T) {
	gen := &fakeGenerator{
		entries: fourWeeks(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, store, _ := newTestService(t, gen)

	id, err := svc.Setup(context.Background(), SetupInput{Description: halfIronman, Days: "5"})
	require.NoError(t, err)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Plan(firstCtx, id)
		firstDone <- err
	}()
	<-gen.started

	type result struct {
		workouts []database.Workout
		err      error
	}
	secondDone := make(chan result, 1)
	go func() {
		_, workouts, err := svc.Plan(context.Background(), id)
		secondDone <- result{workouts, err}
	}()

	// Give the second request time to join the running generation.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(gen.release)

	second := <-secondDone
	require.NoError(t, second.err)
	assert.Len(t, second.workouts, 28)
	<-firstDone

	stored, err := store.GetWorkouts(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored, 28)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestPlanInterruptedSaveIsDiscarded(t *testing.T) {
	gen := &fakeGenerator{entries: fourWeeks()}
	db, err := database.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	inner := database.NewStore(db, zerolog.New(io.Discard))
	svc := NewService(&partialSaveStore{Store: inner}, gen, &recordingPublisher{}, zerolog.New(io.Discard))
	ctx := context.Background()

	id, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "5"})
	require.NoError(t, err)

	_, _, err = svc.Plan(ctx, id)
	require.ErrorIs(t, err, ErrStorage)

	stored, err := inner.GetWorkouts(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stored, "a partial plan must not be kept")

	_, workouts, err := svc.Plan(ctx, id)
	require.NoError(t, err)
	assert.Len(t, workouts, 28)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestPlanGenerationFailureStoresNothing(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("week 3: no JSON array found")}
	svc, store, pub := newTestService(t, gen)
	ctx := context.Background()

	id, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "4"})
	require.NoError(t, err)

	_, _, err = svc.Plan(ctx, id)
	require.ErrorIs(t, err, ErrGeneration)

	stored, err := store.GetWorkouts(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, pub.events)

	// A later request tries again.
	gen.err, gen.entries = nil, fourWeeks()
	_, workouts, err := svc.Plan(ctx, id)
	require.NoError(t, err)
	assert.Len(t, workouts, 28)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestPlanNothingSavedIsStorageError(t *testing.T) {
	gen := &fakeGenerator{entries: []llm.WorkoutEntry{{Week: 1, Day: 1, Activity: "run", Duration: -1, Description: "x"}}}
	svc, _, _ := newTestService(t, gen)
	ctx := context.Background()

	id, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "4"})
	require.NoError(t, err)

	_, _, err = svc.Plan(ctx, id)
	require.ErrorIs(t, err, ErrStorage)
}

func TestPlanUnknownUser(t *testing.T) {
	gen := &fakeGenerator{entries: fourWeeks()}
	svc, _, _ := newTestService(t, gen)

	_, _, err := svc.Plan(context.Background(), 42)
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, gen.calls.Load())
}

func TestToggle(t *testing.T) {
	svc, store, pub := newTestService(t, &fakeGenerator{entries: fourWeeks()})
	ctx := context.Background()

	owner, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "5"})
	require.NoError(t, err)
	other, err := svc.Setup(ctx, SetupInput{Description: halfIronman, Days: "3"})
	require.NoError(t, err)

	_, workouts, err := svc.Plan(ctx, owner)
	require.NoError(t, err)
	target := workouts[0]
	require.False(t, target.Completed)

	require.NoError(t, svc.Toggle(ctx, target.ID, other))
	stored, err := store.GetWorkouts(ctx, owner)
	require.NoError(t, err)
	assert.False(t, stored[0].Completed, "another user's toggle is ignored")

	require.NoError(t, svc.Toggle(ctx, target.ID, owner))
	stored, err = store.GetWorkouts(ctx, owner)
	require.NoError(t, err)
	assert.True(t, stored[0].Completed)

	require.NoError(t, svc.Toggle(ctx, target.ID, owner))
	stored, err = store.GetWorkouts(ctx, owner)
	require.NoError(t, err)
	assert.False(t, stored[0].Completed)

	require.NoError(t, svc.Toggle(ctx, 9999, owner))

	var toggles int
	for _, e := range pub.events {
		if e.Type == "workout.toggled" {
			toggles++
		}
	}
	assert.Equal(t, 2, toggles)
}

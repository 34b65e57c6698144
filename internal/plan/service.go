// Package plan validates setup input, generates training plans and
// coordinates their storage.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/thomasfsr/triplan/internal/database"
	"github.com/thomasfsr/triplan/internal/events"
	"github.com/thomasfsr/triplan/internal/llm"
	"github.com/thomasfsr/triplan/internal/observability"
)

// Store captures the persistence operations the service relies on.
type Store interface {
	CreateUser(ctx context.Context, daysPerWeek, description string) (int64, error)
	GetUser(ctx context.Context, id int64) (*database.User, error)
	GetWorkouts(ctx context.Context, userID int64) ([]database.Workout, error)
	SaveWorkouts(ctx context.Context, userID int64, workouts []database.Workout) (int, error)
	ToggleCompletion(ctx context.Context, workoutID, userID int64) (*database.Workout, error)
	DeleteWorkouts(ctx context.Context, userID int64) error
}

// generationTimeout bounds a shared generation, which no longer follows the
// context of the request that started it.
const generationTimeout = 5 * time.Minute

// PlanGenerator produces the entries of a full plan.
type PlanGenerator interface {
	Generate(ctx context.Context, description string, daysPerWeek int) ([]llm.WorkoutEntry, error)
}

// Service orchestrates setup, plan retrieval and completion toggles.
type Service struct {
	store     Store
	generator PlanGenerator
	events    events.Publisher
	inflight  singleflight.Group
	log       zerolog.Logger
}

func NewService(store Store, generator PlanGenerator, publisher events.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:     store,
		generator: generator,
		events:    publisher,
		log:       logger.With().Str("component", "plan").Logger(),
	}
}

// Setup validates the submission and creates the profile.
func (s *Service) Setup(ctx context.Context, input SetupInput) (int64, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.CreateUser(ctx, input.Days, input.Description)
	if err != nil {
		s.log.Error().Err(err).Msg("create user failed")
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.log.Info().Int64("user_id", id).Str("days_per_week", input.Days).Msg("profile created")
	return id, nil
}

// Plan returns the stored plan for the user, generating and saving it first
// when none exists yet. A stored plan is never regenerated.
func (s *Service) Plan(ctx context.Context, userID int64) (*database.User, []database.Workout, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}

	workouts, err := s.store.GetWorkouts(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if len(workouts) > 0 {
		return user, workouts, nil
	}

	v, err, _ := s.inflight.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		// Other requests wait on this result, so the caller leaving must not abort it.
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), generationTimeout)
		defer cancel()
		return s.generateAndStore(genCtx, user)
	})
	if err != nil {
		return nil, nil, err
	}
	return user, v.([]database.Workout), nil
}

func (s *Service) generateAndStore(ctx context.Context, user *database.User) ([]database.Workout, error) {
	// Another request may have finished generating while this one waited.
	existing, err := s.store.GetWorkouts(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	days, err := strconv.Atoi(user.DaysPerWeek)
	if err != nil {
		return nil, fmt.Errorf("%w: user %d has days_per_week %q", ErrStorage, user.ID, user.DaysPerWeek)
	}

	s.log.Info().Int64("user_id", user.ID).Msg("generating new plan")
	entries, err := s.generator.Generate(ctx, user.Description, days)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("plan generation failed")
		if !errors.Is(err, ErrGeneration) {
			err = fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no workouts returned", ErrGeneration)
	}

	workouts := make([]database.Workout, 0, len(entries))
	for _, e := range entries {
		workouts = append(workouts, database.Workout{
			UserID:       user.ID,
			WeekNumber:   e.Week,
			DayNumber:    e.Day,
			ActivityType: e.Activity,
			Duration:     e.Duration,
			Description:  e.Description,
		})
	}

	saved, err := s.store.SaveWorkouts(ctx, user.ID, workouts)
	if err != nil {
		if saved > 0 {
			s.discardPartialPlan(ctx, user.ID, saved)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if saved == 0 {
		return nil, fmt.Errorf("%w: none of %d workouts were saved", ErrStorage, len(workouts))
	}
	s.log.Info().Int64("user_id", user.ID).Int("saved", saved).Int("generated", len(workouts)).Msg("plan saved")
	s.publish(ctx, events.TypePlanGenerated, user.ID, events.PlanGenerated{Weeks: PlanWeeks, Workouts: saved})

	stored, err := s.store.GetWorkouts(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return stored, nil
}

// discardPartialPlan removes rows left by an interrupted save so the next
// visit generates a complete plan instead of serving the fragment.
func (s *Service) discardPartialPlan(ctx context.Context, userID int64, saved int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.DeleteWorkouts(ctx, userID); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Int("saved", saved).Msg("failed to discard partial plan")
		return
	}
	s.log.Warn().Int64("user_id", userID).Int("saved", saved).Msg("discarded partial plan")
}

// Toggle flips the completed flag of a workout owned by userID. A workout
// that does not exist or belongs to another user is ignored.
func (s *Service) Toggle(ctx context.Context, workoutID, userID int64) error {
	w, err := s.store.ToggleCompletion(ctx, workoutID, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	observability.RecordToggle(w != nil)
	if w == nil {
		s.log.Debug().Int64("user_id", userID).Int64("workout_id", workoutID).Msg("toggle ignored")
		return nil
	}
	s.publish(ctx, events.TypeWorkoutToggled, userID, events.WorkoutToggled{WorkoutID: w.ID, Completed: w.Completed})
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, userID int64, payload any) {
	if err := s.events.Publish(ctx, eventType, userID, payload); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Int64("user_id", userID).Msg("event not published")
	}
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/thomasfsr/triplan/internal/observability"
)

// DefaultGoal is stored on every profile created through setup.
const DefaultGoal = "AI-Generated"

// Store is the only reader and writer of users and plans.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
}

func NewStore(db *sqlx.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, log: logger.With().Str("component", "store").Logger()}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a profile and returns its id.
func (s *Store) CreateUser(ctx context.Context, daysPerWeek, description string) (int64, error) {
	query := s.db.Rebind(`INSERT INTO users (days_per_week, description, goal) VALUES (?, ?, ?) RETURNING id`)
	var id int64
	if err := s.db.QueryRowxContext(ctx, query, daysPerWeek, description, DefaultGoal).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

// GetUser returns nil without error when the user does not exist.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	query := s.db.Rebind(`SELECT id, days_per_week, description, goal FROM users WHERE id = ?`)
	err := s.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}

// GetWorkouts returns the user's plan ordered by week then day.
func (s *Store) GetWorkouts(ctx context.Context, userID int64) ([]Workout, error) {
	workouts := []Workout{}
	query := s.db.Rebind(`
		SELECT id, user_id, week_number, day_number, activity_type, duration, description, completed
		FROM plans WHERE user_id = ?
		ORDER BY week_number, day_number, id`)
	if err := s.db.SelectContext(ctx, &workouts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to load workouts for user %d: %w", userID, err)
	}
	return workouts, nil
}

// SaveWorkouts inserts the rows one at a time. A row that fails is logged and
// skipped; the count of rows written is returned. Only a cancelled context
// stops the batch early.
func (s *Store) SaveWorkouts(ctx context.Context, userID int64, workouts []Workout) (int, error) {
	query := s.db.Rebind(`
		INSERT INTO plans (user_id, week_number, day_number, activity_type, duration, description)
		VALUES (?, ?, ?, ?, ?, ?)`)

	saved := 0
	for _, w := range workouts {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		_, err := s.db.ExecContext(ctx, query, userID, w.WeekNumber, w.DayNumber, w.ActivityType, w.Duration, w.Description)
		if err != nil {
			s.log.Warn().Err(err).
				Int64("user_id", userID).
				Int("week", w.WeekNumber).
				Int("day", w.DayNumber).
				Msg("skipping workout that failed to save")
			observability.RecordWorkoutSaveError()
			continue
		}
		saved++
	}
	observability.RecordWorkoutsSaved(saved)
	return saved, nil
}

// DeleteWorkouts removes every workout of the user.
func (s *Store) DeleteWorkouts(ctx context.Context, userID int64) error {
	query := s.db.Rebind(`DELETE FROM plans WHERE user_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete workouts for user %d: %w", userID, err)
	}
	return nil
}

// ToggleCompletion flips the completed flag of a workout owned by userID and
// returns the updated row. It returns nil without error when no such workout
// exists for that user.
func (s *Store) ToggleCompletion(ctx context.Context, workoutID, userID int64) (*Workout, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var w Workout
	query := tx.Rebind(`
		SELECT id, user_id, week_number, day_number, activity_type, duration, description, completed
		FROM plans WHERE id = ? AND user_id = ?`)
	err = tx.GetContext(ctx, &w, query, workoutID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workout %d: %w", workoutID, err)
	}

	w.Completed = !w.Completed
	update := tx.Rebind(`UPDATE plans SET completed = ? WHERE id = ? AND user_id = ?`)
	if _, err := tx.ExecContext(ctx, update, w.Completed, workoutID, userID); err != nil {
		return nil, fmt.Errorf("failed to update workout %d: %w", workoutID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &w, nil
}

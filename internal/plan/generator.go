package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasfsr/triplan/internal/llm"
	"github.com/thomasfsr/triplan/internal/observability"
)

// PlanWeeks is the number of weeks requested per generation.
const PlanWeeks = 4

// GeneratorConfig holds the fixed sampling parameters and the pause between weeks.
type GeneratorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Pause       time.Duration
}

// Generator asks the completion service for a plan one week at a time.
type Generator struct {
	completer llm.Completer
	cfg       GeneratorConfig
	sleep     func(ctx context.Context, d time.Duration) error
	log       zerolog.Logger
}

func NewGenerator(completer llm.Completer, cfg GeneratorConfig, logger zerolog.Logger) *Generator {
	return &Generator{
		completer: completer,
		cfg:       cfg,
		sleep:     sleepContext,
		log:       logger.With().Str("component", "generator").Logger(),
	}
}

// Generate returns the entries of all weeks in order, or an error wrapping
// ErrGeneration. A failure in any week discards every week before it.
func (g *Generator) Generate(ctx context.Context, description string, daysPerWeek int) ([]llm.WorkoutEntry, error) {
	started := time.Now()
	var all []llm.WorkoutEntry

	for week := 1; week <= PlanWeeks; week++ {
		if week > 1 {
			if err := g.sleep(ctx, g.cfg.Pause); err != nil {
				return nil, g.fail(started, week, err)
			}
		}

		g.log.Debug().Int("week", week).Msg("generating week")
		entries, err := g.generateWeek(ctx, description, week, daysPerWeek)
		if err != nil {
			return nil, g.fail(started, week, err)
		}
		all = append(all, entries...)
		g.log.Info().Int("week", week).Int("workouts", len(entries)).Msg("week generated")
	}

	observability.RecordGeneration(observability.OutcomeSuccess, time.Since(started))
	g.log.Info().Int("workouts", len(all)).Dur("elapsed", time.Since(started)).Msg("plan generated")
	return all, nil
}

func (g *Generator) generateWeek(ctx context.Context, description string, week, daysPerWeek int) ([]llm.WorkoutEntry, error) {
	content, err := g.completer.Complete(ctx, llm.CompletionRequest{
		Model:       g.cfg.Model,
		System:      systemPrompt,
		Prompt:      weekPrompt(description, week, daysPerWeek),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	payload, err := llm.ExtractJSONArray(content)
	if err != nil {
		return nil, err
	}
	entries, err := llm.ParseEntries(payload)
	if err != nil {
		return nil, err
	}
	if err := normalizeWeek(entries, week); err != nil {
		return nil, err
	}
	return entries, nil
}

// normalizeWeek pins entries to the requested week and zeroes rest days.
func normalizeWeek(entries []llm.WorkoutEntry, week int) error {
	for i := range entries {
		e := &entries[i]
		e.Activity = strings.ToLower(strings.TrimSpace(e.Activity))
		if e.Activity == "" {
			return fmt.Errorf("%w: element %d has an empty activity", llm.ErrInvalidEntry, i)
		}
		if e.Day < 1 || e.Day > 7 {
			return fmt.Errorf("%w: element %d has day %d", llm.ErrInvalidEntry, i, e.Day)
		}
		if e.Duration < 0 {
			return fmt.Errorf("%w: element %d has duration %d", llm.ErrInvalidEntry, i, e.Duration)
		}
		e.Week = week
		if e.Activity == "rest" {
			e.Duration = 0
		}
	}
	return nil
}

func (g *Generator) fail(started time.Time, week int, err error) error {
	reason := failureReason(err)
	observability.RecordWeekFailure(reason)
	observability.RecordGeneration(observability.OutcomeFailure, time.Since(started))
	g.log.Warn().Err(err).Int("week", week).Str("reason", reason).Msg("plan generation aborted")
	return fmt.Errorf("%w: week %d: %w", ErrGeneration, week, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, llm.ErrEmptyReply):
		return "empty_reply"
	case errors.Is(err, llm.ErrNoJSONArray):
		return "no_array"
	case errors.Is(err, llm.ErrInvalidJSON):
		return "invalid_json"
	case errors.Is(err, llm.ErrEmptyArray):
		return "empty_array"
	case errors.Is(err, llm.ErrMissingField):
		return "missing_field"
	case errors.Is(err, llm.ErrInvalidEntry):
		return "invalid_entry"
	default:
		return "transport"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

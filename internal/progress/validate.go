package progress

import (
	"errors"
	"fmt"
	"strings"
)

const (
	maxWeight = 1000
	maxReps   = 1000
)

var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func ValidateWeight(weight float64) error {
	if weight <= 0 || weight >= maxWeight {
		return invalid("weight %.2f must be in (0, %d)", weight, maxWeight)
	}
	return nil
}

func ValidateWeek(week int) error {
	if week < 1 {
		return invalid("week %d must be at least 1", week)
	}
	return nil
}

func ValidateDay(day int) error {
	if day < 0 || day >= DaysPerWeek {
		return invalid("day %d must be in [0, %d]", day, DaysPerWeek-1)
	}
	return nil
}

func ValidateExercise(ex SessionExercise) error {
	if strings.TrimSpace(ex.Name) == "" {
		return invalid("exercise name empty")
	}
	if ex.Reps <= 0 || ex.Reps > maxReps {
		return invalid("exercise [%s] reps %d must be in (0, %d]", ex.Name, ex.Reps, maxReps)
	}
	if ex.Sets < 0 {
		return invalid("exercise [%s] sets %d must not be negative", ex.Name, ex.Sets)
	}
	// bodyweight movements are logged with zero weight
	if ex.Weight < 0 || ex.Weight >= maxWeight {
		return invalid("exercise [%s] weight %.2f must be in [0, %d)", ex.Name, ex.Weight, maxWeight)
	}
	return nil
}

func validateProgression(p WorkoutProgression) error {
	if err := ValidateWeek(p.CurrentWeek); err != nil {
		return err
	}
	for _, day := range p.CompletedDays {
		if err := ValidateDay(day); err != nil {
			return err
		}
	}
	return nil
}

func validateSession(s WorkoutSession) error {
	if err := ValidateWeek(s.Week); err != nil {
		return err
	}
	if err := ValidateDay(s.Day); err != nil {
		return err
	}
	if len(s.Exercises) == 0 {
		return invalid("session has no exercises")
	}
	for _, ex := range s.Exercises {
		if err := ValidateExercise(ex); err != nil {
			return err
		}
	}
	if s.CompletedAt.IsZero() {
		return invalid("session completion time missing")
	}
	return nil
}

func validateRemoteSessions(sessions []WorkoutSession) error {
	for i, session := range sessions {
		if err := validateSession(session); err != nil {
			return fmt.Errorf("session %d: %w", i, err)
		}
	}
	return nil
}

func validateWeightTracking(t WeightTracking) error {
	if t.InitialWeight != nil {
		if err := ValidateWeight(*t.InitialWeight); err != nil {
			return err
		}
	}
	if t.GoalWeight != nil {
		if err := ValidateWeight(*t.GoalWeight); err != nil {
			return err
		}
	}
	for _, c := range t.CheckIns {
		if err := ValidateWeek(c.Week); err != nil {
			return err
		}
		if err := ValidateWeight(c.Weight); err != nil {
			return err
		}
	}
	if err := t.Validate(); err != nil {
		return invalid("%s", err)
	}
	return nil
}

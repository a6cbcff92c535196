package progress

import (
	"fmt"
	"sort"
	"time"
)

const (
	DaysPerWeek      = 5
	CheckInWeekEvery = 4
)

type WorkoutProgression struct {
	CurrentWeek   int   `json:"currentWeek"`
	CompletedDays []int `json:"completedDays"`
}

func DefaultProgression() WorkoutProgression {
	return WorkoutProgression{
		CurrentWeek:   1,
		CompletedDays: []int{},
	}
}

func (p *WorkoutProgression) Validate() error {
	if p.CurrentWeek < 1 {
		return fmt.Errorf("current week %d < 1", p.CurrentWeek)
	}
	if len(p.CompletedDays) > DaysPerWeek {
		return fmt.Errorf("%d completed days", len(p.CompletedDays))
	}
	seen := make(map[int]bool, len(p.CompletedDays))
	for _, day := range p.CompletedDays {
		if day < 0 || day >= DaysPerWeek {
			return fmt.Errorf("completed day %d out of range", day)
		}
		if seen[day] {
			return fmt.Errorf("completed day %d duplicated", day)
		}
		seen[day] = true
	}
	return nil
}

// normalized dedupes and sorts the completed days, rolling over to the next
// week once all days are done.
func (p WorkoutProgression) normalized() WorkoutProgression {
	seen := map[int]bool{}
	days := make([]int, 0, len(p.CompletedDays))
	for _, day := range p.CompletedDays {
		if seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, day)
	}
	sort.Ints(days)

	if len(days) >= DaysPerWeek {
		return WorkoutProgression{
			CurrentWeek:   p.CurrentWeek + 1,
			CompletedDays: []int{},
		}
	}

	return WorkoutProgression{
		CurrentWeek:   p.CurrentWeek,
		CompletedDays: days,
	}
}

type HistoryExercise struct {
	Name   string  `json:"name"`
	Sets   int     `json:"sets"`
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
}

type WorkoutHistoryEntry struct {
	Date      time.Time         `json:"date"`
	Exercises []HistoryExercise `json:"exercises"`
}

type SessionExercise struct {
	Name      string   `json:"name"`
	Sets      int      `json:"sets"`
	Reps      int      `json:"reps"`
	Weight    float64  `json:"weight"`
	RPE       *float64 `json:"rpe,omitempty"`
	Technique string   `json:"technique,omitempty"`
}

// WorkoutSession is a finished workout as mirrored to the remote backend.
type WorkoutSession struct {
	Week        int               `json:"week"`
	Day         int               `json:"day"`
	DayName     string            `json:"dayName"`
	Exercises   []SessionExercise `json:"exercises"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
}

func (s WorkoutSession) HistoryEntry() WorkoutHistoryEntry {
	exercises := make([]HistoryExercise, 0, len(s.Exercises))
	for _, ex := range s.Exercises {
		exercises = append(exercises, HistoryExercise{
			Name:   ex.Name,
			Sets:   ex.Sets,
			Reps:   ex.Reps,
			Weight: ex.Weight,
		})
	}
	return WorkoutHistoryEntry{
		Date:      s.CompletedAt,
		Exercises: exercises,
	}
}

type WeightCheckIn struct {
	Week   int       `json:"week"`
	Weight float64   `json:"weight"`
	Date   time.Time `json:"date"`
}

type WeightTracking struct {
	InitialWeight *float64        `json:"initialWeight"`
	GoalWeight    *float64        `json:"goalWeight"`
	CheckIns      []WeightCheckIn `json:"checkIns"`
}

func DefaultWeightTracking() WeightTracking {
	return WeightTracking{
		CheckIns: []WeightCheckIn{},
	}
}

func (t *WeightTracking) Validate() error {
	seen := make(map[int]bool, len(t.CheckIns))
	for _, c := range t.CheckIns {
		if seen[c.Week] {
			return fmt.Errorf("duplicate check-in for week %d", c.Week)
		}
		seen[c.Week] = true
	}
	return nil
}

// withCheckIn replaces any check-in of the same week and keeps the list sorted by week.
func (t WeightTracking) withCheckIn(checkIn WeightCheckIn) WeightTracking {
	checkIns := make([]WeightCheckIn, 0, len(t.CheckIns)+1)
	for _, c := range t.CheckIns {
		if c.Week != checkIn.Week {
			checkIns = append(checkIns, c)
		}
	}
	checkIns = append(checkIns, checkIn)
	sort.SliceStable(checkIns, func(i, j int) bool {
		return checkIns[i].Week < checkIns[j].Week
	})
	t.CheckIns = checkIns
	return t
}

// NeedsWeightCheckIn reports whether the week is a check-in week (every 4th)
// that has no check-in recorded yet.
func NeedsWeightCheckIn(tracking WeightTracking, currentWeek int) bool {
	if currentWeek <= 0 || currentWeek%CheckInWeekEvery != 0 {
		return false
	}
	for _, c := range tracking.CheckIns {
		if c.Week == currentWeek {
			return false
		}
	}
	return true
}

// PendingSync marks the local records of a user that did not reach the remote backend.
type PendingSync struct {
	Progression    bool             `json:"progression"`
	WeightTracking bool             `json:"weightTracking"`
	Sessions       []WorkoutSession `json:"sessions"`
}

func (p PendingSync) Empty() bool {
	return !p.Progression && !p.WeightTracking && len(p.Sessions) == 0
}

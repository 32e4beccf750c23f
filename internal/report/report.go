// Package report derives the display values shown for audit reports and
// brand/competition summaries.
package report

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoReport means a job has no current report yet.
	ErrNoReport = errors.New("no report available for this job")
	// ErrReportsIncomplete means a comparison was requested without both reports.
	ErrReportsIncomplete = errors.New("both current and new reports are required")
)

// Status buckets a 0-100 score.
type Status string

const (
	Excellent Status = "excellent"
	Good      Status = "good"
	Fair      Status = "fair"
	Poor      Status = "poor"
)

// ScoreStatus returns excellent (>=90), good (>=80), fair (>=70) or poor.
func ScoreStatus(score float64) Status {
	switch {
	case score >= 90:
		return Excellent
	case score >= 80:
		return Good
	case score >= 70:
		return Fair
	}
	return Poor
}

// ImprovementPercentage is the relative change from original to optimized,
// rounded to a whole percent. Zero when either side is zero.
func ImprovementPercentage(original, optimized float64) int {
	if original == 0 || optimized == 0 {
		return 0
	}
	return roundHalfUp((optimized - original) / original * 100)
}

// Level is the severity class of an accuracy percentage.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// AccuracyLevel classifies a brand or competition accuracy percentage.
func AccuracyLevel(accuracy float64) Level {
	switch {
	case accuracy >= 80:
		return LevelSuccess
	case accuracy >= 60:
		return LevelWarning
	}
	return LevelError
}

// FormatDelta renders a percentage-point difference as "+x.y%" or "-x.y%".
func FormatDelta(delta float64) string {
	if delta >= 0 {
		return fmt.Sprintf("+%.1f%%", delta)
	}
	return fmt.Sprintf("%.1f%%", delta)
}

// Percent converts score/max into a percentage. A zero max counts as 100.
func Percent(score, max float64) float64 {
	if max <= 0 {
		max = 100
	}
	return score / max * 100
}

// roundHalfUp rounds to the nearest integer, halves toward +Inf.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

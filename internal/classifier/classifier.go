// Package classifier turns a similarity score into the bucket shown to the user.
package classifier

import (
	"fmt"
	"math"

	"github.com/spigell/resume-matcher/internal/errs"
)

type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
)

const (
	LabelExcellent = "Excellent Match"
	LabelGood      = "Good Match"
	LabelModerate  = "Moderate Match"
	LabelWeak      = "Weak Match"
)

type Classification struct {
	Label          string
	Color          Color
	Recommendation string
}

// Rank orders buckets from weak (0) to excellent (3). Unknown labels rank -1.
func (c Classification) Rank() int {
	for i, b := range buckets {
		if b.class.Label == c.Label {
			return len(buckets) - 1 - i
		}
	}
	return -1
}

type bucket struct {
	min   float64
	class Classification
}

// buckets are ordered by descending lower bound; the first whose min the score reaches wins.
var buckets = []bucket{
	{min: 0.8, class: Classification{
		Label:          LabelExcellent,
		Color:          ColorGreen,
		Recommendation: "Excellent match! Your skills align very well with this position",
	}},
	{min: 0.6, class: Classification{
		Label:          LabelGood,
		Color:          ColorYellow,
		Recommendation: "Good match! Highlight relevant experience in your application",
	}},
	{min: 0.4, class: Classification{
		Label:          LabelModerate,
		Color:          ColorOrange,
		Recommendation: "Consider tailoring your resume to better match the job requirements",
	}},
	{min: math.Inf(-1), class: Classification{
		Label:          LabelWeak,
		Color:          ColorRed,
		Recommendation: "Consider tailoring your resume to better match the job requirements",
	}},
}

// Classify maps a score in [0, 1] to its bucket. Scores outside the range,
// NaN and infinities are rejected rather than clamped.
func Classify(score float64) (Classification, error) {
	if err := Check(score); err != nil {
		return Classification{}, err
	}

	for _, b := range buckets {
		if score >= b.min {
			return b.class, nil
		}
	}

	// unreachable: the last bucket has no lower bound
	return buckets[len(buckets)-1].class, nil
}

// Check reports whether score is a valid similarity score.
func Check(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		return &errs.Error{
			Kind:    errs.KindInvalidScore,
			Message: fmt.Sprintf("match score %v is outside [0, 1]", score),
		}
	}
	return nil
}

// Percent renders a score the way the results panel does, e.g. 0.823 -> 82.3.
func Percent(score float64) float64 {
	return math.Round(score*1000) / 10
}

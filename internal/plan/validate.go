package plan

import (
	"strings"
	"unicode/utf8"
)

// MinDescriptionLength is the shortest accepted athlete description, in characters.
const MinDescriptionLength = 20

// AllowedDays lists the accepted training-day counts in the order the form shows them.
var AllowedDays = []string{"3", "4", "5", "6", "7"}

// SetupInput is the raw setup form submission.
type SetupInput struct {
	Description string
	Days        string
}

// Normalize trims surrounding whitespace from both fields.
func (in SetupInput) Normalize() SetupInput {
	return SetupInput{
		Description: strings.TrimSpace(in.Description),
		Days:        strings.TrimSpace(in.Days),
	}
}

// Validate checks a normalized input.
func (in SetupInput) Validate() error {
	if in.Description == "" || utf8.RuneCountInString(in.Description) < MinDescriptionLength {
		return &ValidationError{
			Field:   "description",
			Message: "Please provide a more detailed description (at least 20 characters).",
		}
	}
	for _, d := range AllowedDays {
		if in.Days == d {
			return nil
		}
	}
	return &ValidationError{
		Field:   "days",
		Message: "Please select a valid number of training days (3-7).",
	}
}

package plan

import (
	"fmt"
	"strings"

	"github.com/thomasfsr/triplan/internal/llm"
)

const systemPrompt = "You are an experienced triathlon coach. Write workout descriptions naturally: " +
	"be specific and motivating, and do not repeat the same phrases from day to day."

func weekPrompt(description string, week, daysPerWeek int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Create week %d of a %d-week triathlon training plan for this athlete:\n\n", week, PlanWeeks)
	sb.WriteString(description)
	fmt.Fprintf(&sb, "\n\nTraining frequency: %d days per week\n\n", daysPerWeek)

	sb.WriteString("Guidelines:\n")
	fmt.Fprintf(&sb, "- This is week %d of %d, so build the load progressively.\n", week, PlanWeeks)
	sb.WriteString("- If the athlete states a weekly training volume (for example \"20 hours per week\"), respect it.\n")
	sb.WriteString("- Athletes training 15 or more hours a week may get double sessions: add a second entry with the same day number.\n")
	sb.WriteString("- Without a stated volume, keep to beginner volumes of roughly 5 to 8 hours a week.\n")
	sb.WriteString("- Cover exactly 7 days, numbered 1 to 7.\n")
	sb.WriteString("- Rest days use activity \"rest\" with duration 0.\n\n")

	sb.WriteString("A double session looks like this:\n")
	fmt.Fprintf(&sb, `{"week": %d, "day": 3, "activity": "swim", "duration": 60, "description": "Morning technique session"}`+"\n", week)
	fmt.Fprintf(&sb, `{"week": %d, "day": 3, "activity": "run", "duration": 45, "description": "Easy evening run"}`+"\n\n", week)

	if schema := llm.SchemaText(); schema != "" {
		sb.WriteString("Every entry must match this JSON schema:\n")
		sb.WriteString(schema)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, `Return ONLY a valid JSON array: [{"week": %d, "day": 1, "activity": "swim", "duration": 90, "description": "..."}]`, week)
	return sb.String()
}

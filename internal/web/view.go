package web

import "github.com/thomasfsr/triplan/internal/database"

// PlanPage is the data behind plan.html.
type PlanPage struct {
	User      *database.User
	Weeks     []WeekView
	Completed int
	Total     int
	Percent   float64
}

type WeekView struct {
	Number    int
	Days      []DayView
	Completed int
	Total     int
	Minutes   int
}

type DayView struct {
	Number   int
	Workouts []database.Workout
}

// buildPlanPage groups workouts, already ordered by week then day, into weeks
// and days. Several workouts on one day stay together in their stored order.
func buildPlanPage(user *database.User, workouts []database.Workout) PlanPage {
	page := PlanPage{User: user, Total: len(workouts)}

	for _, w := range workouts {
		if n := len(page.Weeks); n == 0 || page.Weeks[n-1].Number != w.WeekNumber {
			page.Weeks = append(page.Weeks, WeekView{Number: w.WeekNumber})
		}
		week := &page.Weeks[len(page.Weeks)-1]

		if n := len(week.Days); n == 0 || week.Days[n-1].Number != w.DayNumber {
			week.Days = append(week.Days, DayView{Number: w.DayNumber})
		}
		day := &week.Days[len(week.Days)-1]
		day.Workouts = append(day.Workouts, w)

		week.Total++
		week.Minutes += w.Duration
		if w.Completed {
			week.Completed++
			page.Completed++
		}
	}

	if page.Total > 0 {
		page.Percent = float64(page.Completed) / float64(page.Total) * 100
	}
	return page
}

type setupPage struct {
	Days           []string
	MinDescription int
}

type errorPage struct {
	Message string
	Back    string
}

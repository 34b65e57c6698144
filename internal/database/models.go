package database

// User is a row of the users table.
type User struct {
	ID          int64  `db:"id"`
	DaysPerWeek string `db:"days_per_week"`
	Description string `db:"description"`
	Goal        string `db:"goal"`
}

// Workout is a row of the plans table.
type Workout struct {
	ID           int64  `db:"id"`
	UserID       int64  `db:"user_id"`
	WeekNumber   int    `db:"week_number"`
	DayNumber    int    `db:"day_number"`
	ActivityType string `db:"activity_type"`
	Duration     int    `db:"duration"`
	Description  string `db:"description"`
	Completed    bool   `db:"completed"`
}

// IsRest reports whether the workout is a rest day.
func (w Workout) IsRest() bool {
	return w.ActivityType == "rest"
}

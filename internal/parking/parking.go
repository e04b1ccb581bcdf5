package parking

import "time"

// TimeLayout is the timezone-naive local instant layout used for session
// start/end times, both on the wire and in the store.
const TimeLayout = "2006-01-02T15:04"

// Session represents one recorded parking interval for a chat.
type Session struct {
	ID           int64     `json:"id"`
	ChatID       int64     `json:"chat_id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	Visitor      string    `json:"visitor"`
	Plate        string    `json:"plate"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Minutes      int       `json:"minutes"`
	DayMinutes   int       `json:"day_minutes"`
	NightMinutes int       `json:"night_minutes"`
	Month        int       `json:"month"`
	Year         int       `json:"year"`
	CreatedAt    time.Time `json:"created_at"`
}

// MonthlyTotal aggregates day/night/total minutes for one (chat, month, year).
// Username is the last submitter seen for the key and is informational only.
type MonthlyTotal struct {
	ChatID       int64  `json:"chat_id"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	TotalMinutes int    `json:"total_minutes"`
	DayMinutes   int    `json:"day_minutes"`
	NightMinutes int    `json:"night_minutes"`
	Username     string `json:"username,omitempty"`
}

package parking

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parkbot/internal/scanning"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Submitter identifies the user who sent a ticket.
type Submitter struct {
	UserID   int64
	Username string
}

// OutcomeKind classifies the result of recording one submission.
type OutcomeKind int

const (
	// OutcomeRecorded means the session was persisted and the monthly total
	// incremented.
	OutcomeRecorded OutcomeKind = iota
	// OutcomeDuplicate means a session for the same (chat, plate, start)
	// already exists; nothing was mutated.
	OutcomeDuplicate
	// OutcomeFailed means the store rejected the operation; nothing is
	// visible from it.
	OutcomeFailed
)

// Outcome is the result of recording one validated extraction.
type Outcome struct {
	Kind    OutcomeKind
	Session *Session      // set when recorded
	Total   *MonthlyTotal // post-update current-month total, set when recorded
	Plate   string        // set for duplicates, for display
	Start   time.Time     // set for duplicates
	Err     error         // set when failed
}

// Service is the session accounting engine: it validates an extraction into
// a session, splits its day/night minutes, guards against duplicates and
// persists through the store's atomic insert+increment.
type Service struct {
	db         DB
	timeSource TimeSource
}

// NewService creates a new Service with the default time source.
func NewService(db DB) *Service {
	return &Service{db: db, timeSource: &defaultTimeSource{}}
}

// NewServiceWithDeps creates a new Service with a custom time source for testing.
func NewServiceWithDeps(db DB, timeSrc TimeSource) *Service {
	return &Service{db: db, timeSource: timeSrc}
}

// RecordSubmission records one successfully extracted parking interval for
// the chat. The extraction must already be tagged OK; rejecting failed
// extractions is the caller's job. Exactly one store mutation happens on a
// recorded outcome, zero otherwise.
func (s *Service) RecordSubmission(chatID int64, submitter Submitter, ex *scanning.Extraction) *Outcome {
	start := ex.Start.Truncate(time.Minute)
	end := ex.End.Truncate(time.Minute)

	exists, err := s.db.HasSession(chatID, ex.Plate, start)
	if err != nil {
		return &Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("checking for duplicate: %w", err)}
	}
	if exists {
		return &Outcome{Kind: OutcomeDuplicate, Plate: ex.Plate, Start: start}
	}

	day, night := SplitDayNight(start, end)

	visitor := ex.Visitor
	if visitor == "" {
		visitor = "Unknown"
	}
	session := &Session{
		ChatID:       chatID,
		UserID:       submitter.UserID,
		Username:     submitter.Username,
		Visitor:      visitor,
		Plate:        ex.Plate,
		StartTime:    start,
		EndTime:      end,
		Minutes:      day + night,
		DayMinutes:   day,
		NightMinutes: night,
		CreatedAt:    s.timeSource.Now(),
	}

	if _, err := s.db.AddSession(session); err != nil {
		// The unique index catches duplicates racing past the check above.
		if errors.Is(err, ErrDuplicateSession) {
			return &Outcome{Kind: OutcomeDuplicate, Plate: ex.Plate, Start: start}
		}
		slog.Error("Failed to record session",
			"chat_id", chatID,
			"plate", ex.Plate,
			"error", err,
		)
		return &Outcome{Kind: OutcomeFailed, Err: err}
	}

	total, err := s.db.CurrentMonthTotal(chatID)
	if err != nil {
		// The session is already recorded; report it without the total
		// rather than failing the submission.
		slog.Warn("Failed to fetch current month total", "chat_id", chatID, "error", err)
		total = nil
	}

	return &Outcome{Kind: OutcomeRecorded, Session: session, Total: total}
}

package parking

import (
	"errors"
	"time"
)

// ErrDuplicateSession is returned by AddSession when a session with the same
// (chat, plate, start time) already exists. The unique index behind it is the
// backstop for races the application-level HasSession check cannot see.
var ErrDuplicateSession = errors.New("duplicate session")

// ErrNothingToReset is returned by the reset operations when there are no
// sessions or totals to delete for the requested scope.
var ErrNothingToReset = errors.New("nothing to reset")

// DB defines the interface for session and totals storage. All operations are
// scoped by chat id; no operation reads or mutates another chat's rows. The
// store exclusively owns both tables: a session insert and its monthly-total
// increment are one atomic operation.
type DB interface {
	// AddSession inserts the session, derives its (month, year) from the
	// start time, and increments (creating if needed) the matching monthly
	// total in the same transaction. Either both happen or neither does.
	AddSession(session *Session) (int64, error)

	// HasSession reports whether a session already exists for the exact
	// (chat, plate, start time) triple.
	HasSession(chatID int64, plate string, start time.Time) (bool, error)

	// CurrentMonthTotal returns the total for the current calendar month,
	// zero-valued when no session has been recorded for it yet.
	CurrentMonthTotal(chatID int64) (*MonthlyTotal, error)

	// MonthlyHistory returns up to limit totals, most recent (year, month)
	// first.
	MonthlyHistory(chatID int64, limit int) ([]*MonthlyTotal, error)

	// CurrentMonthSessions returns the current calendar month's sessions,
	// most recently created first.
	CurrentMonthSessions(chatID int64) ([]*Session, error)

	// AllSessions returns every session for the chat ordered by
	// (year desc, month desc, created desc).
	AllSessions(chatID int64) ([]*Session, error)

	// ResetMonth atomically deletes the current calendar month's sessions
	// and total row, returning the number of sessions removed.
	ResetMonth(chatID int64) (int, error)

	// ResetAll atomically deletes every session and every total for the
	// chat, returning the number of sessions removed.
	ResetAll(chatID int64) (int, error)

	// Close closes the database connection.
	Close() error
}

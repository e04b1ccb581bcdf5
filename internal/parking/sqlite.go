package parking

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteDB implements the DB interface on a single-file SQLite database.
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDB opens (creating if needed) the database at path and applies any
// pending migrations, in order, exactly once.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Writes are serialized through SQL transactions; a single connection
	// avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return &SQLiteDB{db: db, now: time.Now}, nil
}

const sessionColumns = `id, chat_id, user_id, username, visitor, plate,
	start_time, end_time, minutes, day_minutes, night_minutes, month, year, created_at`

// AddSession inserts the session and increments its monthly total in one
// transaction.
func (s *SQLiteDB) AddSession(session *Session) (int64, error) {
	session.StartTime = session.StartTime.Truncate(time.Minute)
	session.EndTime = session.EndTime.Truncate(time.Minute)
	session.Month = int(session.StartTime.Month())
	session.Year = session.StartTime.Year()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO parking_sessions
		(chat_id, user_id, username, visitor, plate, start_time, end_time,
		 minutes, day_minutes, night_minutes, month, year, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ChatID, session.UserID, session.Username, session.Visitor,
		session.Plate, session.StartTime.Format(TimeLayout),
		session.EndTime.Format(TimeLayout), session.Minutes,
		session.DayMinutes, session.NightMinutes, session.Month, session.Year,
		session.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateSession
		}
		return 0, fmt.Errorf("inserting session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading session id: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO monthly_totals
		(chat_id, month, year, total_minutes, day_minutes, night_minutes, username)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, month, year) DO UPDATE SET
			total_minutes = total_minutes + excluded.total_minutes,
			day_minutes = day_minutes + excluded.day_minutes,
			night_minutes = night_minutes + excluded.night_minutes,
			username = excluded.username`,
		session.ChatID, session.Month, session.Year, session.Minutes,
		session.DayMinutes, session.NightMinutes, session.Username)
	if err != nil {
		return 0, fmt.Errorf("incrementing monthly total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing session: %w", err)
	}
	session.ID = id
	return id, nil
}

// HasSession reports whether a session exists for the exact triple.
func (s *SQLiteDB) HasSession(chatID int64, plate string, start time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM parking_sessions
		WHERE chat_id = ? AND plate = ? AND start_time = ?`,
		chatID, plate, start.Truncate(time.Minute).Format(TimeLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking for session: %w", err)
	}
	return n > 0, nil
}

// CurrentMonthTotal returns the wall-clock current month's total, zero-valued
// when no row exists.
func (s *SQLiteDB) CurrentMonthTotal(chatID int64) (*MonthlyTotal, error) {
	now := s.now()
	total := &MonthlyTotal{ChatID: chatID, Month: int(now.Month()), Year: now.Year()}
	err := s.db.QueryRow(`SELECT total_minutes, day_minutes, night_minutes, username
		FROM monthly_totals WHERE chat_id = ? AND month = ? AND year = ?`,
		chatID, total.Month, total.Year).
		Scan(&total.TotalMinutes, &total.DayMinutes, &total.NightMinutes, &total.Username)
	if err == sql.ErrNoRows {
		return total, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying monthly total: %w", err)
	}
	return total, nil
}

// MonthlyHistory returns up to limit totals, most recent (year, month) first.
func (s *SQLiteDB) MonthlyHistory(chatID int64, limit int) ([]*MonthlyTotal, error) {
	if limit <= 0 {
		limit = 12
	}
	rows, err := s.db.Query(`SELECT chat_id, month, year, total_minutes,
		day_minutes, night_minutes, username
		FROM monthly_totals WHERE chat_id = ?
		ORDER BY year DESC, month DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying monthly history: %w", err)
	}
	defer rows.Close()

	totals := make([]*MonthlyTotal, 0)
	for rows.Next() {
		var t MonthlyTotal
		if err := rows.Scan(&t.ChatID, &t.Month, &t.Year, &t.TotalMinutes,
			&t.DayMinutes, &t.NightMinutes, &t.Username); err != nil {
			return nil, fmt.Errorf("scanning monthly total: %w", err)
		}
		totals = append(totals, &t)
	}
	return totals, rows.Err()
}

// CurrentMonthSessions returns the current calendar month's sessions, most
// recently created first.
func (s *SQLiteDB) CurrentMonthSessions(chatID int64) ([]*Session, error) {
	now := s.now()
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM parking_sessions
		WHERE chat_id = ? AND month = ? AND year = ?
		ORDER BY created_at DESC, id DESC`,
		chatID, int(now.Month()), now.Year())
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// AllSessions returns every session for the chat ordered by
// (year desc, month desc, created desc).
func (s *SQLiteDB) AllSessions(chatID int64) ([]*Session, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM parking_sessions
		WHERE chat_id = ?
		ORDER BY year DESC, month DESC, created_at DESC, id DESC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ResetMonth deletes the current calendar month's sessions and total row.
func (s *SQLiteDB) ResetMonth(chatID int64) (int, error) {
	now := s.now()
	month, year := int(now.Month()), now.Year()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM parking_sessions
		WHERE chat_id = ? AND month = ? AND year = ?`, chatID, month, year)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions: %w", err)
	}
	sessions, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted sessions: %w", err)
	}

	res, err = tx.Exec(`DELETE FROM monthly_totals
		WHERE chat_id = ? AND month = ? AND year = ?`, chatID, month, year)
	if err != nil {
		return 0, fmt.Errorf("deleting monthly total: %w", err)
	}
	totals, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted totals: %w", err)
	}

	if sessions == 0 && totals == 0 {
		return 0, ErrNothingToReset
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing reset: %w", err)
	}
	return int(sessions), nil
}

// ResetAll deletes every session and every total for the chat.
func (s *SQLiteDB) ResetAll(chatID int64) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM parking_sessions WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions: %w", err)
	}
	sessions, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted sessions: %w", err)
	}

	res, err = tx.Exec(`DELETE FROM monthly_totals WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("deleting monthly totals: %w", err)
	}
	totals, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted totals: %w", err)
	}

	if sessions == 0 && totals == 0 {
		return 0, ErrNothingToReset
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing reset: %w", err)
	}
	return int(sessions), nil
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func scanSessions(rows *sql.Rows) ([]*Session, error) {
	sessions := make([]*Session, 0)
	for rows.Next() {
		var sess Session
		var start, end, created string
		if err := rows.Scan(&sess.ID, &sess.ChatID, &sess.UserID,
			&sess.Username, &sess.Visitor, &sess.Plate, &start, &end,
			&sess.Minutes, &sess.DayMinutes, &sess.NightMinutes,
			&sess.Month, &sess.Year, &created); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		var err error
		if sess.StartTime, err = time.Parse(TimeLayout, start); err != nil {
			return nil, fmt.Errorf("parsing start time: %w", err)
		}
		if sess.EndTime, err = time.Parse(TimeLayout, end); err != nil {
			return nil, fmt.Errorf("parsing end time: %w", err)
		}
		if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing created time: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package parking

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SQLiteDB", func() {
	var (
		dbPath string
		db     *SQLiteDB
		now    time.Time
	)

	newSession := func(chatID int64, plate, start, end string, day, night int) *Session {
		return &Session{
			ChatID:       chatID,
			UserID:       7,
			Username:     "@resident",
			Visitor:      "John",
			Plate:        plate,
			StartTime:    dt(start + ":00"),
			EndTime:      dt(end + ":00"),
			Minutes:      day + night,
			DayMinutes:   day,
			NightMinutes: night,
		}
	}

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewSQLiteDB(dbPath)
		Expect(err).NotTo(HaveOccurred())

		// Pin the wall clock so "current month" is August 2025.
		now = time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)
		db.now = func() time.Time { return now }
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("AddSession", func() {
		var (
			session *Session
			id      int64
			err     error
		)

		BeforeEach(func() {
			session = newSession(42, "ABC123", "2025-08-23T22:35", "2025-08-24T01:00", 85, 60)
		})

		JustBeforeEach(func() {
			id, err = db.AddSession(session)
		})

		It("should assign an id", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))
			Expect(session.ID).To(Equal(id))
		})

		It("should derive month and year from the start time", func() {
			Expect(session.Month).To(Equal(8))
			Expect(session.Year).To(Equal(2025))
		})

		It("should create the monthly total in the same operation", func() {
			total, terr := db.CurrentMonthTotal(42)
			Expect(terr).NotTo(HaveOccurred())
			Expect(total.TotalMinutes).To(Equal(145))
			Expect(total.DayMinutes).To(Equal(85))
			Expect(total.NightMinutes).To(Equal(60))
			Expect(total.Username).To(Equal("@resident"))
		})

		When("a second session for the month is added", func() {
			JustBeforeEach(func() {
				_, err = db.AddSession(newSession(42, "XYZ789", "2025-08-25T10:00", "2025-08-25T11:00", 60, 0))
			})

			It("should increment the total exactly once", func() {
				Expect(err).NotTo(HaveOccurred())
				total, terr := db.CurrentMonthTotal(42)
				Expect(terr).NotTo(HaveOccurred())
				Expect(total.TotalMinutes).To(Equal(205))
				Expect(total.DayMinutes).To(Equal(145))
				Expect(total.NightMinutes).To(Equal(60))
			})
		})

		When("the same (chat, plate, start) triple is inserted again", func() {
			var dupErr error

			JustBeforeEach(func() {
				_, dupErr = db.AddSession(newSession(42, "ABC123", "2025-08-23T22:35", "2025-08-24T01:00", 85, 60))
			})

			It("should trip the unique index", func() {
				Expect(dupErr).To(MatchError(ErrDuplicateSession))
			})

			It("should leave the total unchanged", func() {
				total, terr := db.CurrentMonthTotal(42)
				Expect(terr).NotTo(HaveOccurred())
				Expect(total.TotalMinutes).To(Equal(145))
			})
		})

		When("the same plate and start belong to a different chat", func() {
			JustBeforeEach(func() {
				_, err = db.AddSession(newSession(99, "ABC123", "2025-08-23T22:35", "2025-08-24T01:00", 85, 60))
			})

			It("should not be a duplicate", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should keep the chats' totals isolated", func() {
				total, terr := db.CurrentMonthTotal(42)
				Expect(terr).NotTo(HaveOccurred())
				Expect(total.TotalMinutes).To(Equal(145))
			})
		})
	})

	Describe("HasSession", func() {
		BeforeEach(func() {
			_, err := db.AddSession(newSession(42, "ABC123", "2025-08-23T22:35", "2025-08-24T01:00", 85, 60))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should find the exact triple", func() {
			found, err := db.HasSession(42, "ABC123", dt("2025-08-23T22:35:00"))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
		})

		It("should not match a different start time", func() {
			found, err := db.HasSession(42, "ABC123", dt("2025-08-23T22:36:00"))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("should not match another chat", func() {
			found, err := db.HasSession(99, "ABC123", dt("2025-08-23T22:35:00"))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	Describe("CurrentMonthTotal", func() {
		It("should return zeros when no session was recorded", func() {
			total, err := db.CurrentMonthTotal(42)
			Expect(err).NotTo(HaveOccurred())
			Expect(total.TotalMinutes).To(BeZero())
			Expect(total.DayMinutes).To(BeZero())
			Expect(total.NightMinutes).To(BeZero())
			Expect(total.Month).To(Equal(8))
			Expect(total.Year).To(Equal(2025))
		})
	})

	Describe("MonthlyHistory", func() {
		BeforeEach(func() {
			for _, s := range []*Session{
				newSession(42, "A1", "2025-07-10T10:00", "2025-07-10T11:00", 60, 0),
				newSession(42, "A2", "2025-08-10T10:00", "2025-08-10T11:00", 60, 0),
				newSession(42, "A3", "2024-12-10T10:00", "2024-12-10T11:00", 60, 0),
				newSession(42, "A4", "2025-01-10T10:00", "2025-01-10T11:00", 60, 0),
			} {
				_, err := db.AddSession(s)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should order by year then month, most recent first", func() {
			totals, err := db.MonthlyHistory(42, 12)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(HaveLen(4))
			Expect(totals[0].Month).To(Equal(8))
			Expect(totals[0].Year).To(Equal(2025))
			Expect(totals[1].Month).To(Equal(7))
			Expect(totals[2].Month).To(Equal(1))
			Expect(totals[3].Month).To(Equal(12))
			Expect(totals[3].Year).To(Equal(2024))
		})

		It("should honor the limit", func() {
			totals, err := db.MonthlyHistory(42, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(HaveLen(2))
		})
	})

	Describe("CurrentMonthSessions", func() {
		BeforeEach(func() {
			older := newSession(42, "A1", "2025-08-10T10:00", "2025-08-10T11:00", 60, 0)
			older.CreatedAt = now.Add(-2 * time.Hour)
			newer := newSession(42, "A2", "2025-08-11T10:00", "2025-08-11T11:00", 60, 0)
			newer.CreatedAt = now.Add(-1 * time.Hour)
			july := newSession(42, "A3", "2025-07-10T10:00", "2025-07-10T11:00", 60, 0)
			for _, s := range []*Session{older, newer, july} {
				_, err := db.AddSession(s)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should return only the current month, newest first", func() {
			sessions, err := db.CurrentMonthSessions(42)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))
			Expect(sessions[0].Plate).To(Equal("A2"))
			Expect(sessions[1].Plate).To(Equal("A1"))
		})

		It("should round-trip the session fields", func() {
			sessions, err := db.CurrentMonthSessions(42)
			Expect(err).NotTo(HaveOccurred())
			s := sessions[1]
			Expect(s.Visitor).To(Equal("John"))
			Expect(s.StartTime).To(Equal(dt("2025-08-10T10:00:00")))
			Expect(s.EndTime).To(Equal(dt("2025-08-10T11:00:00")))
			Expect(s.Minutes).To(Equal(60))
		})
	})

	Describe("ResetMonth", func() {
		When("there is nothing to reset", func() {
			It("should report it distinguishably", func() {
				_, err := db.ResetMonth(42)
				Expect(err).To(MatchError(ErrNothingToReset))
			})
		})

		When("the chat has current and past months", func() {
			BeforeEach(func() {
				for _, s := range []*Session{
					newSession(42, "A1", "2025-08-10T10:00", "2025-08-10T11:00", 60, 0),
					newSession(42, "A2", "2025-08-11T10:00", "2025-08-11T11:00", 60, 0),
					newSession(42, "A3", "2025-07-10T10:00", "2025-07-10T11:00", 60, 0),
				} {
					_, err := db.AddSession(s)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("should delete exactly the current month", func() {
				deleted, err := db.ResetMonth(42)
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(Equal(2))

				total, terr := db.CurrentMonthTotal(42)
				Expect(terr).NotTo(HaveOccurred())
				Expect(total.TotalMinutes).To(BeZero())

				history, herr := db.MonthlyHistory(42, 12)
				Expect(herr).NotTo(HaveOccurred())
				Expect(history).To(HaveLen(1))
				Expect(history[0].Month).To(Equal(7))
			})
		})
	})

	Describe("ResetAll", func() {
		When("there is no history", func() {
			It("should report it distinguishably", func() {
				_, err := db.ResetAll(42)
				Expect(err).To(MatchError(ErrNothingToReset))
			})
		})

		When("the chat has history", func() {
			BeforeEach(func() {
				for _, s := range []*Session{
					newSession(42, "A1", "2025-08-10T10:00", "2025-08-10T11:00", 60, 0),
					newSession(42, "A2", "2025-07-10T10:00", "2025-07-10T11:00", 60, 0),
					newSession(99, "B1", "2025-08-10T10:00", "2025-08-10T11:00", 60, 0),
				} {
					_, err := db.AddSession(s)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("should delete the chat's whole history and nothing else", func() {
				deleted, err := db.ResetAll(42)
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(Equal(2))

				history, herr := db.MonthlyHistory(42, 12)
				Expect(herr).NotTo(HaveOccurred())
				Expect(history).To(BeEmpty())

				otherTotal, oerr := db.CurrentMonthTotal(99)
				Expect(oerr).NotTo(HaveOccurred())
				Expect(otherTotal.TotalMinutes).To(Equal(60))
			})
		})
	})

	Describe("reopening the database", func() {
		BeforeEach(func() {
			_, err := db.AddSession(newSession(42, "ABC123", "2025-08-23T22:35", "2025-08-24T01:00", 85, 60))
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Close()).To(Succeed())

			db, err = NewSQLiteDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			db.now = func() time.Time { return now }
		})

		It("should apply migrations idempotently and keep the data", func() {
			total, err := db.CurrentMonthTotal(42)
			Expect(err).NotTo(HaveOccurred())
			Expect(total.TotalMinutes).To(Equal(145))
		})
	})
})

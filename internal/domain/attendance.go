package domain

import "time"

// AttendanceRecord — одна запись посещения: открывается при входе в класс,
// закрывается ровно один раз при отключении (или при вытеснении старой сессии).
type AttendanceRecord struct {
	ID              int64      `db:"id"`
	ClassroomID     string     `db:"classroom_id"`
	UserID          int64      `db:"user_id"`
	JoinedAt        time.Time  `db:"joined_at"`
	LeftAt          *time.Time `db:"left_at"`
	DurationMinutes int        `db:"duration_minutes"`
	IPAddress       *string    `db:"ip_address"`
}

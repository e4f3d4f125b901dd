package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type AttendanceItem struct {
	ID              int64      `json:"id"`
	ClassroomID     string     `json:"classroom_id"`
	UserID          string     `json:"user_id"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	IPAddress       *string    `json:"ip_address,omitempty"`
}

type AttendanceListResponse struct {
	Items      []AttendanceItem `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	Rooms           int    `json:"rooms"`
	Participants    int    `json:"participants"`
	UnknownMessages int64  `json:"unknown_messages"`
}

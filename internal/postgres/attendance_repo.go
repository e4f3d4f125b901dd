package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aditya9522/mindporium/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AttendanceRepository struct {
	db *pgxpool.Pool
}

func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Open всегда создаёт новую запись (история посещений полностью аудируема,
// записи не переиспользуются даже при повторном входе).
func (r *AttendanceRepository) Open(ctx context.Context, classroomID string, userID int64, joinedAt time.Time, ipAddress *string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO attendances (classroom_id, user_id, joined_at, ip_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, classroomID, userID, joinedAt, ipAddress).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Close закрывает запись ровно один раз: guard по left_at IS NULL делает
// повторный вызов no-op. Длительность считается от сохранённого joined_at,
// отрицательная — обрезается в ноль.
func (r *AttendanceRepository) Close(ctx context.Context, id int64, leftAt time.Time) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE attendances
		SET left_at = $2,
		    duration_minutes = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($2 - joined_at)) / 60))::int
		WHERE id = $1 AND left_at IS NULL
	`, id, leftAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

const listColumns = `id, classroom_id, user_id, joined_at, left_at, duration_minutes, ip_address`

// ListByUser — история посещений пользователя с курсорной пагинацией (joined_at,id DESC).
func (r *AttendanceRepository) ListByUser(ctx context.Context, userID int64, after string, limit int) ([]domain.AttendanceRecord, string, error) {
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + listColumns + `
		FROM attendances
		WHERE user_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR joined_at < $2
		    OR (joined_at = $2 AND id < $3)
		  )
		ORDER BY joined_at DESC, id DESC
		LIMIT $4
	`
	return r.list(ctx, query, userID, cur, limit)
}

// ListByClassroom — все посещения класса, тот же курсор.
func (r *AttendanceRepository) ListByClassroom(ctx context.Context, classroomID string, after string, limit int) ([]domain.AttendanceRecord, string, error) {
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + listColumns + `
		FROM attendances
		WHERE classroom_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR joined_at < $2
		    OR (joined_at = $2 AND id < $3)
		  )
		ORDER BY joined_at DESC, id DESC
		LIMIT $4
	`
	return r.list(ctx, query, classroomID, cur, limit)
}

func (r *AttendanceRepository) list(ctx context.Context, query string, key any, cur *Cursor, limit int) ([]domain.AttendanceRecord, string, error) {
	var joinedAt any
	var id any
	if cur != nil {
		joinedAt = cur.JoinedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, key, joinedAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.AttendanceRecord
	for rows.Next() {
		var rec domain.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.ClassroomID, &rec.UserID, &rec.JoinedAt,
			&rec.LeftAt, &rec.DurationMinutes, &rec.IPAddress); err != nil {
			return nil, "", err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{JoinedAt: last.JoinedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

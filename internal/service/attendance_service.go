package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aditya9522/mindporium/internal/domain"
)

type AttendanceStore interface {
	Open(ctx context.Context, classroomID string, userID int64, joinedAt time.Time, ipAddress *string) (int64, error)
	Close(ctx context.Context, id int64, leftAt time.Time) (closed bool, err error)
	ListByUser(ctx context.Context, userID int64, after string, limit int) ([]domain.AttendanceRecord, string, error)
	ListByClassroom(ctx context.Context, classroomID string, after string, limit int) ([]domain.AttendanceRecord, string, error)
}

// AttendanceService переводит события присутствия (вход/выход из класса)
// в записи посещаемости. Ошибки хранилища не должны ронять realtime-путь:
// доступность relay важнее durability посещаемости.
type AttendanceService struct {
	store AttendanceStore
}

func NewAttendanceService(store AttendanceStore) *AttendanceService {
	return &AttendanceService{store: store}
}

// OpenRecord создаёт новую запись с left_at = NULL. При ошибке хранилища
// возвращает 0: участник всё равно допускается в комнату, запись теряется.
func (s *AttendanceService) OpenRecord(ctx context.Context, classroomID string, userID int64, joinedAt time.Time, origin string) (int64, error) {
	var ip *string
	if origin != "" {
		ip = &origin
	}

	id, err := s.store.Open(ctx, classroomID, userID, joinedAt, ip)
	if err != nil {
		return 0, fmt.Errorf("attendance open: %w", err)
	}
	return id, nil
}

// CloseRecord идемпотентен: повторное закрытие (гонка disconnect/supersession)
// и закрытие нулевого id — no-op.
func (s *AttendanceService) CloseRecord(ctx context.Context, recordID int64, leftAt time.Time) error {
	if recordID == 0 {
		return nil
	}

	closed, err := s.store.Close(ctx, recordID, leftAt)
	if err != nil {
		return fmt.Errorf("attendance close: %w", err)
	}
	if !closed {
		slog.Debug("attendance record already closed", "record_id", recordID)
	}
	return nil
}

func (s *AttendanceService) HistoryByUser(ctx context.Context, userID int64, after string, limit int) ([]domain.AttendanceRecord, string, error) {
	return s.store.ListByUser(ctx, userID, after, clampLimit(limit))
}

func (s *AttendanceService) HistoryByClassroom(ctx context.Context, classroomID string, after string, limit int) ([]domain.AttendanceRecord, string, error) {
	return s.store.ListByClassroom(ctx, classroomID, after, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}

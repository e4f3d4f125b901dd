package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aditya9522/mindporium/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	seq      int64
	openErr  error
	closeErr error

	opened map[int64]time.Time // id -> joined_at
	closed map[int64]time.Time // id -> left_at

	lastIP *string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		opened: make(map[int64]time.Time),
		closed: make(map[int64]time.Time),
	}
}

func (f *fakeStore) Open(_ context.Context, _ string, _ int64, joinedAt time.Time, ip *string) (int64, error) {
	if f.openErr != nil {
		return 0, f.openErr
	}
	f.seq++
	f.opened[f.seq] = joinedAt
	f.lastIP = ip
	return f.seq, nil
}

func (f *fakeStore) Close(_ context.Context, id int64, leftAt time.Time) (bool, error) {
	if f.closeErr != nil {
		return false, f.closeErr
	}
	if _, ok := f.opened[id]; !ok {
		return false, nil
	}
	if _, already := f.closed[id]; already {
		return false, nil
	}
	f.closed[id] = leftAt
	return true, nil
}

func (f *fakeStore) ListByUser(context.Context, int64, string, int) ([]domain.AttendanceRecord, string, error) {
	return nil, "", nil
}

func (f *fakeStore) ListByClassroom(context.Context, string, string, int) ([]domain.AttendanceRecord, string, error) {
	return nil, "", nil
}

func TestAttendanceService_OpenAndClose(t *testing.T) {
	store := newFakeStore()
	svc := NewAttendanceService(store)
	ctx := context.Background()

	joinedAt := time.Now()
	id, err := svc.OpenRecord(ctx, "R1", 42, joinedAt, "10.0.0.5")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	require.NotNil(t, store.lastIP)
	assert.Equal(t, "10.0.0.5", *store.lastIP)

	leftAt := joinedAt.Add(42 * time.Minute)
	require.NoError(t, svc.CloseRecord(ctx, id, leftAt))
	assert.Equal(t, leftAt, store.closed[id])
}

func TestAttendanceService_EmptyOriginIsNull(t *testing.T) {
	store := newFakeStore()
	svc := NewAttendanceService(store)

	_, err := svc.OpenRecord(context.Background(), "R1", 42, time.Now(), "")
	require.NoError(t, err)
	assert.Nil(t, store.lastIP)
}

func TestAttendanceService_CloseIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewAttendanceService(store)
	ctx := context.Background()

	id, err := svc.OpenRecord(ctx, "R1", 42, time.Now(), "")
	require.NoError(t, err)

	first := time.Now()
	require.NoError(t, svc.CloseRecord(ctx, id, first))
	// второй триггер (гонка disconnect/supersession) — no-op, не ошибка
	require.NoError(t, svc.CloseRecord(ctx, id, first.Add(time.Minute)))
	assert.Equal(t, first, store.closed[id], "first close wins")
}

func TestAttendanceService_CloseZeroIDIsNoop(t *testing.T) {
	store := newFakeStore()
	store.closeErr = errors.New("store must not be called")
	svc := NewAttendanceService(store)

	assert.NoError(t, svc.CloseRecord(context.Background(), 0, time.Now()))
}

func TestAttendanceService_OpenFailureSurfaced(t *testing.T) {
	store := newFakeStore()
	store.openErr = errors.New("connection refused")
	svc := NewAttendanceService(store)

	id, err := svc.OpenRecord(context.Background(), "R1", 42, time.Now(), "")
	require.Error(t, err)
	assert.Zero(t, id)
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aditya9522/mindporium/internal/domain"
	"github.com/aditya9522/mindporium/internal/service"
	"github.com/aditya9522/mindporium/internal/transport/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records []domain.AttendanceRecord
}

func (f *fakeStore) Open(context.Context, string, int64, time.Time, *string) (int64, error) {
	return 1, nil
}

func (f *fakeStore) Close(context.Context, int64, time.Time) (bool, error) {
	return true, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID int64, _ string, _ int) ([]domain.AttendanceRecord, string, error) {
	var out []domain.AttendanceRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, "", nil
}

func (f *fakeStore) ListByClassroom(_ context.Context, classroomID string, _ string, _ int) ([]domain.AttendanceRecord, string, error) {
	var out []domain.AttendanceRecord
	for _, r := range f.records {
		if r.ClassroomID == classroomID {
			out = append(out, r)
		}
	}
	return out, "", nil
}

func newTestRouter(store *fakeStore) http.Handler {
	registry := ws.NewRegistry()
	router := ws.NewRouter(registry)
	svc := service.NewAttendanceService(store)
	wsServer := ws.NewServer(registry, router, svc, nil, 0, 0)

	h := NewHandler(svc, ws.Monitor{Registry: registry, Router: router})
	return NewRouter(h, nil, wsServer)
}

func TestHandler_MyAttendance(t *testing.T) {
	left := time.Now()
	store := &fakeStore{records: []domain.AttendanceRecord{
		{ID: 1, ClassroomID: "R1", UserID: 42, JoinedAt: left.Add(-30 * time.Minute), LeftAt: &left, DurationMinutes: 30},
		{ID: 2, ClassroomID: "R2", UserID: 7, JoinedAt: left},
	}}
	srv := httptest.NewServer(newTestRouter(store))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/attendance/me", nil)
	req.Header.Set("Authorization", "Bearer dev")
	req.Header.Set("X-User-ID", "42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body AttendanceListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "42", body.Items[0].UserID)
	assert.Equal(t, 30, body.Items[0].DurationMinutes)
}

func TestHandler_MyAttendance_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&fakeStore{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/attendance/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_ClassroomAttendance(t *testing.T) {
	store := &fakeStore{records: []domain.AttendanceRecord{
		{ID: 1, ClassroomID: "R1", UserID: 42, JoinedAt: time.Now()},
		{ID: 2, ClassroomID: "R1", UserID: 7, JoinedAt: time.Now()},
		{ID: 3, ClassroomID: "R2", UserID: 7, JoinedAt: time.Now()},
	}}
	srv := httptest.NewServer(newTestRouter(store))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/attendance/classroom/R1", nil)
	req.Header.Set("Authorization", "Bearer dev")
	req.Header.Set("X-User-ID", "1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body AttendanceListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Items, 2)
}

func TestHandler_Health(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&fakeStore{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Zero(t, body.Rooms)
}

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aditya9522/mindporium/internal/domain"
	"github.com/aditya9522/mindporium/internal/postgres"
	"github.com/aditya9522/mindporium/internal/service"
	httpmw "github.com/aditya9522/mindporium/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

// RelayStats — счётчики realtime-слоя для healthz.
type RelayStats interface {
	Stats() (rooms, participants int)
	UnknownMessages() int64
}

type Handler struct {
	attendanceSvc *service.AttendanceService
	stats         RelayStats
}

func NewHandler(attendance *service.AttendanceService, stats RelayStats) *Handler {
	return &Handler{
		attendanceSvc: attendance,
		stats:         stats,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /attendance/me?limit=&cursor=
func (h *Handler) MyAttendance(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	items, next, err := h.attendanceSvc.HistoryByUser(r.Context(), userID,
		r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.MyAttendance:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(items, next))
}

// GET /attendance/classroom/{id}?limit=&cursor=
func (h *Handler) ClassroomAttendance(w http.ResponseWriter, r *http.Request) {
	classroomID := chi.URLParam(r, "id")

	items, next, err := h.attendanceSvc.HistoryByClassroom(r.Context(), classroomID,
		r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ClassroomAttendance:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(items, next))
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rooms, participants := h.stats.Stats()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		Rooms:           rooms,
		Participants:    participants,
		UnknownMessages: h.stats.UnknownMessages(),
	})
}

func toListResponse(items []domain.AttendanceRecord, next string) AttendanceListResponse {
	resp := AttendanceListResponse{Items: make([]AttendanceItem, 0, len(items)), NextCursor: next}
	for _, rec := range items {
		resp.Items = append(resp.Items, AttendanceItem{
			ID:              rec.ID,
			ClassroomID:     rec.ClassroomID,
			UserID:          strconv.FormatInt(rec.UserID, 10),
			JoinedAt:        rec.JoinedAt,
			LeftAt:          rec.LeftAt,
			DurationMinutes: rec.DurationMinutes,
			IPAddress:       rec.IPAddress,
		})
	}
	return resp
}

func queryInt(r *http.Request, name string) int {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

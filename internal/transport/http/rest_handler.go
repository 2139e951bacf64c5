package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/gorilla/mux"
)

// RESTHandler serves grouping results and live-room bookkeeping.
type RESTHandler struct {
	grouping *app.GroupingService
	live     *app.LiveService
	logger   *slog.Logger
}

func NewRESTHandler(grouping *app.GroupingService, live *app.LiveService) *RESTHandler {
	return &RESTHandler{
		grouping: grouping,
		live:     live,
		logger:   slog.Default().With("component", "rest"),
	}
}

func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/quizzes/{id}/groups", h.GetGroups).Methods("GET")
	router.HandleFunc("/quizzes/{id}/live", h.CreateLiveRoom).Methods("POST")
	router.HandleFunc("/rooms/{code}", h.GetRoom).Methods("GET")
}

// GetGroups always answers 200 with an error field, even when grouping fails;
// only malformed query values are rejected with 400.
func (h *RESTHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["id"]
	q := r.URL.Query()

	req := app.GroupRequest{Category: q.Get("category")}
	if raw := q.Get("groupSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			h.writeErrorResponse(w, http.StatusBadRequest, "groupSize must be an integer")
			return
		}
		req.GroupSize = size
	}
	if raw := q.Get("forceRegenerate"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeErrorResponse(w, http.StatusBadRequest, "forceRegenerate must be a boolean")
			return
		}
		req.ForceRegenerate = force
	}

	result, err := h.grouping.Groups(r.Context(), quizID, req)
	if err != nil {
		h.logger.Error("grouping failed", "quiz", quizID, "error", err)
		result.Error = app.MsgGroupingFailed
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

func (h *RESTHandler) CreateLiveRoom(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["id"]
	ticket, err := h.live.CreateRoom(r.Context(), quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		h.writeErrorResponse(w, http.StatusNotFound, app.MsgQuizNotFound)
		return
	}
	if err != nil {
		h.logger.Error("create room failed", "quiz", quizID, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to create room")
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, ticket)
}

// GetRoom returns the reconciled room state for a client reloading the page.
func (h *RESTHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := h.live.Reconcile(r.Context(), mux.Vars(r)["code"])
	if errors.Is(err, domain.ErrInvalidRoomCode) {
		h.writeErrorResponse(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		h.logger.Error("reconcile failed", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to load room")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newRoomState(snap))
}

func (h *RESTHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *RESTHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

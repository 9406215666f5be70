// Package transport exposes the broker over REST and WebSocket. Both
// carry the same snapshot/update payloads; neither holds state.
package transport

import (
	"bufio"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"room-relay/contract"
	"room-relay/domain"
	"room-relay/errors"
	"room-relay/observability"
	"room-relay/projection"
)

type API struct {
	log      *slog.Logger
	broker   contract.IBroker
	monitor  *observability.Monitor
	timeline *projection.Timeline
	validate *validator.Validate
}

func NewAPI(log *slog.Logger, broker contract.IBroker, monitor *observability.Monitor, timeline *projection.Timeline) *API {
	return &API{
		log:      log,
		broker:   broker,
		monitor:  monitor,
		timeline: timeline,
		validate: validator.New(),
	}
}

// Router wires the REST surface. The WebSocket gate registers its own
// path on the returned router.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.logRequests)
	r.HandleFunc("/api/rooms", a.listRooms).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", a.createRoom).Methods(http.MethodPost)
	r.HandleFunc("/api/rooms/{id}", a.updateRoom).Methods(http.MethodPut)
	r.HandleFunc("/api/rooms/{id}", a.deleteRoom).Methods(http.MethodDelete)
	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", a.stats).Methods(http.MethodGet)
	return r
}

// roomPayload is the REST body for room creation and replacement.
type roomPayload struct {
	ID       string           `json:"id" validate:"required"`
	Name     string           `json:"name" validate:"required"`
	Messages []domain.Message `json:"messages"`
}

func (p roomPayload) toRoom() domain.Room {
	messages := p.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	return domain.Room{ID: domain.RoomID(p.ID), Name: p.Name, Messages: messages}
}

func (a *API) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.broker.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch rooms")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	payload, ok := a.decodeRoom(w, r)
	if !ok {
		return
	}
	cmd := domain.UpsertRoomCommand{Room: payload.toRoom(), Reply: make(chan error, 1)}
	if err := a.broker.Do(r.Context(), cmd); err != nil {
		a.log.Error("Creating room failed", "id", payload.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create room")
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (a *API) updateRoom(w http.ResponseWriter, r *http.Request) {
	payload, ok := a.decodeRoom(w, r)
	if !ok {
		return
	}
	// The path id wins over whatever the body claims
	payload.ID = mux.Vars(r)["id"]

	cmd := domain.ReplaceRoomCommand{Room: payload.toRoom(), Reply: make(chan error, 1)}
	err := a.broker.Do(r.Context(), cmd)
	switch {
	case goerrors.Is(err, errors.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "Room not found")
	case goerrors.Is(err, errors.ErrPersistFailed):
		// Durability is best-effort; the in-memory mutation succeeded
		a.log.Error("Updating room persisted nothing", "id", payload.ID, "error", err)
		writeJSON(w, http.StatusOK, payload)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to update room")
	default:
		writeJSON(w, http.StatusOK, payload)
	}
}

func (a *API) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cmd := domain.DeleteRoomCommand{Room: domain.RoomID(id), Reply: make(chan error, 1)}
	err := a.broker.Do(r.Context(), cmd)
	switch {
	case goerrors.Is(err, errors.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "Room not found")
	case goerrors.Is(err, errors.ErrProtectedRoom):
		writeError(w, http.StatusForbidden, "Room is protected")
	case goerrors.Is(err, errors.ErrPersistFailed):
		a.log.Error("Deleting room persisted nothing", "id", id, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Room deleted successfully"})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to delete room")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Room deleted successfully"})
	}
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"process":  a.monitor.Snapshot(),
		"timeline": a.timeline.Recent(),
	})
}

func (a *API) decodeRoom(w http.ResponseWriter, r *http.Request) (roomPayload, bool) {
	var payload roomPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.monitor.IncrParseErrors()
		writeError(w, http.StatusBadRequest, "Malformed JSON body")
		return roomPayload{}, false
	}
	if err := a.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, "Room requires id and name")
		return roomPayload{}, false
	}
	return payload, true
}

// logRequests records method, url and status for every call.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)
		a.log.Info("handled", "method", r.Method, "url", r.URL.String(), "status", recorder.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

// Hijack keeps WebSocket upgrades working behind the log middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/task-tracker/models"
	"github.com/CrowderSoup/task-tracker/services"
)

// GoalHandler serves the goals page and the goal select options.
type GoalHandler struct {
	goals *services.GoalService
	hub   *services.Hub
}

func NewGoalHandler(goals *services.GoalService, hub *services.Hub) *GoalHandler {
	return &GoalHandler{goals: goals, hub: hub}
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goals.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Options(w http.ResponseWriter, r *http.Request) {
	options, err := h.goals.Options(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (h *GoalHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.goals.Progress(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	goal, err := h.goals.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.changed(r, goal.ID)
	writeJSON(w, http.StatusCreated, goal)
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.GoalPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	id := mux.Vars(r)["id"]
	goal, err := h.goals.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	h.changed(r, id)
	writeJSON(w, http.StatusOK, goal)
}

// Delete removes a goal. Tasks that referenced it keep existing and are
// reported as changed too.
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.goals.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.changed(r, id)
	h.hub.Broadcast(services.EventTasksChanged, map[string]string{"goalId": id}, r.Header.Get(ClientIDHeader))
	w.WriteHeader(http.StatusNoContent)
}

func (h *GoalHandler) changed(r *http.Request, id string) {
	h.hub.Broadcast(services.EventGoalsChanged, map[string]string{"id": id}, r.Header.Get(ClientIDHeader))
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/task-tracker/filters"
	"github.com/CrowderSoup/task-tracker/models"
	"github.com/CrowderSoup/task-tracker/services"
)

// ClientIDHeader carries the websocket client id of the tab issuing a write,
// so the tab is not notified of its own change.
const ClientIDHeader = "X-Client-ID"

// TaskHandler serves the tasks page.
type TaskHandler struct {
	tasks *services.TaskService
	view  *filters.TasksView
	hub   *services.Hub
}

func NewTaskHandler(tasks *services.TaskService, view *filters.TasksView, hub *services.Hub) *TaskHandler {
	return &TaskHandler{tasks: tasks, view: view, hub: hub}
}

type tasksResponse struct {
	filters.Snapshot
	// WriteQuery is set when the tab must rewrite its URL.
	WriteQuery *string `json:"writeQuery,omitempty"`
}

// List applies the request's query string as the filter state and returns
// the matching rows.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.view.Navigate(r.Context(), r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasksResponse{Snapshot: snap})
}

// SetFilters replaces the filter state from the filter controls.
func (h *TaskHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	f := models.DefaultFilters()
	if err := decodeJSON(r, &f); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	next, snap, err := h.view.SetFilters(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := tasksResponse{Snapshot: snap}
	if next != nil {
		q := next.Encode()
		resp.WriteQuery = &q
		h.hub.Broadcast(services.EventFilters, map[string]string{"query": q}, r.Header.Get(ClientIDHeader))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.TaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	task, err := h.tasks.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.changed(r, task.ID)
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	id := mux.Vars(r)["id"]
	task, err := h.tasks.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	h.changed(r, id)
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.tasks.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.changed(r, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) changed(r *http.Request, id string) {
	h.hub.Broadcast(services.EventTasksChanged, map[string]string{"id": id}, r.Header.Get(ClientIDHeader))
}

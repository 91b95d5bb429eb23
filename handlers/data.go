package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/models"
	"github.com/CrowderSoup/task-tracker/services"
	"github.com/CrowderSoup/task-tracker/stats"
)

// DataHandler serves the read-mostly endpoints: dashboard, export and the
// websocket event stream.
type DataHandler struct {
	tasks    *services.TaskService
	goals    *services.GoalService
	exporter *services.ExportService
	hub      *services.Hub
	upgrader websocket.Upgrader
}

func NewDataHandler(tasks *services.TaskService, goals *services.GoalService, exporter *services.ExportService, hub *services.Hub, checkOrigin func(*http.Request) bool) *DataHandler {
	return &DataHandler{
		tasks:    tasks,
		goals:    goals,
		exporter: exporter,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Dashboard computes the aggregates over every task of the user.
func (h *DataHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context(), models.DefaultFilters())
	if err != nil {
		writeError(w, err)
		return
	}

	options, err := h.goals.Options(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats.Compute(tasks, options, h.tasks.Today()))
}

// Export downloads all tasks and goals as a JSON file.
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := h.exporter.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("tasks-export-%s.json", export.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, export)
}

// HandleWebSocket upgrades the connection and streams events to the tab.
func (h *DataHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("error upgrading to websocket")
		return
	}

	client := services.NewClient(h.hub, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

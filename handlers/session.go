package handlers

import (
	"sync"

	"github.com/CrowderSoup/task-tracker/filters"
	"github.com/CrowderSoup/task-tracker/services"
	"github.com/CrowderSoup/task-tracker/session"
)

// WatchSession pushes every session change to connected clients and resets
// the tasks view whenever the signed-in user changes, sign-out included.
func WatchSession(sessions *session.Store, view *filters.TasksView, hub *services.Hub) (cancel func()) {
	var mu sync.Mutex
	last := userOf(sessions.Current())

	return sessions.Watch(func(state session.State) {
		user := userOf(state)

		mu.Lock()
		switched := user != last
		last = user
		mu.Unlock()

		if switched {
			view.Reset()
		}
		hub.Broadcast(services.EventSession, state, "")
	})
}

func userOf(state session.State) string {
	if !state.Authenticated() {
		return ""
	}
	return state.Session.User.ID
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"melodeck/src/player"
)

// InitRouter attaches all API routes to the specified router.
func InitRouter(r chi.Router, pl *player.Player) {
	api := API{player: pl}
	r.Route("/player", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Get("/status", api.status)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", api.queueContents)
			r.Put("/", api.queueAdd)
			r.Delete("/", api.queueRemove)
			r.Post("/now", api.queuePlayNow)
			r.Post("/playlist", api.queuePlayPlaylist)
			r.Post("/clear", api.queueClear)
		})

		r.Post("/current", api.setCurrent)
		r.Post("/next", api.next)
		r.Post("/prev", api.prev)
		r.Post("/playstate", api.togglePlay)
		r.Post("/stop", api.stop)
		r.Get("/time", api.getTime)
		r.Post("/time", api.setTime)
		r.Get("/volume", api.getVolume)
		r.Post("/volume", api.setVolume)
		r.Get("/mode", api.getMode)
		r.Post("/mode", api.setMode)
		r.Get("/quality", api.getQuality)
		r.Post("/quality", api.setQuality)

		r.Get("/events", api.events)
	})
}

// WriteError writes an error to the client as a JSON object.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("Error serving %s: %v", r.RemoteAddr, err)
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"melodeck/src/handler/api"
	"melodeck/src/player"
	"melodeck/src/util"
)

// New builds the HTTP service exposing the player API.
func New(version string, pl *player.Player) chi.Router {
	service := chi.NewRouter()
	service.Use(util.LogHandler)
	service.Use(middleware.Recoverer)

	service.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version": "` + version + `"}`))
	})
	service.Route("/data", func(r chi.Router) {
		api.InitRouter(r, pl)
	})

	return service
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"melodeck/src/library"
	"melodeck/src/player"
	"melodeck/src/settings"
	"melodeck/src/util/eventsource"
)

// API contains the state that is accessible over the REST API.
type API struct {
	player *player.Player
}

func jsonStatus(status player.Status) map[string]interface{} {
	return map[string]interface{}{
		"currentTrack": status.State.CurrentTrack,
		"playlist":     status.State.Playlist,
		"currentIndex": status.State.CurrentIndex,
		"playMode":     status.State.PlayMode,
		"volume":       status.State.Volume,
		"lyric":        status.State.Lyric,
		"playing":      status.Playing,
		"loading":      status.Loading,
		"time":         int(status.Position / time.Second),
		"duration":     int(status.Duration / time.Second),
		"error":        status.Err,
	}
}

func (api *API) status(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(jsonStatus(api.player.Status()))
}

func (api *API) queueContents(w http.ResponseWriter, r *http.Request) {
	state := api.player.Store().State()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"playlist":     state.Playlist,
		"currentIndex": state.CurrentIndex,
	})
}

func (api *API) queuePlayNow(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Track library.Track `json:"track"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}
	if data.Track.Mid == "" {
		WriteError(w, r, fmt.Errorf("track without a mid"))
		return
	}

	if err := api.player.PlayNow(r.Context(), data.Track); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) queuePlayPlaylist(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Tracks []library.Track `json:"tracks"`
		Start  int             `json:"start"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.player.PlayPlaylist(r.Context(), data.Tracks, data.Start); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) queueAdd(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Tracks []library.Track `json:"tracks"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.player.AddToQueue(r.Context(), data.Tracks); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) queueRemove(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		WriteError(w, r, fmt.Errorf("invalid index: %v", err))
		return
	}
	if err := api.player.RemoveFromQueue(index); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) queueClear(w http.ResponseWriter, r *http.Request) {
	api.player.ClearQueue()
	w.Write([]byte("{}"))
}

func (api *API) setCurrent(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Current int `json:"current"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.player.PlayAtIndex(r.Context(), data.Current); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) next(w http.ResponseWriter, r *http.Request) {
	if err := api.player.Next(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) prev(w http.ResponseWriter, r *http.Request) {
	if err := api.player.Prev(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) togglePlay(w http.ResponseWriter, r *http.Request) {
	if err := api.player.TogglePlay(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) stop(w http.ResponseWriter, r *http.Request) {
	api.player.Stop()
	w.Write([]byte("{}"))
}

func (api *API) getTime(w http.ResponseWriter, r *http.Request) {
	status := api.player.Status()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"time":     int(status.Position / time.Second),
		"duration": int(status.Duration / time.Second),
	})
}

func (api *API) setTime(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Time int `json:"time"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.player.Seek(time.Duration(data.Time) * time.Second); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) getVolume(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"volume": api.player.Store().State().Volume,
	})
}

func (api *API) setVolume(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Volume float64 `json:"volume"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.player.SetVolume(data.Volume)
	w.Write([]byte("{}"))
}

func (api *API) getMode(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mode": api.player.Store().State().PlayMode,
	})
}

func (api *API) setMode(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Mode  string `json:"mode"`
		Cycle bool   `json:"cycle"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	var mode player.PlayMode
	if data.Cycle {
		mode = api.player.CyclePlayMode()
	} else {
		mode = player.NamedPlayMode(data.Mode)
		api.player.SetPlayMode(mode)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mode": mode,
	})
}

func (api *API) getQuality(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"quality": api.player.PreferredQuality(),
	})
}

func (api *API) setQuality(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Quality string `json:"quality"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	quality := settings.NamedQuality(data.Quality)
	api.player.SetPreferredQuality(quality)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"quality": quality,
	})
}

func (api *API) events(w http.ResponseWriter, r *http.Request) {
	es, err := eventsource.Begin(w, r)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	listener := api.player.Listen(r.Context())

	// The initial state lets clients render without a second round trip.
	es.EventJSON("state", jsonStatus(api.player.Status()))

	for event := range listener {
		switch t := event.(type) {
		case player.StateEvent:
			es.EventJSON("state", jsonStatus(api.player.Status()))
		case player.TimeEvent:
			es.EventJSON("time", map[string]interface{}{
				"time":     int(t.Position / time.Second),
				"duration": int(t.Duration / time.Second),
				"playing":  t.Playing,
			})
		case player.ErrorEvent:
			es.EventJSON("error", map[string]interface{}{
				"message": t.Message,
			})
		default:
			log.Debugf("Unmapped event %#v", event)
		}
	}
}

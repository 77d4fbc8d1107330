package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/globe"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/httputil"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/selection"
)

// maxPointerBody bounds a pointer event request body.
const maxPointerBody = 16 << 10

// Globe is the scene the HTTP surface reads and drives.
type Globe interface {
	Ready() bool
	Scene() globe.SceneMessage
	Card() selection.Card
	CloseCard() error
	Pointer(in globe.PointerInput) error
	Satellite(id int) (globe.SatelliteView, bool)
}

var _ Globe = (*globe.Globe)(nil)

// sceneHandler serves GET /api/v1/scene.
func sceneHandler(g Globe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		httputil.WriteJSON(w, http.StatusOK, g.Scene())
	}
}

// selectionHandler serves GET /api/v1/selection.
func selectionHandler(g Globe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		httputil.WriteJSON(w, http.StatusOK, g.Card())
	}
}

// closeSelectionHandler serves DELETE /api/v1/selection, the card's close button.
func closeSelectionHandler(logger *slog.Logger, g Globe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.CloseCard(); err != nil {
			logger.Warn("close selection rejected", "error", err)
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

// pointerHandler serves POST /api/v1/pointer.
func pointerHandler(logger *slog.Logger, g Globe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in globe.PointerInput
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPointerBody))
		if err := dec.Decode(&in); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if err := g.Pointer(in); err != nil {
			if errors.Is(err, globe.ErrStopped) {
				logger.Warn("pointer event rejected", "error", err)
				httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

// satelliteHandler serves GET /api/v1/satellites/{norad_id}.
func satelliteHandler(g Globe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("norad_id"))
		if err != nil || id <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid norad_id")
			return
		}
		v, ok := g.Satellite(id)
		if !ok {
			httputil.WriteError(w, http.StatusNotFound, "satellite not tracked")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, v)
	}
}

package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/logctx"
	"github.com/schell/privateer/internal/transmission"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}

// respondError maps engine error types to distinct kinds so the frontend can
// tell "fix connectivity" apart from "configure a directory" apart from
// "wait for the download".
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	logctx.LoggerFromContext(r.Context()).Error("request failed", "err", err)

	var (
		connErr     *transmission.ConnectionError
		rpcErr      *transmission.RPCError
		persistErr  *ledger.PersistenceError
		settingsErr *config.SettingsError
	)

	switch {
	case errors.As(err, &connErr):
		respondErrorKind(w, r, http.StatusBadGateway, "transmission_connection", connErr.Error())
	case errors.As(err, &rpcErr):
		respondErrorKind(w, r, http.StatusBadGateway, "transmission_rpc", rpcErr.Error())
	case errors.As(err, &persistErr):
		respondErrorKind(w, r, http.StatusInternalServerError, "persistence", persistErr.Error())
	case errors.As(err, &settingsErr):
		respondErrorKind(w, r, http.StatusInternalServerError, "persistence", settingsErr.Error())
	default:
		respondErrorKind(w, r, http.StatusInternalServerError, "internal", err.Error())
	}
}

func respondErrorKind(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	respondJSON(w, r, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

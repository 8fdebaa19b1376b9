// Package rest exposes the engine's commands to the frontend: listing
// torrents with their tracked state, assigning destinations, editing
// settings, and testing daemon connectivity.
package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/transmission"
)

// DaemonClient is the slice of the transmission client the handler needs.
type DaemonClient interface {
	FetchTorrents(ctx context.Context) ([]transmission.Torrent, error)
	TestConnection(ctx context.Context) (string, error)
}

// Waker pokes the scheduler loop so a newly assigned download is picked up
// without waiting for the next timed cycle.
type Waker interface {
	Wake()
}

// ConnectFunc builds a daemon client from the current settings.
type ConnectFunc func(config.TransmissionSettings) (DaemonClient, error)

// Connect is the production ConnectFunc.
func Connect(ts config.TransmissionSettings) (DaemonClient, error) {
	return transmission.New(ts)
}

type Handler struct {
	username string
	password string
	settings *config.SettingsStore
	ledger   *ledger.Store
	waker    Waker
	connect  ConnectFunc
}

func NewHandler(username, password string, settings *config.SettingsStore, ledgerStore *ledger.Store, waker Waker, connect ConnectFunc) *Handler {
	return &Handler{
		username: username,
		password: password,
		settings: settings,
		ledger:   ledgerStore,
		waker:    waker,
		connect:  connect,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	if h.username != "" || h.password != "" {
		r.Use(h.basicAuthMiddleware)
	}

	r.Get("/api/torrents", h.HandleTorrents)
	r.Get("/api/downloads", h.HandleListDownloads)
	r.Post("/api/downloads", h.HandleAddDownload)
	r.Get("/api/settings", h.HandleGetSettings)
	r.Put("/api/settings", h.HandleSetSettings)
	r.Get("/api/connection/test", h.HandleTestConnection)

	return r
}

// TorrentView is a live torrent annotated with its tracked state for the
// frontend table.
type TorrentView struct {
	ID           int64               `json:"id"`
	Hash         string              `json:"hashString"`
	Name         string              `json:"name"`
	Status       string              `json:"status"`
	PercentDone  float64             `json:"percentDone"`
	SizeWhenDone int64               `json:"sizeWhenDone"`
	Size         string              `json:"size"`
	Destination  *ledger.Destination `json:"destination"`
	CopyState    ledger.CopyState    `json:"copyState"`
}

// HandleTorrents returns live daemon status merged with the ledger.
func (h *Handler) HandleTorrents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings := h.settings.Load(ctx)

	client, err := h.connect(settings.Transmission)
	if err != nil {
		respondError(w, r, err)

		return
	}

	live, err := client.FetchTorrents(ctx)
	if err != nil {
		respondError(w, r, err)

		return
	}

	entries := h.ledger.Load(ctx)

	views := make([]TorrentView, 0, len(live))

	for _, t := range live {
		view := TorrentView{
			ID:           t.ID,
			Hash:         t.Hash,
			Name:         t.Name,
			Status:       t.Status.String(),
			PercentDone:  t.PercentDone,
			SizeWhenDone: t.SizeWhenDone,
			Size:         humanize.Bytes(uint64(t.SizeWhenDone)),
			CopyState:    ledger.StateNotCopied,
		}

		if i, ok := ledger.Find(entries, t.Hash); ok {
			dest := entries[i].Destination
			view.Destination = &dest
			view.CopyState = entries[i].CopyState
		}

		views = append(views, view)
	}

	respondJSON(w, r, http.StatusOK, views)
}

// HandleListDownloads returns the raw ledger.
func (h *Handler) HandleListDownloads(w http.ResponseWriter, r *http.Request) {
	entries := h.ledger.Load(r.Context())
	if entries == nil {
		entries = []ledger.Entry{}
	}

	respondJSON(w, r, http.StatusOK, entries)
}

type addDownloadRequest struct {
	Hash        string             `json:"hash"`
	Name        string             `json:"name"`
	Destination ledger.Destination `json:"destination"`
}

// HandleAddDownload tracks a download (or re-assigns its destination) and
// wakes the scheduler so the copy happens without waiting for the next tick.
func (h *Handler) HandleAddDownload(w http.ResponseWriter, r *http.Request) {
	var req addDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorKind(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")

		return
	}

	if req.Hash == "" || req.Name == "" {
		respondErrorKind(w, r, http.StatusBadRequest, "invalid_request", "hash and name are required")

		return
	}

	if !req.Destination.Valid() {
		respondErrorKind(w, r, http.StatusBadRequest, "invalid_request", "destination must be movies or shows")

		return
	}

	if err := h.ledger.Assign(r.Context(), req.Hash, req.Name, req.Destination); err != nil {
		respondError(w, r, err)

		return
	}

	h.waker.Wake()

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.settings.Load(r.Context()))
}

func (h *Handler) HandleSetSettings(w http.ResponseWriter, r *http.Request) {
	var settings config.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondErrorKind(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")

		return
	}

	if err := h.settings.Save(r.Context(), settings); err != nil {
		respondError(w, r, err)

		return
	}

	h.waker.Wake()

	w.WriteHeader(http.StatusNoContent)
}

type connectionTestResponse struct {
	Version string `json:"version"`
}

// HandleTestConnection round-trips a session-get and reports the daemon
// version.
func (h *Handler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	settings := h.settings.Load(r.Context())

	client, err := h.connect(settings.Transmission)
	if err != nil {
		respondError(w, r, err)

		return
	}

	version, err := client.TestConnection(r.Context())
	if err != nil {
		respondError(w, r, err)

		return
	}

	respondJSON(w, r, http.StatusOK, connectionTestResponse{Version: version})
}

func (h *Handler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)

			return
		}

		if username != h.username || password != h.password {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

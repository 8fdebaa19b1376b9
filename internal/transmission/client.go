// Package transmission is a minimal client for the Transmission daemon's
// JSON-RPC interface, fetching the fixed set of torrent fields the engine
// needs.
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/logctx"
)

const (
	rpcPath         = "/transmission/rpc"
	sessionHeader   = "X-Transmission-Session-Id"
	requestTimeout  = 10 * time.Second
	resultSuccess   = "success"
	maxErrorBodyLen = 512
)

// Status is Transmission's numeric torrent state.
type Status int

const (
	StatusStopped Status = iota
	StatusQueuedVerify
	StatusVerifying
	StatusQueuedDownload
	StatusDownloading
	StatusQueuedSeed
	StatusSeeding
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusQueuedVerify:
		return "queued-verify"
	case StatusVerifying:
		return "verifying"
	case StatusQueuedDownload:
		return "queued-download"
	case StatusDownloading:
		return "downloading"
	case StatusQueuedSeed:
		return "queued-seed"
	case StatusSeeding:
		return "seeding"
	}

	return "unknown"
}

// Torrent is a live status snapshot from the daemon. It is not retained
// between cycles.
type Torrent struct {
	ID           int64
	Hash         string
	Name         string
	Status       Status
	PercentDone  float64
	SizeWhenDone int64
	DownloadDir  string
}

// Done reports whether the daemon has the full content on disk.
func (t Torrent) Done() bool {
	return t.PercentDone == 1.0
}

// torrentFields is the fixed projection requested from the daemon.
var torrentFields = []string{
	"id", "hashString", "name", "status", "percentDone", "sizeWhenDone", "downloadDir",
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type Client struct {
	addr       string
	url        string
	username   string
	password   string
	httpClient *http.Client
	sessionID  string
}

// New builds a client handle from the daemon connection settings. Malformed
// host/port parameters fail fast with a ConnectionError; no network I/O
// happens here.
func New(ts config.TransmissionSettings) (*Client, error) {
	host := ts.Host
	if host == "" {
		host = config.DefaultTransmissionHost
	}

	port := ts.Port
	if port == 0 {
		port = config.DefaultTransmissionPort
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	u, err := url.Parse("http://" + addr + rpcPath)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	if u.Hostname() != strings.Trim(host, "[]") || u.Path != rpcPath {
		return nil, &ConnectionError{Addr: addr, Err: fmt.Errorf("invalid host %q", host)}
	}

	return &Client{
		addr:       addr,
		url:        u.String(),
		username:   ts.Username,
		password:   ts.Password,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// Addr returns the host:port the client was built for.
func (c *Client) Addr() string {
	return c.addr
}

// FetchTorrents issues one torrent-get request for the fixed field set.
func (c *Client) FetchTorrents(ctx context.Context) ([]Torrent, error) {
	var args struct {
		Torrents []struct {
			ID           int64   `json:"id"`
			HashString   string  `json:"hashString"`
			Name         string  `json:"name"`
			Status       int     `json:"status"`
			PercentDone  float64 `json:"percentDone"`
			SizeWhenDone int64   `json:"sizeWhenDone"`
			DownloadDir  string  `json:"downloadDir"`
		} `json:"torrents"`
	}

	req := struct {
		Fields []string `json:"fields"`
	}{Fields: torrentFields}

	if err := c.call(ctx, "torrent-get", req, &args); err != nil {
		return nil, err
	}

	torrents := make([]Torrent, 0, len(args.Torrents))
	for _, t := range args.Torrents {
		torrents = append(torrents, Torrent{
			ID:           t.ID,
			Hash:         t.HashString,
			Name:         t.Name,
			Status:       Status(t.Status),
			PercentDone:  t.PercentDone,
			SizeWhenDone: t.SizeWhenDone,
			DownloadDir:  t.DownloadDir,
		})
	}

	return torrents, nil
}

// TestConnection performs a session-get round trip and returns the daemon's
// version string.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	var args struct {
		Version string `json:"version"`
	}

	if err := c.call(ctx, "session-get", nil, &args); err != nil {
		return "", err
	}

	return args.Version, nil
}

// call performs one RPC round trip, transparently handling the CSRF session
// handshake: a 409 response carries the session id to repeat the request with.
func (c *Client) call(ctx context.Context, method string, arguments, out any) error {
	logger := logctx.LoggerFromContext(ctx).With("method", method)

	resp, err := c.post(ctx, method, arguments)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusConflict {
		c.sessionID = resp.Header.Get(sessionHeader)
		resp.Body.Close()

		logger.Debug("renewed transmission session", "session_id", c.sessionID)

		resp, err = c.post(ctx, method, arguments)
		if err != nil {
			return err
		}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))

		return &RPCError{
			Method: method,
			Result: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return &RPCError{Method: method, Result: fmt.Sprintf("undecodable response: %v", err)}
	}

	if rpcResp.Result != resultSuccess {
		return &RPCError{Method: method, Result: rpcResp.Result}
	}

	if out != nil && len(rpcResp.Arguments) > 0 {
		if err := json.Unmarshal(rpcResp.Arguments, out); err != nil {
			return &RPCError{Method: method, Result: fmt.Sprintf("undecodable arguments: %v", err)}
		}
	}

	return nil
}

func (c *Client) post(ctx context.Context, method string, arguments any) (*http.Response, error) {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: arguments})
	if err != nil {
		return nil, &RPCError{Method: method, Result: fmt.Sprintf("unencodable request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &ConnectionError{Addr: c.addr, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}

	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Addr: c.addr, Err: err}
	}

	return resp, nil
}

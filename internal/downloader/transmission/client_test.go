package transmission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/sideline/sideline/internal/downloader/types"
)

func TestClient_Type(t *testing.T) {
	client := NewFromConfig(&types.ClientConfig{Host: "localhost", Port: 9091})

	if client.Type() != types.ClientTypeTransmission {
		t.Errorf("expected ClientTypeTransmission, got %s", client.Type())
	}
	if client.Protocol() != types.ProtocolTorrent {
		t.Errorf("expected ProtocolTorrent, got %s", client.Protocol())
	}
}

func TestClient_SessionHandshake(t *testing.T) {
	var rpcCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transmission/rpc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		rpcCount.Add(1)
		if r.Header.Get("X-Transmission-Session-Id") != "session-42" {
			w.Header().Set("X-Transmission-Session-Id", "session-42")
			w.WriteHeader(http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":    "success",
			"arguments": map[string]interface{}{"download-dir": "/downloads"},
		})
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{})

	if err := client.Test(context.Background()); err != nil {
		t.Fatalf("expected handshake to succeed, got %v", err)
	}
	if rpcCount.Load() != 2 {
		t.Errorf("expected 2 rpc calls (409 then retry), got %d", rpcCount.Load())
	}

	// The captured session id is reused, no further 409 round trips.
	if err := client.Test(context.Background()); err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
	if rpcCount.Load() != 3 {
		t.Errorf("expected 3 rpc calls total, got %d", rpcCount.Load())
	}
}

func TestClient_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{Username: "admin", Password: "wrong"})

	err := client.Test(context.Background())
	if !errors.Is(err, types.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestClient_Add(t *testing.T) {
	var receivedMethod string
	var receivedFilename string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		switch req.Method {
		case "torrent-add":
			receivedMethod = req.Method
			receivedFilename, _ = req.Arguments["filename"].(string)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"result": "success",
				"arguments": map[string]interface{}{
					"torrent-added": map[string]interface{}{
						"id":         float64(7),
						"hashString": "CAFEBABE0123456789ABCDEF0123456789ABCDEF",
					},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"result": "success"})
		}
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{})

	magnet := "magnet:?xt=urn:btih:cafebabe&dn=test"
	hash, err := client.Add(context.Background(), types.AddOptions{URL: magnet})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receivedMethod != "torrent-add" {
		t.Errorf("expected torrent-add, got %s", receivedMethod)
	}
	if receivedFilename != magnet {
		t.Errorf("expected filename '%s', got '%s'", magnet, receivedFilename)
	}
	if hash != "cafebabe0123456789abcdef0123456789abcdef" {
		t.Errorf("expected lowercased hash, got '%s'", hash)
	}
}

func TestClient_Add_CategorySubdirectory(t *testing.T) {
	var receivedDir string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		switch req.Method {
		case "session-get":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"result":    "success",
				"arguments": map[string]interface{}{"download-dir": "/data/torrents"},
			})
		case "torrent-add":
			receivedDir, _ = req.Arguments["download-dir"].(string)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"result": "success",
				"arguments": map[string]interface{}{
					"torrent-added": map[string]interface{}{"hashString": "abc"},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"result": "success"})
		}
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{Category: "sports"})

	_, err := client.Add(context.Background(), types.AddOptions{URL: "magnet:?xt=urn:btih:abc"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receivedDir != "/data/torrents/sports" {
		t.Errorf("expected category subdirectory '/data/torrents/sports', got '%s'", receivedDir)
	}
}

func TestClient_Add_Duplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": "success",
			"arguments": map[string]interface{}{
				"torrent-duplicate": map[string]interface{}{
					"hashString": "deadbeef",
				},
			},
		})
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{})

	hash, err := client.Add(context.Background(), types.AddOptions{URL: "magnet:?xt=urn:btih:deadbeef"})
	if err != nil {
		t.Fatalf("expected duplicate add to succeed, got %v", err)
	}
	if hash != "deadbeef" {
		t.Errorf("expected hash 'deadbeef', got '%s'", hash)
	}
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": "success",
			"arguments": map[string]interface{}{
				"torrents": []map[string]interface{}{
					{
						"hashString":     "ABCDEF",
						"name":           "UFC.319.1080p",
						"status":         float64(4),
						"percentDone":    0.42,
						"sizeWhenDone":   float64(2147483648),
						"downloadedEver": float64(902000000),
						"rateDownload":   float64(5242880),
						"eta":            float64(240),
						"downloadDir":    "/data/torrents/sports",
						"error":          float64(0),
					},
				},
			},
		})
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{})

	item, err := client.Get(context.Background(), "abcdef")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if item.ID != "abcdef" {
		t.Errorf("expected lowercased id 'abcdef', got '%s'", item.ID)
	}
	if item.Status != types.StatusDownloading {
		t.Errorf("expected StatusDownloading, got %s", item.Status)
	}
	if item.Progress != 42.0 {
		t.Errorf("expected progress 42.0, got %f", item.Progress)
	}
	if item.Size != 2147483648 {
		t.Errorf("expected size 2147483648, got %d", item.Size)
	}
	if item.ETASeconds != 240 {
		t.Errorf("expected ETA 240, got %d", item.ETASeconds)
	}
}

func TestClient_Get_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":    "success",
			"arguments": map[string]interface{}{"torrents": []interface{}{}},
		})
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{})

	_, err := client.Get(context.Background(), "missing")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_Remove(t *testing.T) {
	var receivedDelete bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method == "torrent-remove" {
			receivedDelete, _ = req.Arguments["delete-local-data"].(bool)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": "success"})
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{})

	if err := client.Remove(context.Background(), "abc", true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !receivedDelete {
		t.Error("expected delete-local-data to be true")
	}
}

func TestClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"result": "unrecognized method"})
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{})

	if err := client.Test(context.Background()); err == nil {
		t.Fatal("expected an error for a non-success result")
	}
}

func TestClient_URLBase(t *testing.T) {
	var receivedPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":    "success",
			"arguments": map[string]interface{}{},
		})
	}))
	defer server.Close()

	client := createClientFromServer(t, server, &types.ClientConfig{URLBase: "/torrents/"})

	if err := client.Test(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if receivedPath != "/torrents/rpc" {
		t.Errorf("expected path '/torrents/rpc', got '%s'", receivedPath)
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected types.Status
	}{
		{0, types.StatusPaused},
		{1, types.StatusQueued},
		{2, types.StatusDownloading},
		{3, types.StatusQueued},
		{4, types.StatusDownloading},
		{5, types.StatusCompleted},
		{6, types.StatusCompleted},
		{99, types.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			result := mapStatus(tt.status)
			if result != tt.expected {
				t.Errorf("mapStatus(%d) = %s, expected %s", tt.status, result, tt.expected)
			}
		})
	}
}

func TestMapToDownloadItem_Errors(t *testing.T) {
	localError := map[string]interface{}{
		"hashString":  "abc",
		"name":        "Broken",
		"status":      float64(4),
		"error":       float64(3),
		"errorString": "No data found",
	}
	item := mapToDownloadItem(localError)
	if item.Status != types.StatusFailed {
		t.Errorf("expected local error to map to StatusFailed, got %s", item.Status)
	}
	if item.Error != "No data found" {
		t.Errorf("expected error string to carry through, got '%s'", item.Error)
	}

	trackerWarning := map[string]interface{}{
		"hashString":  "def",
		"name":        "Flaky",
		"status":      float64(4),
		"error":       float64(1),
		"errorString": "Tracker warning",
	}
	item = mapToDownloadItem(trackerWarning)
	if item.Status != types.StatusWarning {
		t.Errorf("expected tracker warning to map to StatusWarning, got %s", item.Status)
	}
}

func createClientFromServer(t *testing.T, server *httptest.Server, baseCfg *types.ClientConfig) *Client {
	t.Helper()

	parsedURL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}

	host := parsedURL.Hostname()
	port := parsedURL.Port()
	if port == "" {
		port = "80"
	}

	portInt := 0
	if _, err := fmt.Sscanf(port, "%d", &portInt); err != nil {
		t.Fatalf("failed to parse port: %v", err)
	}

	return NewFromConfig(&types.ClientConfig{
		Host:     host,
		Port:     portInt,
		UseSSL:   parsedURL.Scheme == "https",
		URLBase:  baseCfg.URLBase,
		Username: baseCfg.Username,
		Password: baseCfg.Password,
		Category: baseCfg.Category,
	})
}

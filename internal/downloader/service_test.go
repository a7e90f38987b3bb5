package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sideline/sideline/internal/crypto"
	"github.com/sideline/sideline/internal/downloader/types"
	"github.com/sideline/sideline/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)

	salt, err := crypto.GenerateSalt()
	if err != nil {
		tdb.Close()
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	secrets := crypto.NewSecretStore("test-instance-secret", salt)
	return NewService(tdb.Conn, secrets, tdb.Logger), tdb
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestCreateAppliesDefaults(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	client, err := svc.Create(ctx, CreateClientInput{
		Name: "qbit",
		Type: "qbittorrent",
		Host: "localhost",
		Port: 8080,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if client.Category != "sports" {
		t.Errorf("Category = %q, want sports default", client.Category)
	}
	if client.Priority != 1 {
		t.Errorf("Priority = %d, want 1", client.Priority)
	}
	if !client.Enabled {
		t.Error("Enabled = false, want true by default")
	}
	if !client.RemoveCompleted || !client.RemoveFailed {
		t.Errorf("RemoveCompleted = %v, RemoveFailed = %v, want both true by default",
			client.RemoveCompleted, client.RemoveFailed)
	}
	if client.Protocol != types.ProtocolTorrent {
		t.Errorf("Protocol = %s, want torrent", client.Protocol)
	}
	if client.HasPassword || client.HasAPIKey {
		t.Error("expected no credentials on a bare client")
	}
}

func TestCreateEncryptsCredentials(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	client, err := svc.Create(ctx, CreateClientInput{
		Name:     "sab",
		Type:     "sabnzbd",
		Host:     "localhost",
		Port:     8085,
		Username: "admin",
		Password: "hunter2",
		APIKey:   "raw-api-key",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !client.HasPassword || !client.HasAPIKey {
		t.Error("expected HasPassword and HasAPIKey to be set")
	}

	var password, apiKey string
	row := tdb.Conn.QueryRow("SELECT password, api_key FROM download_clients WHERE id = ?", client.ID)
	if err := row.Scan(&password, &apiKey); err != nil {
		t.Fatalf("raw row scan error = %v", err)
	}
	if !crypto.IsEncrypted(password) {
		t.Errorf("stored password %q is not encrypted", password)
	}
	if strings.Contains(password, "hunter2") {
		t.Error("stored password leaks the plaintext")
	}
	if !crypto.IsEncrypted(apiKey) {
		t.Errorf("stored api key %q is not encrypted", apiKey)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateClientInput
	}{
		{"missing name", CreateClientInput{Type: "qbittorrent", Host: "localhost", Port: 8080}},
		{"unknown type", CreateClientInput{Name: "x", Type: "vuze", Host: "localhost", Port: 8080}},
		{"missing host", CreateClientInput{Name: "x", Type: "transmission", Port: 9091}},
		{"port too low", CreateClientInput{Name: "x", Type: "transmission", Host: "localhost", Port: 0}},
		{"port too high", CreateClientInput{Name: "x", Type: "transmission", Host: "localhost", Port: 70000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			if !errors.Is(err, ErrInvalidClient) {
				t.Errorf("Create() error = %v, want ErrInvalidClient", err)
			}
		})
	}

	// The mock backend needs no network details.
	if _, err := svc.Create(ctx, CreateClientInput{Name: "dev", Type: "mock"}); err != nil {
		t.Errorf("Create(mock) error = %v, want nil", err)
	}
}

func TestUpdatePartialMerge(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateClientInput{
		Name:     "qbit",
		Type:     "qbittorrent",
		Host:     "localhost",
		Port:     8080,
		Username: "admin",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Update only the priority. Everything else, the password included,
	// stays.
	updated, err := svc.Update(ctx, created.ID, UpdateClientInput{Priority: intPtr(5)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Priority != 5 {
		t.Errorf("Priority = %d, want 5", updated.Priority)
	}
	if updated.Name != "qbit" {
		t.Errorf("Name = %q, want unchanged", updated.Name)
	}
	if !updated.HasPassword {
		t.Error("HasPassword = false, want password preserved")
	}

	// Rotating the password replaces it.
	updated, err = svc.Update(ctx, created.ID, UpdateClientInput{Password: strPtr("rotated")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.HasPassword {
		t.Error("HasPassword = false after rotation")
	}

	// A non-nil empty password clears it.
	updated, err = svc.Update(ctx, created.ID, UpdateClientInput{Password: strPtr("")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.HasPassword {
		t.Error("HasPassword = true after clearing")
	}
}

func TestUpdateRevalidates(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateClientInput{
		Name: "qbit", Type: "qbittorrent", Host: "localhost", Port: 8080,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Update(ctx, created.ID, UpdateClientInput{Type: strPtr("rtorrent")}); !errors.Is(err, ErrInvalidClient) {
		t.Errorf("Update(unknown type) error = %v, want ErrInvalidClient", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()

	_, err := svc.Update(context.Background(), 999, UpdateClientInput{Priority: intPtr(2)})
	if !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Update() error = %v, want ErrClientNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateClientInput{
		Name: "qbit", Type: "qbittorrent", Host: "localhost", Port: 8080,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Get() after delete = %v, want ErrClientNotFound", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("second Delete() = %v, want ErrClientNotFound", err)
	}
}

func TestPickClient(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	if _, err := svc.PickClient(ctx, types.ProtocolTorrent); !errors.Is(err, ErrNoClient) {
		t.Fatalf("PickClient() with no clients = %v, want ErrNoClient", err)
	}

	if _, err := svc.Create(ctx, CreateClientInput{
		Name: "backup", Type: "transmission", Host: "localhost", Port: 9091, Priority: intPtr(10),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, CreateClientInput{
		Name: "primary", Type: "qbittorrent", Host: "localhost", Port: 8080, Priority: intPtr(1),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, CreateClientInput{
		Name: "disabled", Type: "qbittorrent", Host: "localhost", Port: 8081,
		Priority: intPtr(0), Enabled: boolPtr(false),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, CreateClientInput{
		Name: "news", Type: "sabnzbd", Host: "localhost", Port: 8085,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	picked, err := svc.PickClient(ctx, types.ProtocolTorrent)
	if err != nil {
		t.Fatalf("PickClient(torrent) error = %v", err)
	}
	if picked.Name != "primary" {
		t.Errorf("PickClient(torrent) = %q, want best-priority enabled client", picked.Name)
	}

	picked, err = svc.PickClient(ctx, types.ProtocolUsenet)
	if err != nil {
		t.Fatalf("PickClient(usenet) error = %v", err)
	}
	if picked.Name != "news" {
		t.Errorf("PickClient(usenet) = %q, want news", picked.Name)
	}
}

func TestClientForCachesUntilUpdate(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateClientInput{
		Name: "qbit", Type: "qbittorrent", Host: "localhost", Port: 8080,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, err := svc.ClientFor(ctx, created.ID)
	if err != nil {
		t.Fatalf("ClientFor() error = %v", err)
	}
	if first.Type() != types.ClientTypeQBittorrent {
		t.Errorf("Type() = %s, want qbittorrent", first.Type())
	}

	second, err := svc.ClientFor(ctx, created.ID)
	if err != nil {
		t.Fatalf("ClientFor() error = %v", err)
	}
	if first != second {
		t.Error("expected the cached client between calls")
	}

	if _, err := svc.Update(ctx, created.ID, UpdateClientInput{Port: intPtr(8090)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	third, err := svc.ClientFor(ctx, created.ID)
	if err != nil {
		t.Fatalf("ClientFor() error = %v", err)
	}
	if first == third {
		t.Error("expected a rebuilt client after the configuration changed")
	}
}

func TestTestConfigMock(t *testing.T) {
	svc, tdb := newTestService(t)
	defer tdb.Close()

	result, err := svc.TestConfig(context.Background(), CreateClientInput{Name: "dev", Type: "mock"})
	if err != nil {
		t.Fatalf("TestConfig() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false, message = %q", result.Message)
	}
}

func TestTestReportsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc, tdb := newTestService(t)
	defer tdb.Close()

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	port := 0
	if _, err := fmt.Sscanf(parsed.Port(), "%d", &port); err != nil {
		t.Fatalf("failed to parse port: %v", err)
	}

	result, err := svc.TestConfig(context.Background(), CreateClientInput{
		Name: "qbit", Type: "qbittorrent", Host: parsed.Hostname(), Port: port,
	})
	if err != nil {
		t.Fatalf("TestConfig() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true against a 401 server")
	}
	if !strings.Contains(result.Message, "Authentication failed") {
		t.Errorf("Message = %q, want auth failure message", result.Message)
	}
}

// Package downloader manages download client configurations: CRUD with
// credentials encrypted at rest, connection tests, and construction of
// protocol clients for the grab path and the queue monitor.
package downloader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/crypto"
	"github.com/sideline/sideline/internal/downloader/types"
	"github.com/sideline/sideline/internal/store"
)

var (
	// ErrClientNotFound indicates the download client does not exist.
	ErrClientNotFound = errors.New("download client not found")
	// ErrInvalidClient indicates the client configuration failed validation.
	ErrInvalidClient = errors.New("invalid download client configuration")
	// ErrNoClient indicates no enabled client serves the requested protocol.
	ErrNoClient = errors.New("no enabled download client for protocol")
)

const (
	defaultCategory = "sports"
	defaultPriority = 1
)

// Service manages download client configurations.
type Service struct {
	queries *store.Queries
	secrets *crypto.SecretStore
	logger  zerolog.Logger

	removeCompleted bool
	removeFailed    bool

	mu      sync.Mutex
	clients map[int64]cachedClient
}

// cachedClient keeps a constructed protocol client alive between calls
// so session cookies survive monitor cycles. The updatedAt stamp
// invalidates it when the stored configuration changes.
type cachedClient struct {
	client    types.Client
	updatedAt time.Time
}

// NewService creates a new download client service.
func NewService(db *sql.DB, secrets *crypto.SecretStore, logger zerolog.Logger) *Service {
	return &Service{
		queries:         store.New(db),
		secrets:         secrets,
		logger:          logger.With().Str("component", "downloader").Logger(),
		removeCompleted: true,
		removeFailed:    true,
		clients:         make(map[int64]cachedClient),
	}
}

// SetRemovalDefaults sets the removeCompleted/removeFailed values applied
// to new clients that do not specify them. Stored clients keep their own
// per-client flags.
func (s *Service) SetRemovalDefaults(completed, failed bool) {
	s.removeCompleted = completed
	s.removeFailed = failed
}

// DownloadClient is the API view of a stored client configuration.
// Credentials are never serialized; clients only learn whether they are
// set.
type DownloadClient struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Type            types.ClientType `json:"type"`
	Protocol        types.Protocol   `json:"protocol"`
	Host            string           `json:"host"`
	Port            int              `json:"port"`
	UseSSL          bool             `json:"useSsl"`
	URLBase         string           `json:"urlBase,omitempty"`
	Username        string           `json:"username,omitempty"`
	HasPassword     bool             `json:"hasPassword"`
	HasAPIKey       bool             `json:"hasApiKey"`
	Category        string           `json:"category"`
	Priority        int              `json:"priority"`
	Enabled         bool             `json:"enabled"`
	RemoveCompleted bool             `json:"removeCompleted"`
	RemoveFailed    bool             `json:"removeFailed"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// CreateClientInput is the payload for creating a download client.
type CreateClientInput struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	UseSSL          bool   `json:"useSsl"`
	URLBase         string `json:"urlBase,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	APIKey          string `json:"apiKey,omitempty"`
	Category        string `json:"category,omitempty"`
	Priority        *int   `json:"priority,omitempty"`
	Enabled         *bool  `json:"enabled,omitempty"`
	RemoveCompleted *bool  `json:"removeCompleted,omitempty"`
	RemoveFailed    *bool  `json:"removeFailed,omitempty"`
}

// UpdateClientInput is the payload for updating a download client. Nil
// fields keep their stored values. A non-nil empty Password or APIKey
// clears the credential.
type UpdateClientInput struct {
	Name            *string `json:"name,omitempty"`
	Type            *string `json:"type,omitempty"`
	Host            *string `json:"host,omitempty"`
	Port            *int    `json:"port,omitempty"`
	UseSSL          *bool   `json:"useSsl,omitempty"`
	URLBase         *string `json:"urlBase,omitempty"`
	Username        *string `json:"username,omitempty"`
	Password        *string `json:"password,omitempty"`
	APIKey          *string `json:"apiKey,omitempty"`
	Category        *string `json:"category,omitempty"`
	Priority        *int    `json:"priority,omitempty"`
	Enabled         *bool   `json:"enabled,omitempty"`
	RemoveCompleted *bool   `json:"removeCompleted,omitempty"`
	RemoveFailed    *bool   `json:"removeFailed,omitempty"`
}

// Create validates and stores a new download client.
func (s *Service) Create(ctx context.Context, input CreateClientInput) (*DownloadClient, error) {
	clientType := types.ClientType(input.Type)
	if err := validateClient(input.Name, clientType, input.Host, input.Port); err != nil {
		return nil, err
	}

	password, err := s.encryptSecret(input.Password)
	if err != nil {
		return nil, err
	}
	apiKey, err := s.encryptSecret(input.APIKey)
	if err != nil {
		return nil, err
	}

	category := input.Category
	if category == "" {
		category = defaultCategory
	}
	priority := defaultPriority
	if input.Priority != nil {
		priority = *input.Priority
	}

	row, err := s.queries.CreateDownloadClient(ctx, store.CreateDownloadClientParams{
		Name:            input.Name,
		Type:            string(clientType),
		Host:            input.Host,
		Port:            int64(input.Port),
		UseSSL:          boolToInt(input.UseSSL),
		URLBase:         input.URLBase,
		Username:        input.Username,
		Password:        password,
		APIKey:          apiKey,
		Category:        category,
		Priority:        int64(priority),
		Enabled:         boolToInt(input.Enabled == nil || *input.Enabled),
		RemoveCompleted: boolToInt(optBool(input.RemoveCompleted, s.removeCompleted)),
		RemoveFailed:    boolToInt(optBool(input.RemoveFailed, s.removeFailed)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create download client: %w", err)
	}

	s.logger.Info().
		Int64("id", row.ID).
		Str("name", row.Name).
		Str("type", row.Type).
		Msg("download client created")

	view := rowToView(row)
	return &view, nil
}

// Update applies a partial update to a stored client.
func (s *Service) Update(ctx context.Context, id int64, input UpdateClientInput) (*DownloadClient, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}

	params := store.UpdateDownloadClientParams{
		ID:              row.ID,
		Name:            optStr(input.Name, row.Name),
		Type:            optStr(input.Type, row.Type),
		Host:            optStr(input.Host, row.Host),
		Port:            int64(optInt(input.Port, int(row.Port))),
		UseSSL:          boolToInt(optBool(input.UseSSL, row.UseSSL != 0)),
		URLBase:         optStr(input.URLBase, row.URLBase),
		Username:        optStr(input.Username, row.Username),
		Password:        row.Password,
		APIKey:          row.APIKey,
		Category:        optStr(input.Category, row.Category),
		Priority:        int64(optInt(input.Priority, int(row.Priority))),
		Enabled:         boolToInt(optBool(input.Enabled, row.Enabled != 0)),
		RemoveCompleted: boolToInt(optBool(input.RemoveCompleted, row.RemoveCompleted != 0)),
		RemoveFailed:    boolToInt(optBool(input.RemoveFailed, row.RemoveFailed != 0)),
	}
	if input.Password != nil {
		params.Password, err = s.encryptSecret(*input.Password)
		if err != nil {
			return nil, err
		}
	}
	if input.APIKey != nil {
		params.APIKey, err = s.encryptSecret(*input.APIKey)
		if err != nil {
			return nil, err
		}
	}

	clientType := types.ClientType(params.Type)
	if err := validateClient(params.Name, clientType, params.Host, int(params.Port)); err != nil {
		return nil, err
	}

	if err := s.queries.UpdateDownloadClient(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to update download client: %w", err)
	}
	s.dropCached(id)

	updated, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	view := rowToView(updated)
	return &view, nil
}

// Delete removes a client. Queue items that referenced it cascade away.
func (s *Service) Delete(ctx context.Context, id int64) error {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queries.DeleteDownloadClient(ctx, id); err != nil {
		return fmt.Errorf("failed to delete download client: %w", err)
	}
	s.dropCached(id)

	s.logger.Info().Int64("id", id).Str("name", row.Name).Msg("download client deleted")
	return nil
}

// Get returns a single client view.
func (s *Service) Get(ctx context.Context, id int64) (*DownloadClient, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	view := rowToView(row)
	return &view, nil
}

// List returns all clients ordered by priority.
func (s *Service) List(ctx context.Context) ([]DownloadClient, error) {
	rows, err := s.queries.ListDownloadClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list download clients: %w", err)
	}
	views := make([]DownloadClient, 0, len(rows))
	for _, row := range rows {
		views = append(views, rowToView(row))
	}
	return views, nil
}

// PickClient selects the enabled client with the best priority for a
// protocol.
func (s *Service) PickClient(ctx context.Context, protocol types.Protocol) (*DownloadClient, error) {
	rows, err := s.queries.ListEnabledDownloadClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list download clients: %w", err)
	}
	for _, row := range rows {
		if types.ProtocolForClient(types.ClientType(row.Type)) == protocol {
			view := rowToView(row)
			return &view, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoClient, protocol)
}

// ClientFor returns a ready protocol client for a stored configuration.
// Clients are cached until the configuration row changes.
func (s *Service) ClientFor(ctx context.Context, id int64) (types.Client, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if cached, ok := s.clients[id]; ok && cached.updatedAt.Equal(row.UpdatedAt) {
		s.mu.Unlock()
		return cached.client, nil
	}
	s.mu.Unlock()

	client, err := s.buildClient(row)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clients[id] = cachedClient{client: client, updatedAt: row.UpdatedAt}
	s.mu.Unlock()
	return client, nil
}

// TestResult reports the outcome of a download client connection test.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Test checks connectivity for a stored client.
func (s *Service) Test(ctx context.Context, id int64) (*TestResult, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.test(ctx, row), nil
}

// TestConfig checks connectivity for a candidate configuration without
// storing it.
func (s *Service) TestConfig(ctx context.Context, input CreateClientInput) (*TestResult, error) {
	clientType := types.ClientType(input.Type)
	if err := validateClient(input.Name, clientType, input.Host, input.Port); err != nil {
		return nil, err
	}
	password, err := s.encryptSecret(input.Password)
	if err != nil {
		return nil, err
	}
	apiKey, err := s.encryptSecret(input.APIKey)
	if err != nil {
		return nil, err
	}
	return s.test(ctx, store.DownloadClient{
		Type:     input.Type,
		Host:     input.Host,
		Port:     int64(input.Port),
		UseSSL:   boolToInt(input.UseSSL),
		URLBase:  input.URLBase,
		Username: input.Username,
		Password: password,
		APIKey:   apiKey,
		Category: input.Category,
	}), nil
}

func (s *Service) test(ctx context.Context, row store.DownloadClient) *TestResult {
	client, err := s.buildClient(row)
	if err != nil {
		return &TestResult{Success: false, Message: err.Error()}
	}
	if err := client.Test(ctx); err != nil {
		if errors.Is(err, types.ErrAuthFailed) {
			return &TestResult{Success: false, Message: "Authentication failed: check the credentials"}
		}
		return &TestResult{Success: false, Message: fmt.Sprintf("Connection test failed: %s", err)}
	}
	return &TestResult{Success: true, Message: "Successfully connected to download client"}
}

// buildClient constructs a protocol client from a stored row, decrypting
// credentials. Never serialize the result.
func (s *Service) buildClient(row store.DownloadClient) (types.Client, error) {
	cfg := &types.ClientConfig{
		Host:     row.Host,
		Port:     int(row.Port),
		UseSSL:   row.UseSSL != 0,
		URLBase:  row.URLBase,
		Username: row.Username,
		Password: s.secrets.MustDecrypt(row.Password),
		APIKey:   s.secrets.MustDecrypt(row.APIKey),
		Category: row.Category,
	}
	return NewClient(types.ClientType(row.Type), cfg)
}

func (s *Service) getRow(ctx context.Context, id int64) (store.DownloadClient, error) {
	row, err := s.queries.GetDownloadClient(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.DownloadClient{}, ErrClientNotFound
		}
		return store.DownloadClient{}, fmt.Errorf("failed to get download client: %w", err)
	}
	return row, nil
}

func (s *Service) dropCached(id int64) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// encryptSecret encrypts a credential for storage. Empty values stay
// empty. Already-encrypted values pass through so updates can echo back
// the stored form without double wrapping.
func (s *Service) encryptSecret(value string) (string, error) {
	if value == "" || crypto.IsEncrypted(value) {
		return value, nil
	}
	encrypted, err := s.secrets.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return encrypted, nil
}

func validateClient(name string, clientType types.ClientType, host string, port int) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidClient)
	}
	protocol := types.ProtocolForClient(clientType)
	if protocol == "" {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidClient, clientType)
	}
	if clientType == types.ClientTypeMock {
		return nil
	}
	if host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidClient)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidClient)
	}
	return nil
}

func rowToView(row store.DownloadClient) DownloadClient {
	clientType := types.ClientType(row.Type)
	return DownloadClient{
		ID:              row.ID,
		Name:            row.Name,
		Type:            clientType,
		Protocol:        types.ProtocolForClient(clientType),
		Host:            row.Host,
		Port:            int(row.Port),
		UseSSL:          row.UseSSL != 0,
		URLBase:         row.URLBase,
		Username:        row.Username,
		HasPassword:     row.Password != "",
		HasAPIKey:       row.APIKey != "",
		Category:        row.Category,
		Priority:        int(row.Priority),
		Enabled:         row.Enabled != 0,
		RemoveCompleted: row.RemoveCompleted != 0,
		RemoveFailed:    row.RemoveFailed != 0,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func optStr(v *string, current string) string {
	if v != nil {
		return *v
	}
	return current
}

func optInt(v *int, current int) int {
	if v != nil {
		return *v
	}
	return current
}

func optBool(v *bool, current bool) bool {
	if v != nil {
		return *v
	}
	return current
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

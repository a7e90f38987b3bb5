// Package indexer manages Torznab/Newznab indexer configuration: CRUD
// with API keys encrypted at rest, connection tests, and health lookups
// for the search planner and discovery worker.
package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/crypto"
	"github.com/sideline/sideline/internal/indexer/newznab"
	"github.com/sideline/sideline/internal/indexer/status"
	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/store"
)

var (
	ErrIndexerNotFound = errors.New("indexer not found")
	ErrInvalidIndexer  = errors.New("invalid indexer configuration")
)

const (
	defaultAPIPath  = "/api"
	defaultPriority = 25
)

// Service provides indexer configuration operations.
type Service struct {
	queries *store.Queries
	secrets *crypto.SecretStore
	client  *newznab.Client
	status  *status.Service
	logger  zerolog.Logger
}

func NewService(db *sql.DB, secrets *crypto.SecretStore, client *newznab.Client, statusSvc *status.Service, logger zerolog.Logger) *Service {
	return &Service{
		queries: store.New(db),
		secrets: secrets,
		client:  client,
		status:  statusSvc,
		logger:  logger.With().Str("component", "indexer").Logger(),
	}
}

// Indexer is the API view of a configured indexer. The stored API key is
// never serialized; clients only learn whether one is set.
type Indexer struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Implementation string         `json:"implementation"`
	BaseURL        string         `json:"baseUrl"`
	APIPath        string         `json:"apiPath"`
	HasAPIKey      bool           `json:"hasApiKey"`
	Categories     []int          `json:"categories"`
	Protocol       types.Protocol `json:"protocol"`
	Enabled        bool           `json:"enabled"`
	RSSEnabled     bool           `json:"rssEnabled"`
	Priority       int            `json:"priority"`
	QueryLimit     int            `json:"queryLimit"`
	GrabLimit      int            `json:"grabLimit"`
	RequestDelayMs int            `json:"requestDelayMs"`
	SeedRatio      float64        `json:"seedRatio"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// CreateIndexerInput is the input for creating a new indexer.
type CreateIndexerInput struct {
	Name           string   `json:"name"`
	Implementation string   `json:"implementation"`
	BaseURL        string   `json:"baseUrl"`
	APIPath        string   `json:"apiPath,omitempty"`
	APIKey         string   `json:"apiKey,omitempty"`
	Categories     []int    `json:"categories,omitempty"`
	Protocol       string   `json:"protocol,omitempty"`
	Enabled        *bool    `json:"enabled,omitempty"`
	RSSEnabled     *bool    `json:"rssEnabled,omitempty"`
	Priority       *int     `json:"priority,omitempty"`
	QueryLimit     *int     `json:"queryLimit,omitempty"`
	GrabLimit      *int     `json:"grabLimit,omitempty"`
	RequestDelayMs *int     `json:"requestDelayMs,omitempty"`
	SeedRatio      *float64 `json:"seedRatio,omitempty"`
}

// UpdateIndexerInput supports partial updates; nil fields keep their
// stored values. A non-nil empty APIKey clears the key.
type UpdateIndexerInput struct {
	Name           *string  `json:"name,omitempty"`
	Implementation *string  `json:"implementation,omitempty"`
	BaseURL        *string  `json:"baseUrl,omitempty"`
	APIPath        *string  `json:"apiPath,omitempty"`
	APIKey         *string  `json:"apiKey,omitempty"`
	Categories     []int    `json:"categories,omitempty"`
	Protocol       *string  `json:"protocol,omitempty"`
	Enabled        *bool    `json:"enabled,omitempty"`
	RSSEnabled     *bool    `json:"rssEnabled,omitempty"`
	Priority       *int     `json:"priority,omitempty"`
	QueryLimit     *int     `json:"queryLimit,omitempty"`
	GrabLimit      *int     `json:"grabLimit,omitempty"`
	RequestDelayMs *int     `json:"requestDelayMs,omitempty"`
	SeedRatio      *float64 `json:"seedRatio,omitempty"`
}

// Create validates, encrypts the API key, and stores a new indexer.
func (s *Service) Create(ctx context.Context, input CreateIndexerInput) (*Indexer, error) {
	implementation, protocol, err := validateIdentity(input.Name, input.Implementation, input.BaseURL, input.Protocol)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.encryptKey(input.APIKey)
	if err != nil {
		return nil, err
	}

	apiPath := input.APIPath
	if apiPath == "" {
		apiPath = defaultAPIPath
	}
	categories, err := marshalCategories(input.Categories)
	if err != nil {
		return nil, err
	}

	row, err := s.queries.CreateIndexer(ctx, store.CreateIndexerParams{
		Name:           input.Name,
		Implementation: implementation,
		BaseURL:        strings.TrimRight(input.BaseURL, "/"),
		APIPath:        apiPath,
		APIKey:         apiKey,
		Categories:     categories,
		Protocol:       protocol,
		Enabled:        boolToInt(optBool(input.Enabled, true)),
		RSSEnabled:     boolToInt(optBool(input.RSSEnabled, true)),
		Priority:       int64(optInt(input.Priority, defaultPriority)),
		QueryLimit:     int64(optInt(input.QueryLimit, 0)),
		GrabLimit:      int64(optInt(input.GrabLimit, 0)),
		RequestDelayMs: int64(optInt(input.RequestDelayMs, 0)),
		SeedRatio:      optFloat(input.SeedRatio, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	s.logger.Info().
		Int64("id", row.ID).
		Str("name", row.Name).
		Str("implementation", row.Implementation).
		Msg("Created indexer")
	return rowToView(row), nil
}

// Update applies a partial update to an existing indexer.
func (s *Service) Update(ctx context.Context, id int64, input UpdateIndexerInput) (*Indexer, error) {
	existing, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}

	name := optStr(input.Name, existing.Name)
	baseURL := optStr(input.BaseURL, existing.BaseURL)
	implementation, protocol, err := validateIdentity(name, optStr(input.Implementation, existing.Implementation),
		baseURL, optStr(input.Protocol, existing.Protocol))
	if err != nil {
		return nil, err
	}

	apiKey := existing.APIKey
	if input.APIKey != nil {
		apiKey, err = s.encryptKey(*input.APIKey)
		if err != nil {
			return nil, err
		}
	}

	categories := existing.Categories
	if input.Categories != nil {
		categories, err = marshalCategories(input.Categories)
		if err != nil {
			return nil, err
		}
	}

	params := store.UpdateIndexerParams{
		ID:             id,
		Name:           name,
		Implementation: implementation,
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIPath:        optStr(input.APIPath, existing.APIPath),
		APIKey:         apiKey,
		Categories:     categories,
		Protocol:       protocol,
		Enabled:        boolToInt(optBool(input.Enabled, existing.Enabled == 1)),
		RSSEnabled:     boolToInt(optBool(input.RSSEnabled, existing.RSSEnabled == 1)),
		Priority:       int64(optInt(input.Priority, int(existing.Priority))),
		QueryLimit:     int64(optInt(input.QueryLimit, int(existing.QueryLimit))),
		GrabLimit:      int64(optInt(input.GrabLimit, int(existing.GrabLimit))),
		RequestDelayMs: int64(optInt(input.RequestDelayMs, int(existing.RequestDelayMs))),
		SeedRatio:      optFloat(input.SeedRatio, existing.SeedRatio),
	}
	if err := s.queries.UpdateIndexer(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to update indexer: %w", err)
	}

	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("id", id).Str("name", row.Name).Msg("Updated indexer")
	return rowToView(row), nil
}

// Delete removes an indexer. Status rows and cached releases go with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}

	if err := s.queries.DeleteIndexer(ctx, id); err != nil {
		return fmt.Errorf("failed to delete indexer: %w", err)
	}
	s.client.Forget(id)

	s.logger.Info().Int64("id", id).Str("name", row.Name).Msg("Deleted indexer")
	return nil
}

// Get retrieves an indexer by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Indexer, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return rowToView(row), nil
}

// List returns all indexers ordered by priority.
func (s *Service) List(ctx context.Context) ([]*Indexer, error) {
	rows, err := s.queries.ListIndexers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}
	views := make([]*Indexer, 0, len(rows))
	for _, row := range rows {
		views = append(views, rowToView(row))
	}
	return views, nil
}

// Searchable returns the stored indexer with its API key decrypted, ready
// to hand to the transport client. Never serialize the result.
func (s *Service) Searchable(ctx context.Context, id int64) (store.Indexer, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return store.Indexer{}, err
	}
	row.APIKey = s.secrets.MustDecrypt(row.APIKey)
	return row, nil
}

// ListSearchable returns all enabled indexers with decrypted API keys.
func (s *Service) ListSearchable(ctx context.Context) ([]store.Indexer, error) {
	rows, err := s.queries.ListEnabledIndexers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled indexers: %w", err)
	}
	for i := range rows {
		rows[i].APIKey = s.secrets.MustDecrypt(rows[i].APIKey)
	}
	return rows, nil
}

// TestResult reports the outcome of an indexer connection test.
type TestResult struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	Capabilities *types.Capabilities `json:"capabilities,omitempty"`
}

// Test runs a connection test against a stored indexer.
func (s *Service) Test(ctx context.Context, id int64) (*TestResult, error) {
	ix, err := s.Searchable(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.test(ctx, ix), nil
}

// TestConfig tests an indexer configuration without saving it.
func (s *Service) TestConfig(ctx context.Context, input CreateIndexerInput) (*TestResult, error) {
	implementation, protocol, err := validateIdentity(input.Name, input.Implementation, input.BaseURL, input.Protocol)
	if err != nil {
		return nil, err
	}

	apiPath := input.APIPath
	if apiPath == "" {
		apiPath = defaultAPIPath
	}
	ix := store.Indexer{
		Name:           input.Name,
		Implementation: implementation,
		BaseURL:        strings.TrimRight(input.BaseURL, "/"),
		APIPath:        apiPath,
		APIKey:         input.APIKey,
		Protocol:       protocol,
	}
	return s.test(ctx, ix), nil
}

func (s *Service) test(ctx context.Context, ix store.Indexer) *TestResult {
	caps, err := s.client.FetchCaps(ctx, ix)
	if err != nil {
		var reqErr *types.RequestError
		if errors.As(err, &reqErr) && reqErr.IsAuthFailure() {
			return &TestResult{Success: false, Message: "Authentication failed: check the API key"}
		}
		return &TestResult{Success: false, Message: fmt.Sprintf("Connection test failed: %s", err)}
	}
	return &TestResult{
		Success:      true,
		Message:      "Successfully connected to indexer",
		Capabilities: &caps,
	}
}

// HealthInfo combines availability with the raw status counters.
type HealthInfo struct {
	IndexerID           int64      `json:"indexerId"`
	IndexerName         string     `json:"indexerName"`
	Available           bool       `json:"available"`
	Reason              string     `json:"reason,omitempty"`
	ConsecutiveFailures int64      `json:"consecutiveFailures"`
	LastFailureReason   string     `json:"lastFailureReason,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	DisabledUntil       *time.Time `json:"disabledUntil,omitempty"`
	RateLimitedUntil    *time.Time `json:"rateLimitedUntil,omitempty"`
	QueriesThisHour     int64      `json:"queriesThisHour"`
	GrabsThisHour       int64      `json:"grabsThisHour"`
}

// Health reports one indexer's availability and counters.
func (s *Service) Health(ctx context.Context, id int64) (*HealthInfo, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.healthFor(ctx, row)
}

// HealthAll reports availability for every configured indexer.
func (s *Service) HealthAll(ctx context.Context) ([]*HealthInfo, error) {
	rows, err := s.queries.ListIndexers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}

	infos := make([]*HealthInfo, 0, len(rows))
	for _, row := range rows {
		info, err := s.healthFor(ctx, row)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Service) healthFor(ctx context.Context, row store.Indexer) (*HealthInfo, error) {
	avail, err := s.status.Check(ctx, row)
	if err != nil {
		return nil, err
	}
	st, err := s.status.Get(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	return &HealthInfo{
		IndexerID:           row.ID,
		IndexerName:         row.Name,
		Available:           avail.OK,
		Reason:              avail.Reason,
		ConsecutiveFailures: st.ConsecutiveFailures,
		LastFailureReason:   st.LastFailureReason,
		LastSuccessAt:       nullTimePtr(st.LastSuccessAt),
		DisabledUntil:       nullTimePtr(st.DisabledUntil),
		RateLimitedUntil:    nullTimePtr(st.RateLimitedUntil),
		QueriesThisHour:     avail.QueriesThisHour,
		GrabsThisHour:       avail.GrabsThisHour,
	}, nil
}

// ResetHealth clears an indexer's failure and rate-limit state.
func (s *Service) ResetHealth(ctx context.Context, id int64) error {
	if _, err := s.getRow(ctx, id); err != nil {
		return err
	}
	return s.status.Reset(ctx, id)
}

func (s *Service) getRow(ctx context.Context, id int64) (store.Indexer, error) {
	row, err := s.queries.GetIndexer(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Indexer{}, ErrIndexerNotFound
		}
		return store.Indexer{}, fmt.Errorf("failed to get indexer: %w", err)
	}
	return row, nil
}

func (s *Service) encryptKey(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	// Already-encrypted values pass through so updates can echo back the
	// stored form without double wrapping.
	if crypto.IsEncrypted(plain) {
		return plain, nil
	}
	encrypted, err := s.secrets.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt API key: %w", err)
	}
	return encrypted, nil
}

func validateIdentity(name, implementation, baseURL, protocol string) (string, string, error) {
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalidIndexer)
	}

	switch implementation {
	case types.ImplementationTorznab, types.ImplementationNewznab:
	case "":
		return "", "", fmt.Errorf("%w: implementation is required", ErrInvalidIndexer)
	default:
		return "", "", fmt.Errorf("%w: unknown implementation %q", ErrInvalidIndexer, implementation)
	}

	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("%w: base URL must be http(s)", ErrInvalidIndexer)
	}

	if protocol == "" {
		if implementation == types.ImplementationNewznab {
			protocol = string(types.ProtocolUsenet)
		} else {
			protocol = string(types.ProtocolTorrent)
		}
	}
	switch protocol {
	case string(types.ProtocolTorrent), string(types.ProtocolUsenet):
	default:
		return "", "", fmt.Errorf("%w: unknown protocol %q", ErrInvalidIndexer, protocol)
	}
	return implementation, protocol, nil
}

func marshalCategories(cats []int) (string, error) {
	if len(cats) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(cats)
	if err != nil {
		return "", fmt.Errorf("failed to serialize categories: %w", err)
	}
	return string(raw), nil
}

func rowToView(row store.Indexer) *Indexer {
	view := &Indexer{
		ID:             row.ID,
		Name:           row.Name,
		Implementation: row.Implementation,
		BaseURL:        row.BaseURL,
		APIPath:        row.APIPath,
		HasAPIKey:      row.APIKey != "",
		Categories:     []int{},
		Protocol:       types.Protocol(row.Protocol),
		Enabled:        row.Enabled == 1,
		RSSEnabled:     row.RSSEnabled == 1,
		Priority:       int(row.Priority),
		QueryLimit:     int(row.QueryLimit),
		GrabLimit:      int(row.GrabLimit),
		RequestDelayMs: int(row.RequestDelayMs),
		SeedRatio:      row.SeedRatio,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.Categories != "" {
		var cats []int
		if err := json.Unmarshal([]byte(row.Categories), &cats); err == nil {
			view.Categories = cats
		}
	}
	return view
}

func optBool(ptr *bool, def bool) bool {
	if ptr != nil {
		return *ptr
	}
	return def
}

func optInt(ptr *int, def int) int {
	if ptr != nil {
		return *ptr
	}
	return def
}

func optStr(ptr *string, def string) string {
	if ptr != nil {
		return *ptr
	}
	return def
}

func optFloat(ptr *float64, def float64) float64 {
	if ptr != nil {
		return *ptr
	}
	return def
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

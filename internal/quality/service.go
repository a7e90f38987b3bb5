package quality

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/store"
)

var (
	ErrProfileNotFound = errors.New("quality profile not found")
	ErrFormatNotFound  = errors.New("custom format not found")
	ErrInvalidProfile  = errors.New("invalid quality profile")
)

// Service provides quality profile and custom format persistence plus
// scoring against stored profiles.
type Service struct {
	queries *store.Queries
	logger  zerolog.Logger
}

// NewService creates a new quality service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		queries: store.New(db),
		logger:  logger.With().Str("component", "quality").Logger(),
	}
}

// GetProfile retrieves a quality profile by ID.
func (s *Service) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	row, err := s.queries.GetQualityProfile(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get quality profile: %w", err)
	}
	return rowToProfile(row)
}

// ListProfiles returns all quality profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]*Profile, error) {
	rows, err := s.queries.ListQualityProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quality profiles: %w", err)
	}

	profiles := make([]*Profile, 0, len(rows))
	for _, row := range rows {
		p, err := rowToProfile(row)
		if err != nil {
			s.logger.Warn().Err(err).Int64("id", row.ID).Msg("Failed to parse quality profile")
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// CreateProfileInput is the writable surface of a profile.
type CreateProfileInput struct {
	Name            string        `json:"name"`
	UpgradesAllowed bool          `json:"upgradesAllowed"`
	Cutoff          int           `json:"cutoff"`
	Items           []QualityItem `json:"items"`
	FormatItems     []FormatItem  `json:"formatItems"`
	MinFormatScore  int           `json:"minFormatScore"`
}

// CreateProfile creates a new quality profile.
func (s *Service) CreateProfile(ctx context.Context, input CreateProfileInput) (*Profile, error) {
	if input.Name == "" || len(input.Items) == 0 {
		return nil, ErrInvalidProfile
	}

	itemsJSON, err := SerializeItems(input.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize items: %w", err)
	}
	formatsJSON, err := SerializeFormatItems(input.FormatItems)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize format items: %w", err)
	}

	upgrades := int64(0)
	if input.UpgradesAllowed {
		upgrades = 1
	}

	row, err := s.queries.CreateQualityProfile(ctx, store.CreateQualityProfileParams{
		Name:            input.Name,
		UpgradesAllowed: upgrades,
		Cutoff:          int64(input.Cutoff),
		Items:           itemsJSON,
		FormatItems:     formatsJSON,
		MinFormatScore:  int64(input.MinFormatScore),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create quality profile: %w", err)
	}

	s.logger.Info().Int64("id", row.ID).Str("name", input.Name).Msg("Created quality profile")
	return rowToProfile(row)
}

// UpdateProfile updates an existing quality profile.
func (s *Service) UpdateProfile(ctx context.Context, id int64, input CreateProfileInput) (*Profile, error) {
	if input.Name == "" || len(input.Items) == 0 {
		return nil, ErrInvalidProfile
	}
	if _, err := s.GetProfile(ctx, id); err != nil {
		return nil, err
	}

	itemsJSON, err := SerializeItems(input.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize items: %w", err)
	}
	formatsJSON, err := SerializeFormatItems(input.FormatItems)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize format items: %w", err)
	}

	upgrades := int64(0)
	if input.UpgradesAllowed {
		upgrades = 1
	}

	if err := s.queries.UpdateQualityProfile(ctx, store.UpdateQualityProfileParams{
		ID:              id,
		Name:            input.Name,
		UpgradesAllowed: upgrades,
		Cutoff:          int64(input.Cutoff),
		Items:           itemsJSON,
		FormatItems:     formatsJSON,
		MinFormatScore:  int64(input.MinFormatScore),
	}); err != nil {
		return nil, fmt.Errorf("failed to update quality profile: %w", err)
	}

	s.logger.Info().Int64("id", id).Str("name", input.Name).Msg("Updated quality profile")
	return s.GetProfile(ctx, id)
}

// DeleteProfile deletes a quality profile. Events referencing it keep their
// ID; callers are expected to reassign first.
func (s *Service) DeleteProfile(ctx context.Context, id int64) error {
	if err := s.queries.DeleteQualityProfile(ctx, id); err != nil {
		return fmt.Errorf("failed to delete quality profile: %w", err)
	}
	s.logger.Info().Int64("id", id).Msg("Deleted quality profile")
	return nil
}

// Definitions returns the fixed quality catalog.
func (s *Service) Definitions() []Definition {
	return Definitions
}

// GetFormat retrieves a custom format by ID.
func (s *Service) GetFormat(ctx context.Context, id int64) (*CustomFormat, error) {
	row, err := s.queries.GetCustomFormat(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFormatNotFound
		}
		return nil, fmt.Errorf("failed to get custom format: %w", err)
	}
	return rowToFormat(row)
}

// ListFormats returns all custom formats.
func (s *Service) ListFormats(ctx context.Context) ([]CustomFormat, error) {
	rows, err := s.queries.ListCustomFormats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom formats: %w", err)
	}

	formats := make([]CustomFormat, 0, len(rows))
	for _, row := range rows {
		f, err := rowToFormat(row)
		if err != nil {
			s.logger.Warn().Err(err).Int64("id", row.ID).Msg("Failed to parse custom format")
			continue
		}
		formats = append(formats, *f)
	}
	return formats, nil
}

// CreateFormat creates a custom format.
func (s *Service) CreateFormat(ctx context.Context, name string, specs []Specification) (*CustomFormat, error) {
	specsJSON, err := SerializeSpecifications(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize specifications: %w", err)
	}

	row, err := s.queries.CreateCustomFormat(ctx, name, specsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom format: %w", err)
	}

	s.logger.Info().Int64("id", row.ID).Str("name", name).Msg("Created custom format")
	return rowToFormat(row)
}

// UpdateFormat updates a custom format.
func (s *Service) UpdateFormat(ctx context.Context, id int64, name string, specs []Specification) (*CustomFormat, error) {
	if _, err := s.GetFormat(ctx, id); err != nil {
		return nil, err
	}

	specsJSON, err := SerializeSpecifications(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize specifications: %w", err)
	}
	if err := s.queries.UpdateCustomFormat(ctx, id, name, specsJSON); err != nil {
		return nil, fmt.Errorf("failed to update custom format: %w", err)
	}
	return s.GetFormat(ctx, id)
}

// DeleteFormat deletes a custom format.
func (s *Service) DeleteFormat(ctx context.Context, id int64) error {
	if err := s.queries.DeleteCustomFormat(ctx, id); err != nil {
		return fmt.Errorf("failed to delete custom format: %w", err)
	}
	s.logger.Info().Int64("id", id).Msg("Deleted custom format")
	return nil
}

// EnsureDefaults seeds the stock profiles on first run.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		return err
	}
	if len(profiles) > 0 {
		return nil
	}

	for _, p := range []Profile{DefaultProfile(), HD1080pProfile(), UltraHDProfile()} {
		if _, err := s.CreateProfile(ctx, CreateProfileInput{
			Name:            p.Name,
			UpgradesAllowed: p.UpgradesAllowed,
			Cutoff:          p.Cutoff,
			Items:           p.Items,
		}); err != nil {
			s.logger.Warn().Err(err).Str("name", p.Name).Msg("Failed to create default profile")
		}
	}

	s.logger.Info().Msg("Created default quality profiles")
	return nil
}

func rowToProfile(row store.QualityProfile) (*Profile, error) {
	items, err := DeserializeItems(row.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize items: %w", err)
	}
	formatItems, err := DeserializeFormatItems(row.FormatItems)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize format items: %w", err)
	}

	return &Profile{
		ID:              row.ID,
		Name:            row.Name,
		UpgradesAllowed: row.UpgradesAllowed == 1,
		Cutoff:          int(row.Cutoff),
		Items:           items,
		FormatItems:     formatItems,
		MinFormatScore:  int(row.MinFormatScore),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func rowToFormat(row store.CustomFormat) (*CustomFormat, error) {
	specs, err := DeserializeSpecifications(row.Specifications)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize specifications: %w", err)
	}
	return &CustomFormat{
		ID:             row.ID,
		Name:           row.Name,
		Specifications: specs,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

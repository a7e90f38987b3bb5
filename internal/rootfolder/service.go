// Package rootfolder manages the directories releases are imported
// into and the remote path mappings that translate download client
// paths onto the local filesystem.
package rootfolder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/store"
)

var (
	ErrRootFolderNotFound = errors.New("root folder not found")
	ErrPathNotFound       = errors.New("path does not exist")
	ErrPathNotDirectory   = errors.New("path is not a directory")
	ErrPathAlreadyExists  = errors.New("root folder path already exists")
	ErrMappingNotFound    = errors.New("remote path mapping not found")
	ErrInvalidMapping     = errors.New("host, remote path and local path are required")
)

// RootFolder is a directory imports land in.
type RootFolder struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Accessible bool      `json:"accessible"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateRootFolderInput contains fields for creating a root folder.
type CreateRootFolderInput struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// RemotePathMapping translates a download client's reported path into
// a path this process can read.
type RemotePathMapping struct {
	ID         int64     `json:"id"`
	Host       string    `json:"host"`
	RemotePath string    `json:"remotePath"`
	LocalPath  string    `json:"localPath"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateMappingInput contains fields for creating a remote path mapping.
type CreateMappingInput struct {
	Host       string `json:"host"`
	RemotePath string `json:"remotePath"`
	LocalPath  string `json:"localPath"`
}

// Service provides root folder and remote path mapping operations.
type Service struct {
	queries *store.Queries
	logger  zerolog.Logger
}

// NewService creates a new root folder service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		queries: store.New(db),
		logger:  logger.With().Str("component", "rootfolder").Logger(),
	}
}

// Get retrieves a root folder by ID.
func (s *Service) Get(ctx context.Context, id int64) (*RootFolder, error) {
	row, err := s.queries.GetRootFolder(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRootFolderNotFound
		}
		return nil, fmt.Errorf("failed to get root folder: %w", err)
	}
	return rowToRootFolder(row), nil
}

// List returns all root folders.
func (s *Service) List(ctx context.Context) ([]*RootFolder, error) {
	rows, err := s.queries.ListRootFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list root folders: %w", err)
	}

	folders := make([]*RootFolder, len(rows))
	for i, row := range rows {
		folders[i] = rowToRootFolder(row)
	}
	return folders, nil
}

// Create validates the path and creates a new root folder.
func (s *Service) Create(ctx context.Context, input CreateRootFolderInput) (*RootFolder, error) {
	absPath, err := filepath.Abs(input.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathNotFound
		}
		return nil, fmt.Errorf("failed to check path: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrPathNotDirectory
	}

	existing, err := s.queries.ListRootFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing paths: %w", err)
	}
	for _, f := range existing {
		if f.Path == absPath {
			return nil, ErrPathAlreadyExists
		}
	}

	name := input.Name
	if name == "" {
		name = filepath.Base(absPath)
	}

	row, err := s.queries.CreateRootFolder(ctx, absPath, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create root folder: %w", err)
	}

	s.logger.Info().
		Int64("id", row.ID).
		Str("path", absPath).
		Msg("root folder created")

	return rowToRootFolder(row), nil
}

// Delete removes a root folder. Files on disk and imported events are
// left alone.
func (s *Service) Delete(ctx context.Context, id int64) error {
	folder, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.queries.DeleteRootFolder(ctx, id); err != nil {
		return fmt.Errorf("failed to delete root folder: %w", err)
	}

	s.logger.Info().
		Int64("id", id).
		Str("path", folder.Path).
		Msg("root folder deleted")
	return nil
}

// ListMappings returns all remote path mappings.
func (s *Service) ListMappings(ctx context.Context) ([]*RemotePathMapping, error) {
	rows, err := s.queries.ListRemotePathMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote path mappings: %w", err)
	}

	mappings := make([]*RemotePathMapping, len(rows))
	for i, row := range rows {
		mappings[i] = rowToMapping(row)
	}
	return mappings, nil
}

// CreateMapping creates a new remote path mapping.
func (s *Service) CreateMapping(ctx context.Context, input CreateMappingInput) (*RemotePathMapping, error) {
	input.Host = strings.TrimSpace(input.Host)
	if input.Host == "" || input.RemotePath == "" || input.LocalPath == "" {
		return nil, ErrInvalidMapping
	}

	row, err := s.queries.CreateRemotePathMapping(ctx, input.Host, input.RemotePath, input.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote path mapping: %w", err)
	}

	s.logger.Info().
		Str("host", input.Host).
		Str("remotePath", input.RemotePath).
		Str("localPath", input.LocalPath).
		Msg("remote path mapping created")

	return rowToMapping(row), nil
}

// DeleteMapping removes a remote path mapping.
func (s *Service) DeleteMapping(ctx context.Context, id int64) error {
	mappings, err := s.queries.ListRemotePathMappings(ctx)
	if err != nil {
		return fmt.Errorf("failed to list remote path mappings: %w", err)
	}
	found := false
	for _, m := range mappings {
		if m.ID == id {
			found = true
			break
		}
	}
	if !found {
		return ErrMappingNotFound
	}

	if err := s.queries.DeleteRemotePathMapping(ctx, id); err != nil {
		return fmt.Errorf("failed to delete remote path mapping: %w", err)
	}

	s.logger.Info().Int64("id", id).Msg("remote path mapping deleted")
	return nil
}

func rowToRootFolder(row store.RootFolder) *RootFolder {
	accessible := false
	if info, err := os.Stat(row.Path); err == nil && info.IsDir() {
		accessible = true
	}
	return &RootFolder{
		ID:         row.ID,
		Path:       row.Path,
		Name:       row.Name,
		Accessible: accessible,
		CreatedAt:  row.CreatedAt,
	}
}

func rowToMapping(row store.RemotePathMapping) *RemotePathMapping {
	return &RemotePathMapping{
		ID:         row.ID,
		Host:       row.Host,
		RemotePath: row.RemotePath,
		LocalPath:  row.LocalPath,
		CreatedAt:  row.CreatedAt,
	}
}

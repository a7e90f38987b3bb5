// Package mediainfo probes media files with ffprobe.
package mediainfo

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds probe configuration.
type Config struct {
	FFprobePath string        // explicit binary path; empty searches PATH
	CacheTTL    time.Duration // zero disables caching
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{CacheTTL: time.Hour}
}

type cacheEntry struct {
	info     *MediaInfo
	probedAt time.Time
	size     int64
	modTime  time.Time
}

// Service extracts media properties from files on disk.
type Service struct {
	binary string
	ttl    time.Duration
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

// NewService creates a probe service. The ffprobe binary is resolved once
// at construction.
func NewService(config Config, logger zerolog.Logger) *Service {
	s := &Service{
		binary: findFFprobe(config.FFprobePath),
		ttl:    config.CacheTTL,
		logger: logger.With().Str("component", "mediainfo").Logger(),
		cache:  make(map[string]*cacheEntry),
	}
	if s.binary == "" {
		s.logger.Warn().Msg("ffprobe not found, media probing disabled")
	} else {
		s.logger.Debug().Str("path", s.binary).Msg("using ffprobe")
	}
	return s
}

// IsAvailable reports whether ffprobe was found.
func (s *Service) IsAvailable() bool {
	return s.binary != ""
}

// Probe extracts media information from a file. Without ffprobe it
// returns an empty result rather than an error so import still works.
func (s *Service) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if s.binary == "" {
		return &MediaInfo{}, nil
	}

	if s.ttl > 0 {
		if info := s.getCached(path); info != nil {
			return info, nil
		}
	}

	info, err := s.runFFprobe(ctx, path)
	if err != nil {
		return nil, err
	}

	if s.ttl > 0 {
		s.setCache(path, info)
	}
	return info, nil
}

// ProbeWithFallback probes a file; on failure it logs and returns the
// fallback so callers can keep title-parsed values.
func (s *Service) ProbeWithFallback(ctx context.Context, path string, fallback *MediaInfo) *MediaInfo {
	info, err := s.Probe(ctx, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("probe failed, using fallback")
		if fallback != nil {
			return fallback
		}
		return &MediaInfo{}
	}
	if fallback != nil {
		merge(info, fallback)
	}
	return info
}

// getCached returns a cached probe when fresh and the file is unchanged.
func (s *Service) getCached(path string) *MediaInfo {
	s.mu.RLock()
	entry, ok := s.cache[path]
	s.mu.RUnlock()
	if !ok || time.Since(entry.probedAt) > s.ttl {
		return nil
	}

	stat, err := os.Stat(path)
	if err != nil || stat.Size() != entry.size || !stat.ModTime().Equal(entry.modTime) {
		return nil
	}
	return entry.info
}

func (s *Service) setCache(path string, info *MediaInfo) {
	stat, err := os.Stat(path)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[path] = &cacheEntry{
		info:     info,
		probedAt: time.Now(),
		size:     stat.Size(),
		modTime:  stat.ModTime(),
	}
}

// merge fills empty probed fields from the fallback.
func merge(info, fallback *MediaInfo) {
	if info.VideoCodec == "" {
		info.VideoCodec = fallback.VideoCodec
	}
	if info.AudioCodec == "" {
		info.AudioCodec = fallback.AudioCodec
	}
	if info.AudioChannels == "" {
		info.AudioChannels = fallback.AudioChannels
	}
	if info.Width == 0 {
		info.Width = fallback.Width
	}
	if info.Height == 0 {
		info.Height = fallback.Height
	}
	if info.Duration == 0 {
		info.Duration = fallback.Duration
	}
}

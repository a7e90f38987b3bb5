package downloader

import (
	"errors"
	"fmt"

	"github.com/sideline/sideline/internal/downloader/mock"
	"github.com/sideline/sideline/internal/downloader/qbittorrent"
	"github.com/sideline/sideline/internal/downloader/sabnzbd"
	"github.com/sideline/sideline/internal/downloader/transmission"
	"github.com/sideline/sideline/internal/downloader/types"
)

// ErrUnsupportedClient indicates an unknown download client type.
var ErrUnsupportedClient = errors.New("unsupported download client type")

// NewClient constructs a protocol client for the given type.
func NewClient(clientType types.ClientType, cfg *types.ClientConfig) (types.Client, error) {
	switch clientType {
	case types.ClientTypeQBittorrent:
		return qbittorrent.NewFromConfig(cfg), nil
	case types.ClientTypeTransmission:
		return transmission.NewFromConfig(cfg), nil
	case types.ClientTypeSABnzbd:
		return sabnzbd.NewFromConfig(cfg), nil
	case types.ClientTypeMock:
		return mock.NewFromConfig(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClient, clientType)
	}
}

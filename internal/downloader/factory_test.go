package downloader

import (
	"errors"
	"testing"

	"github.com/sideline/sideline/internal/downloader/types"
)

func TestNewClient(t *testing.T) {
	cfg := &types.ClientConfig{Host: "localhost", Port: 8080}

	tests := []struct {
		clientType types.ClientType
		protocol   types.Protocol
	}{
		{types.ClientTypeQBittorrent, types.ProtocolTorrent},
		{types.ClientTypeTransmission, types.ProtocolTorrent},
		{types.ClientTypeSABnzbd, types.ProtocolUsenet},
		{types.ClientTypeMock, types.ProtocolTorrent},
	}

	for _, tt := range tests {
		t.Run(string(tt.clientType), func(t *testing.T) {
			client, err := NewClient(tt.clientType, cfg)
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if client.Type() != tt.clientType {
				t.Errorf("Type() = %s, want %s", client.Type(), tt.clientType)
			}
			if client.Protocol() != tt.protocol {
				t.Errorf("Protocol() = %s, want %s", client.Protocol(), tt.protocol)
			}
		})
	}
}

func TestNewClientUnsupported(t *testing.T) {
	_, err := NewClient(types.ClientType("rtorrent"), &types.ClientConfig{})
	if !errors.Is(err, ErrUnsupportedClient) {
		t.Errorf("NewClient() error = %v, want ErrUnsupportedClient", err)
	}
}

func TestTorrentInfoHash(t *testing.T) {
	payload := []byte("d4:infod6:lengthi5e4:name5:hello12:piece lengthi16384e6:pieces20:aaaaaaaaaaaaaaaaaaaaee")

	hash, err := TorrentInfoHash(payload)
	if err != nil {
		t.Fatalf("TorrentInfoHash() error = %v", err)
	}
	if len(hash) != 40 {
		t.Errorf("hash = %q, want 40 hex chars", hash)
	}

	again, err := TorrentInfoHash(payload)
	if err != nil {
		t.Fatalf("TorrentInfoHash() error = %v", err)
	}
	if hash != again {
		t.Error("expected a deterministic hash for identical payloads")
	}

	if _, err := TorrentInfoHash([]byte("not a torrent")); err == nil {
		t.Error("expected an error for garbage payloads")
	}
}

func TestMagnetInfoHash(t *testing.T) {
	hash := MagnetInfoHash("magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a&dn=test")
	if hash != "c12fe1c06bba254a9dc9f519b335aa7c1367a88a" {
		t.Errorf("MagnetInfoHash() = %q", hash)
	}

	if hash := MagnetInfoHash("http://example.com/file.torrent"); hash != "" {
		t.Errorf("MagnetInfoHash(non-magnet) = %q, want empty", hash)
	}
}

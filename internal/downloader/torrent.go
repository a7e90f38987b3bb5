package downloader

import (
	"bytes"
	"fmt"

	"github.com/anacrolix/torrent/metainfo"
)

// TorrentInfoHash computes the infohash of a raw torrent payload. The
// grab path records it before the torrent reaches a client, so failed
// downloads can be blocklisted even when the client loses the torrent.
func TorrentInfoHash(content []byte) (string, error) {
	mi, err := metainfo.Load(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse torrent file: %w", err)
	}
	return mi.HashInfoBytes().HexString(), nil
}

// MagnetInfoHash extracts the infohash from a magnet link. It returns
// the empty string when the link carries no parseable btih.
func MagnetInfoHash(magnetURL string) string {
	m, err := metainfo.ParseMagnetUri(magnetURL)
	if err != nil {
		return ""
	}
	return m.InfoHash.HexString()
}

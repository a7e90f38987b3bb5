package newznab

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/parser"
	"github.com/sideline/sideline/internal/store"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string       `xml:"title"`
	GUID      string       `xml:"guid"`
	Link      string       `xml:"link"`
	Comments  string       `xml:"comments"`
	PubDate   string       `xml:"pubDate"`
	Enclosure rssEnclosure `xml:"enclosure"`
	// Matches both torznab:attr and newznab:attr.
	Attrs []rssAttr `xml:"attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type rssAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// apiError is the Newznab failure document, served with HTTP 200.
type apiError struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

func parseResponse(payload []byte, ix store.Indexer) ([]types.ReleaseInfo, error) {
	var apiErr apiError
	if xml.Unmarshal(payload, &apiErr) == nil {
		// Codes 100-199 are account problems (bad key, suspended, denied).
		if apiErr.Code >= 100 && apiErr.Code < 200 {
			return nil, &types.RequestError{IndexerName: ix.Name, StatusCode: http.StatusUnauthorized}
		}
		return nil, fmt.Errorf("indexer error %d: %s", apiErr.Code, apiErr.Description)
	}

	var doc rssDoc
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("invalid response XML: %w", err)
	}

	now := time.Now().UTC()
	releases := make([]types.ReleaseInfo, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		rel, ok := itemToRelease(item, ix, now)
		if !ok {
			continue
		}
		releases = append(releases, rel)
	}
	return releases, nil
}

// itemToRelease converts one feed item, reporting ok=false for items too
// malformed to use. One bad item never fails the whole response.
func itemToRelease(item rssItem, ix store.Indexer, now time.Time) (types.ReleaseInfo, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return types.ReleaseInfo{}, false
	}

	attrs := attrMap(item.Attrs)

	downloadURL := strings.TrimSpace(item.Enclosure.URL)
	if downloadURL == "" {
		downloadURL = strings.TrimSpace(item.Link)
	}
	if magnet := firstMagnet(attrs["magneturl"], item.Link, item.Enclosure.URL, item.GUID); magnet != "" {
		downloadURL = magnet
	}
	if downloadURL == "" {
		return types.ReleaseInfo{}, false
	}

	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = downloadURL
	}

	size := parseI64(attrs["size"])
	if size == 0 && item.Enclosure.Length > 0 {
		size = item.Enclosure.Length
	}

	seeders := parseIntAttr(attrs["seeders"])
	leechers := parseIntAttr(attrs["leechers"])
	if leechers == 0 {
		if peers := parseIntAttr(attrs["peers"]); peers > seeders {
			leechers = peers - seeders
		}
	}

	infoURL := strings.TrimSpace(item.Comments)
	if infoURL == "" {
		infoURL = strings.TrimSpace(attrs["details"])
	}

	rel := types.ReleaseInfo{
		GUID:        guid,
		Title:       title,
		DownloadURL: downloadURL,
		InfoURL:     infoURL,
		Size:        size,
		PublishDate: parsePubDate(item.PubDate),
		Categories:  categoryAttrs(item.Attrs),
		IndexerID:   ix.ID,
		IndexerName: ix.Name,
		Protocol:    protocolFor(ix, downloadURL, item.Enclosure.Type),
		Seeders:     seeders,
		Leechers:    leechers,
		InfoHash:    strings.ToLower(strings.TrimSpace(attrs["infohash"])),
	}
	rel.Score = transportScore(rel, now)
	return rel, true
}

// transportScore ranks releases within one response: seeders, headline
// resolution, and freshness. Quality decisions proper happen downstream
// in the matcher and scorer; this only breaks ties.
func transportScore(rel types.ReleaseInfo, now time.Time) int {
	score := rel.Seeders
	if score > 50 {
		score = 50
	}

	parsed := parser.Parse(rel.Title)
	switch parsed.Quality.Resolution {
	case 2160:
		score += 20
	case 1080:
		score += 15
	case 720:
		score += 10
	}

	if !rel.PublishDate.IsZero() {
		switch age := now.Sub(rel.PublishDate); {
		case age < 24*time.Hour:
			score += 10
		case age < 7*24*time.Hour:
			score += 5
		}
	}
	return score
}

type capsDoc struct {
	XMLName xml.Name `xml:"caps"`
	Server  struct {
		Title string `xml:"title,attr"`
	} `xml:"server"`
	Searching struct {
		Search struct {
			Available string `xml:"available,attr"`
		} `xml:"search"`
	} `xml:"searching"`
	Categories struct {
		Categories []capsCategory `xml:"category"`
	} `xml:"categories"`
}

type capsCategory struct {
	ID      int            `xml:"id,attr"`
	Name    string         `xml:"name,attr"`
	Subcats []capsCategory `xml:"subcat"`
}

func parseCaps(payload []byte, ix store.Indexer) (types.Capabilities, error) {
	var apiErr apiError
	if xml.Unmarshal(payload, &apiErr) == nil {
		if apiErr.Code >= 100 && apiErr.Code < 200 {
			return types.Capabilities{}, &types.RequestError{IndexerName: ix.Name, StatusCode: http.StatusUnauthorized}
		}
		return types.Capabilities{}, fmt.Errorf("indexer error %d: %s", apiErr.Code, apiErr.Description)
	}

	var doc capsDoc
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return types.Capabilities{}, fmt.Errorf("invalid caps XML: %w", err)
	}

	caps := types.Capabilities{
		Server:     doc.Server.Title,
		SearchMode: doc.Searching.Search.Available,
	}
	for _, cat := range doc.Categories.Categories {
		caps.Categories = append(caps.Categories, types.CategoryMapping{ID: cat.ID, Name: cat.Name})
		for _, sub := range cat.Subcats {
			caps.Categories = append(caps.Categories, types.CategoryMapping{ID: sub.ID, Name: sub.Name})
		}
	}
	return caps, nil
}

func attrMap(attrs []rssAttr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(strings.TrimSpace(attr.Name))
		if key == "" {
			continue
		}
		if _, exists := m[key]; exists {
			continue
		}
		m[key] = strings.TrimSpace(attr.Value)
	}
	return m
}

func categoryAttrs(attrs []rssAttr) []int {
	var cats []int
	for _, attr := range attrs {
		if !strings.EqualFold(strings.TrimSpace(attr.Name), "category") {
			continue
		}
		if id, err := strconv.Atoi(strings.TrimSpace(attr.Value)); err == nil {
			cats = append(cats, id)
		}
	}
	return cats
}

func protocolFor(ix store.Indexer, downloadURL, enclosureType string) types.Protocol {
	switch ix.Protocol {
	case string(types.ProtocolUsenet):
		return types.ProtocolUsenet
	case string(types.ProtocolTorrent):
		return types.ProtocolTorrent
	}
	if enclosureType == "application/x-nzb" || strings.Contains(downloadURL, ".nzb") {
		return types.ProtocolUsenet
	}
	return types.ProtocolTorrent
}

func firstMagnet(candidates ...string) string {
	for _, candidate := range candidates {
		value := strings.TrimSpace(candidate)
		if strings.HasPrefix(strings.ToLower(value), "magnet:?") {
			return value
		}
	}
	return ""
}

func parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC3339,
	} {
		if at, err := time.Parse(layout, raw); err == nil {
			return at.UTC()
		}
	}
	return time.Time{}
}

func parseIntAttr(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

func parseI64(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

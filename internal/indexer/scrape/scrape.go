// Package scrape pulls magnet links and infohashes out of release info
// pages when an indexer's feed omits them. The grab path needs the hash
// for blocklist bookkeeping on torrent releases.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const maxPageSize = 5 * 1024 * 1024

var infohashPattern = regexp.MustCompile(`\b[0-9a-fA-F]{40}\b`)

// Result holds whatever torrent identifiers a page yielded.
type Result struct {
	MagnetURL string
	InfoHash  string
}

// Scraper fetches release info pages over HTTP.
type Scraper struct {
	http   *http.Client
	logger zerolog.Logger
}

func NewScraper(logger zerolog.Logger) *Scraper {
	return &Scraper{
		http:   &http.Client{Timeout: 20 * time.Second},
		logger: logger.With().Str("component", "scrape").Logger(),
	}
}

// FetchInfoHash loads the page at infoURL and hunts for a magnet link or
// a bare 40-hex infohash.
func (s *Scraper) FetchInfoHash(ctx context.Context, infoURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", "Sideline/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("info page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("info page returned HTTP %d", resp.StatusCode)
	}

	res, err := Extract(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return Result{}, err
	}

	s.logger.Debug().
		Str("url", infoURL).
		Str("infohash", res.InfoHash).
		Msg("Scraped info page")
	return res, nil
}

// Extract parses HTML and returns the first magnet link, falling back to
// a bare infohash anywhere in the page text.
func Extract(r io.Reader) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var res Result
	doc.Find(`a[href^="magnet:"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		res.MagnetURL = strings.TrimSpace(href)
		res.InfoHash = InfoHashFromMagnet(res.MagnetURL)
		return false
	})
	if res.MagnetURL != "" {
		return res, nil
	}

	if hash := infohashPattern.FindString(doc.Text()); hash != "" {
		res.InfoHash = strings.ToLower(hash)
		return res, nil
	}
	return res, fmt.Errorf("no magnet link or infohash on page")
}

// InfoHashFromMagnet pulls the btih parameter out of a magnet URL.
// Base32-encoded hashes are rare on modern trackers and not handled.
func InfoHashFromMagnet(magnet string) string {
	u, err := url.Parse(magnet)
	if err != nil {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if !strings.HasPrefix(xt, "urn:btih:") {
			continue
		}
		hash := strings.TrimPrefix(xt, "urn:btih:")
		if len(hash) == 40 {
			return strings.ToLower(hash)
		}
	}
	return ""
}

package epg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// xmltvChannel is the <channel> element of an XMLTV document.
type xmltvChannel struct {
	ID           string   `xml:"id,attr"`
	DisplayNames []string `xml:"display-name"`
}

// xmltvProgramme is the <programme> element of an XMLTV document.
type xmltvProgramme struct {
	Start      string   `xml:"start,attr"`
	Stop       string   `xml:"stop,attr"`
	Channel    string   `xml:"channel,attr"`
	Title      string   `xml:"title"`
	SubTitle   string   `xml:"sub-title"`
	Desc       string   `xml:"desc"`
	Categories []string `xml:"category"`
}

// decodeXMLTV walks an XMLTV document element by element so multi-hundred-MB
// guides never load whole. Channels precede programmes in the format.
func decodeXMLTV(r io.Reader, onChannel func(xmltvChannel) error, onProgramme func(xmltvProgramme) error) error {
	dec := xml.NewDecoder(r)
	// Guide feeds come from outside; no entity expansion.
	dec.Entity = map[string]string{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed xmltv: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "channel":
			var c xmltvChannel
			if err := dec.DecodeElement(&c, &se); err != nil {
				return fmt.Errorf("malformed channel element: %w", err)
			}
			if err := onChannel(c); err != nil {
				return err
			}
		case "programme":
			var p xmltvProgramme
			if err := dec.DecodeElement(&p, &se); err != nil {
				return fmt.Errorf("malformed programme element: %w", err)
			}
			if err := onProgramme(p); err != nil {
				return err
			}
		}
	}
}

// xmltvTimeLayouts covers the standard XMLTV timestamp plus common
// truncations feeds use.
var xmltvTimeLayouts = []string{
	"20060102150405 -0700",
	"20060102150405",
	"200601021504 -0700",
	"200601021504",
}

// parseXMLTVTime parses an XMLTV timestamp. Zoneless forms are read as UTC.
func parseXMLTVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range xmltvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized xmltv time %q", s)
}

var (
	channelSuffix = regexp.MustCompile(`\s+(hd|uhd|fhd|sd|4k|8k|us|uk|ca|au)$`)
	multiSpace    = regexp.MustCompile(`\s+`)
)

// NormalizeChannelName reduces a channel display name to a comparison key:
// NFC unicode, lowercase, quality/region suffixes stripped repeatedly so
// "ESPN 2 HD US" and "espn 2" collide.
func NormalizeChannelName(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = norm.NFC.String(s)

	for {
		before := s
		s = channelSuffix.ReplaceAllString(s, "")
		if s == before {
			break
		}
	}
	return multiSpace.ReplaceAllString(s, " ")
}

// sportsKeywords mark a programme category as sports content.
var sportsKeywords = []string{
	"sport", "football", "soccer", "basketball", "baseball", "hockey",
	"boxing", "mma", "martial arts", "wrestling", "motorsport", "racing",
	"motor racing", "tennis", "golf", "rugby", "cricket", "athletics",
}

// isSportsProgramme reports whether any category marks the programme as
// sports content. Title text is deliberately not consulted; category data
// is curated, titles are noise.
func isSportsProgramme(categories []string) bool {
	for _, c := range categories {
		lc := strings.ToLower(c)
		for _, kw := range sportsKeywords {
			if strings.Contains(lc, kw) {
				return true
			}
		}
	}
	return false
}

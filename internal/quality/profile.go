package quality

import (
	"encoding/json"
	"time"
)

// QualityItem is one slot in a profile's ordered quality list. A slot is
// either a single quality (Quality set) or a named group of qualities
// (Qualities set), e.g. a "WEB 1080p" group covering WEB-DL and WEBRip.
type QualityItem struct {
	Name      string   `json:"name,omitempty"`
	Quality   string   `json:"quality,omitempty"`
	Qualities []string `json:"qualities,omitempty"`
	Allowed   bool     `json:"allowed"`
}

// Members returns the quality names this slot covers.
func (i QualityItem) Members() []string {
	if len(i.Qualities) > 0 {
		return i.Qualities
	}
	if i.Quality != "" {
		return []string{i.Quality}
	}
	if i.Name != "" {
		return []string{i.Name}
	}
	return nil
}

// Label returns the display name of the slot.
func (i QualityItem) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Quality
}

// FormatItem assigns a score to a custom format within a profile.
type FormatItem struct {
	FormatID int64  `json:"formatId"`
	Name     string `json:"name,omitempty"`
	Score    int    `json:"score"`
}

// Profile is a user-configured quality profile.
type Profile struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	UpgradesAllowed bool          `json:"upgradesAllowed"`
	Cutoff          int           `json:"cutoff"` // catalog quality ID; upgrades stop at or above it
	Items           []QualityItem `json:"items"`
	FormatItems     []FormatItem  `json:"formatItems,omitempty"`
	MinFormatScore  int           `json:"minFormatScore"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// IsAllowed reports whether a quality label is accepted by any allowed slot.
func (p *Profile) IsAllowed(label string) bool {
	key := normalizeLabel(label)
	for _, item := range p.Items {
		if !item.Allowed {
			continue
		}
		for _, member := range item.Members() {
			if normalizeLabel(member) == key {
				return true
			}
		}
	}
	return false
}

// cutoffWeight returns the catalog weight of the cutoff quality.
func (p *Profile) cutoffWeight() int {
	if d, ok := DefinitionByID(p.Cutoff); ok {
		return d.Weight
	}
	return 0
}

// MeetsCutoff reports whether a quality label is at or above the profile
// cutoff, meaning no further upgrades should be sought.
func (p *Profile) MeetsCutoff(label string) bool {
	for _, d := range Definitions {
		if normalizeLabel(d.Name) == normalizeLabel(label) {
			return d.Weight >= p.cutoffWeight()
		}
	}
	return false
}

// IsUpgrade reports whether candidate improves on current under this profile.
// Disallowed candidates and profiles with upgrades disabled never upgrade.
func (p *Profile) IsUpgrade(currentLabel, candidateLabel string) bool {
	if !p.UpgradesAllowed {
		return false
	}
	if !p.IsAllowed(candidateLabel) {
		return false
	}
	if currentLabel != "" && p.MeetsCutoff(currentLabel) {
		return false
	}

	current, okCurrent := definitionByLabel(currentLabel)
	candidate, okCandidate := definitionByLabel(candidateLabel)
	if !okCandidate {
		return false
	}
	if !okCurrent {
		return true
	}
	return candidate.Weight > current.Weight
}

func definitionByLabel(label string) (Definition, bool) {
	key := normalizeLabel(label)
	for _, d := range Definitions {
		if normalizeLabel(d.Name) == key {
			return d, true
		}
	}
	return Definition{}, false
}

// SerializeItems encodes quality items for database storage.
func SerializeItems(items []QualityItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializeItems parses quality items from their stored form.
func DeserializeItems(data string) ([]QualityItem, error) {
	var items []QualityItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SerializeFormatItems encodes format score assignments for storage.
func SerializeFormatItems(items []FormatItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializeFormatItems parses format score assignments.
func DeserializeFormatItems(data string) ([]FormatItem, error) {
	if data == "" {
		return nil, nil
	}
	var items []FormatItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DefaultProfile accepts everything, cutting off at Bluray-1080p.
func DefaultProfile() Profile {
	items := make([]QualityItem, 0, len(Definitions))
	for _, d := range Definitions {
		items = append(items, QualityItem{Quality: d.Name, Allowed: true})
	}
	return Profile{
		Name:            "Any",
		UpgradesAllowed: true,
		Cutoff:          11, // Bluray-1080p
		Items:           items,
	}
}

// HD1080pProfile targets 1080p broadcasts and WEB releases, grouping the two
// WEB flavors so either satisfies the slot.
func HD1080pProfile() Profile {
	return Profile{
		Name:            "HD-1080p",
		UpgradesAllowed: true,
		Cutoff:          10, // WEB-DL-1080p
		Items: []QualityItem{
			{Quality: "HDTV-720p", Allowed: true},
			{Quality: "WEB-DL-720p", Allowed: true},
			{Quality: "HDTV-1080p", Allowed: true},
			{Quality: "RawHD", Allowed: true},
			{Name: "WEB 1080p", Qualities: []string{"WEB-DL-1080p", "WEBRip-1080p"}, Allowed: true},
			{Quality: "Bluray-1080p", Allowed: true},
		},
	}
}

// UltraHDProfile targets 2160p content.
func UltraHDProfile() Profile {
	return Profile{
		Name:            "Ultra-HD",
		UpgradesAllowed: true,
		Cutoff:          15, // WEB-DL-2160p
		Items: []QualityItem{
			{Quality: "HDTV-1080p", Allowed: true},
			{Name: "WEB 1080p", Qualities: []string{"WEB-DL-1080p", "WEBRip-1080p"}, Allowed: true},
			{Quality: "HDTV-2160p", Allowed: true},
			{Name: "WEB 2160p", Qualities: []string{"WEB-DL-2160p", "WEBRip-2160p"}, Allowed: true},
			{Quality: "Bluray-2160p", Allowed: true},
			{Quality: "Remux-2160p", Allowed: true},
		},
	}
}

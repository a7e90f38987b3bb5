package quality

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sideline/sideline/internal/parser"
)

// Specification axes a custom format can test.
const (
	SpecReleaseTitle = "releaseTitle" // regex over the raw title
	SpecLanguage     = "language"     // parsed language, exact (case-insensitive)
	SpecSource       = "source"       // parsed source, exact (case-insensitive)
	SpecResolution   = "resolution"   // parsed resolution, exact
	SpecReleaseGroup = "releaseGroup" // parsed group, exact (case-insensitive)
	SpecSize         = "size"         // release size within a "min-max" megabyte range
)

// Specification is a single predicate within a custom format.
type Specification struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Negate   bool   `json:"negate,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// CustomFormat is a named bundle of specifications. A format matches a
// release iff every required specification matches (after negation) and at
// least one non-required specification matches, or none exist.
type CustomFormat struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Specifications []Specification `json:"specifications"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// SerializeSpecifications encodes specifications for database storage.
func SerializeSpecifications(specs []Specification) (string, error) {
	data, err := json.Marshal(specs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeserializeSpecifications parses stored specifications.
func DeserializeSpecifications(data string) ([]Specification, error) {
	if data == "" {
		return nil, nil
	}
	var specs []Specification
	if err := json.Unmarshal([]byte(data), &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// Matches evaluates the format against a release title, its parse, and the
// release size in bytes (zero when unknown).
func (f *CustomFormat) Matches(title string, parsed parser.ParsedTitle, size int64) bool {
	anyOptional := false
	hasOptional := false

	for _, spec := range f.Specifications {
		hit := spec.evaluate(title, parsed, size)
		if spec.Negate {
			hit = !hit
		}
		if spec.Required {
			if !hit {
				return false
			}
			continue
		}
		hasOptional = true
		if hit {
			anyOptional = true
		}
	}

	return !hasOptional || anyOptional
}

var (
	regexCacheMu sync.RWMutex
	regexCache   = map[string]*regexp.Regexp{}
)

// compileCached compiles a case-insensitive pattern once per process. Formats
// are evaluated against every candidate release, so recompiles add up.
func compileCached(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.RLock()
	re, ok := regexCache[pattern]
	regexCacheMu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}

	regexCacheMu.Lock()
	regexCache[pattern] = re
	regexCacheMu.Unlock()
	return re, nil
}

func (s *Specification) evaluate(title string, parsed parser.ParsedTitle, size int64) bool {
	switch s.Type {
	case SpecReleaseTitle:
		re, err := compileCached(s.Value)
		if err != nil {
			return false
		}
		return re.MatchString(title)
	case SpecLanguage:
		return strings.EqualFold(parsed.Language, s.Value)
	case SpecSource:
		return normalizeLabel(parsed.Quality.Source) == normalizeLabel(s.Value)
	case SpecResolution:
		if parsed.Quality.Resolution == 0 {
			return false
		}
		want := strings.TrimSuffix(normalizeLabel(s.Value), "p")
		return want == strconv.Itoa(parsed.Quality.Resolution)
	case SpecReleaseGroup:
		return strings.EqualFold(parsed.ReleaseGroup, s.Value)
	case SpecSize:
		if size <= 0 {
			return false
		}
		minBytes, maxBytes, err := parseSizeRange(s.Value)
		if err != nil {
			return false
		}
		if minBytes > 0 && size < minBytes {
			return false
		}
		if maxBytes > 0 && size > maxBytes {
			return false
		}
		return true
	default:
		return false
	}
}

// parseSizeRange reads a "min-max" megabyte range. Either bound may be empty:
// "800-" means at least 800 MB, "-4000" at most 4000 MB.
func parseSizeRange(value string) (minBytes, maxBytes int64, err error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return 0, 0, fmt.Errorf("size range %q: want min-max", value)
	}
	if lo = strings.TrimSpace(lo); lo != "" {
		mb, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return 0, 0, err
		}
		minBytes = mb * 1024 * 1024
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		mb, err := strconv.ParseInt(hi, 10, 64)
		if err != nil {
			return 0, 0, err
		}
		maxBytes = mb * 1024 * 1024
	}
	return minBytes, maxBytes, nil
}

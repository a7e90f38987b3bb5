package health

import (
	"encoding/json"
	"time"
)

// Status of one tracked item.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Category groups tracked items by subsystem.
type Category string

const (
	CategoryDownloadClients Category = "downloadClients"
	CategoryIndexers        Category = "indexers"
	CategoryRootFolders     Category = "rootFolders"
	CategoryDVR             Category = "dvr"
)

// categories in display order.
var categories = []Category{
	CategoryDownloadClients,
	CategoryIndexers,
	CategoryRootFolders,
	CategoryDVR,
}

// binary categories admit no warning state: a download client or a root
// folder either works or it does not.
func (c Category) binary() bool {
	return c == CategoryDownloadClients || c == CategoryRootFolders
}

func validCategory(c Category) bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}

// Item is one health-tracked resource.
type Item struct {
	ID       string     `json:"id"`
	Category Category   `json:"category"`
	Name     string     `json:"name"`
	Status   Status     `json:"status"`
	Message  string     `json:"message,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
}

// MarshalJSON drops the message and timestamp from healthy items.
func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	p := plain(i)
	if i.Status == StatusOK {
		p.Message = ""
		p.Since = nil
	}
	return json.Marshal(p)
}

// Summary holds per-category issue counts for the dashboard.
type Summary struct {
	Counts    map[Category]Counts `json:"counts"`
	HasIssues bool                `json:"hasIssues"`
}

// Counts tallies items in a category by status.
type Counts struct {
	OK      int `json:"ok"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
}

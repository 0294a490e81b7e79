// Package snapshot condenses an aggregation result into a small summary and
// encodes it as a URL-safe token, optionally sealed with a passphrase.
package snapshot

import (
	"time"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
)

// MaxEntries bounds the number of groups carried in a summary.
const MaxEntries = 10

// Entry is one group in a summary.
type Entry struct {
	Key   string  `json:"k"`
	Total float64 `json:"t"`
}

// Summary is the shareable projection of a result.
type Summary struct {
	Total          float64   `json:"total"`
	TopKey         string    `json:"topKey"`
	TopTotal       float64   `json:"topTotal"`
	BottomKey      string    `json:"bottomKey"`
	BottomTotal    float64   `json:"bottomTotal"`
	TopN           []Entry   `json:"topN"`
	Groups         int       `json:"groups"`
	GroupKeyColumn string    `json:"groupKeyColumn,omitempty"`
	Attribution    string    `json:"attribution,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Summarize builds a summary from r. Groups in r are already sorted, so the
// first entry is the top group and the last the bottom one. now is stored in
// UTC at millisecond precision.
func Summarize(r *aggregate.Result, attribution string, now time.Time) (Summary, error) {
	if r == nil || len(r.Groups) == 0 {
		return Summary{}, ErrNothingToShare
	}
	top, bottom := r.Groups[0], r.Groups[len(r.Groups)-1]
	n := min(len(r.Groups), MaxEntries)
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = Entry{Key: r.Groups[i].Key, Total: r.Groups[i].Total}
	}
	return Summary{
		Total:          r.GrandTotal(),
		TopKey:         top.Key,
		TopTotal:       top.Total,
		BottomKey:      bottom.Key,
		BottomTotal:    bottom.Total,
		TopN:           entries,
		Groups:         len(r.Groups),
		GroupKeyColumn: r.GroupKeyColumn,
		Attribution:    attribution,
		CreatedAt:      normalizeTime(now),
	}, nil
}

func normalizeTime(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

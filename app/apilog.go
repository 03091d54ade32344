package app

import (
	"sync"
	"time"
)

const apiLogMaxEntries = 200

// APICall describes one outbound request made to load location or marker
// records.
type APICall struct {
	// Transport is how the records were fetched: http, s3 or feed
	Transport string
	// Kind is what the records are for: locations or markers. Empty when
	// the source was fetched outside a session, e.g. by a test.
	Kind     string
	Method   string
	URL      string
	Status   int
	Records  int
	Duration time.Duration
	Err      error
}

// APILogEntry is a recorded APICall
type APILogEntry struct {
	Time      time.Time     `json:"time"`
	Transport string        `json:"transport"`
	Kind      string        `json:"kind,omitempty"`
	Method    string        `json:"method"`
	URL       string        `json:"url"`
	Status    int           `json:"status"`
	Records   int           `json:"records"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

var (
	apiLogMu      sync.Mutex
	apiLogEntries []*APILogEntry
)

// RecordAPICall appends c to the in-memory fetch log, dropping the oldest
// entry once there are more than apiLogMaxEntries.
func RecordAPICall(c APICall) {
	entry := &APILogEntry{
		Time:      time.Now(),
		Transport: c.Transport,
		Kind:      c.Kind,
		Method:    c.Method,
		URL:       c.URL,
		Status:    c.Status,
		Records:   c.Records,
		Duration:  c.Duration,
	}
	if c.Err != nil {
		entry.Error = c.Err.Error()
	}
	apiLogMu.Lock()
	apiLogEntries = append(apiLogEntries, entry)
	if len(apiLogEntries) > apiLogMaxEntries {
		apiLogEntries = apiLogEntries[len(apiLogEntries)-apiLogMaxEntries:]
	}
	apiLogMu.Unlock()
}

// GetAPILog returns the fetch log, newest first. kinds, if given, limits it
// to entries of those kinds.
func GetAPILog(kinds ...string) []*APILogEntry {
	apiLogMu.Lock()
	defer apiLogMu.Unlock()
	result := make([]*APILogEntry, 0, len(apiLogEntries))
	for i := len(apiLogEntries) - 1; i >= 0; i-- {
		if e := apiLogEntries[i]; len(kinds) == 0 || hasKind(kinds, e.Kind) {
			result = append(result, e)
		}
	}
	return result
}

func hasKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

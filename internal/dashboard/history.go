package dashboard

import (
	"sync"
	"time"
)

// Refresh outcomes
const (
	RefreshPending = "pending"
	RefreshApplied = "applied"
	RefreshStale   = "stale"
	RefreshFailed  = "failed"
)

// RefreshRecord describes one table refresh
type RefreshRecord struct {
	Seq         uint64     `json:"seq"`
	Query       string     `json:"query"`
	Status      string     `json:"status"` // pending, applied, stale, failed
	Rows        int        `json:"rows"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RefreshHistory is a thread-safe ring buffer of refresh records
type RefreshHistory struct {
	mu      sync.RWMutex
	entries []RefreshRecord
	cap     int
}

// NewRefreshHistory creates a history with the given capacity
func NewRefreshHistory(capacity int) *RefreshHistory {
	if capacity <= 0 {
		capacity = 1
	}
	return &RefreshHistory{
		entries: make([]RefreshRecord, 0, capacity),
		cap:     capacity,
	}
}

// Add adds a record to the history
func (h *RefreshHistory) Add(rec RefreshRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = rec
	} else {
		h.entries = append(h.entries, rec)
	}
}

// Entries returns all records (newest first)
func (h *RefreshHistory) Entries() []RefreshRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]RefreshRecord, len(h.entries))
	for i, j := 0, len(h.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = h.entries[j]
	}
	return result
}

// Complete sets the final status of a record by sequence number
func (h *RefreshHistory) Complete(seq uint64, status string, rows int, errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Seq == seq {
			h.entries[i].Status = status
			h.entries[i].Rows = rows
			if errMsg != "" {
				h.entries[i].Error = errMsg
			}
			now := time.Now()
			h.entries[i].CompletedAt = &now
			return
		}
	}
}

// Package memory holds conversation state between agent runs: a bounded
// message log, a vector store searched by cosine similarity, and a
// Conversation that combines the two.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/types"
)

// MessageMemoryConfig bounds a message memory.
type MessageMemoryConfig struct {
	// MaxMessages caps the log; the oldest message is dropped when adding
	// past the cap. Zero means 100.
	MaxMessages int
	// TTL hides messages older than this from reads. Zero disables
	// expiry.
	TTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// MessageMemory is a bounded, optionally expiring conversation log.
type MessageMemory struct {
	mu       sync.RWMutex
	messages []types.Message
	max      int
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewMessageMemory creates a message memory with the given bounds.
func NewMessageMemory(cfg MessageMemoryConfig, logger *zap.Logger) *MessageMemory {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 100
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageMemory{
		max:    cfg.MaxMessages,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: logger.With(zap.String("component", "message_memory")),
	}
}

// Add appends a message, evicting the oldest entries past the cap.
func (m *MessageMemory) Add(msg types.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)
	if over := len(m.messages) - m.max; over > 0 {
		m.messages = append(m.messages[:0:0], m.messages[over:]...)
	}
}

// AddAll appends multiple messages in order.
func (m *MessageMemory) AddAll(msgs ...types.Message) {
	for _, msg := range msgs {
		m.Add(msg)
	}
}

// Messages returns up to n live messages in ascending timestamp order,
// newest-biased: when more than n survive filtering, the most recent n are
// returned. n <= 0 means all. roles, when given, filters to those roles.
func (m *MessageMemory) Messages(n int, roles ...types.Role) []types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := m.liveLocked()
	if len(roles) > 0 {
		want := make(map[types.Role]struct{}, len(roles))
		for _, r := range roles {
			want[r] = struct{}{}
		}
		filtered := live[:0:0]
		for _, msg := range live {
			if _, ok := want[msg.Role]; ok {
				filtered = append(filtered, msg)
			}
		}
		live = filtered
	}

	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Timestamp.Before(live[j].Timestamp)
	})

	if n > 0 && len(live) > n {
		live = live[len(live)-n:]
	}
	out := make([]types.Message, len(live))
	copy(out, live)
	return out
}

// Search returns up to limit live messages whose content contains query.
// limit <= 0 means no limit; roles, when given, filters to those roles.
func (m *MessageMemory) Search(query string, limit int, caseSensitive bool, roles ...types.Role) []types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := query
	if !caseSensitive {
		needle = strings.ToLower(query)
	}
	var want map[types.Role]struct{}
	if len(roles) > 0 {
		want = make(map[types.Role]struct{}, len(roles))
		for _, r := range roles {
			want[r] = struct{}{}
		}
	}

	var out []types.Message
	for _, msg := range m.liveLocked() {
		if want != nil {
			if _, ok := want[msg.Role]; !ok {
				continue
			}
		}
		haystack := msg.Content
		if !caseSensitive {
			haystack = strings.ToLower(haystack)
		}
		if strings.Contains(haystack, needle) {
			out = append(out, msg)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Len counts live messages.
func (m *MessageMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.liveLocked())
}

// Clear drops every message.
func (m *MessageMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// liveLocked returns the unexpired messages. Expired entries stay in the
// slice but are invisible to reads; the cap-driven eviction in Add reclaims
// them over time.
func (m *MessageMemory) liveLocked() []types.Message {
	if m.ttl <= 0 {
		out := make([]types.Message, len(m.messages))
		copy(out, m.messages)
		return out
	}
	cutoff := m.now().Add(-m.ttl)
	var out []types.Message
	for _, msg := range m.messages {
		if msg.Timestamp.After(cutoff) {
			out = append(out, msg)
		}
	}
	return out
}

package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mcpflow/types"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAddAndMessages(t *testing.T) {
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 10}, nil)

	m.Add(types.NewUserMessage("first"))
	m.Add(types.NewAssistantMessage("second"))

	msgs := m.Messages(0)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestCapEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 3, Now: clock.Now}, nil)

	for _, content := range []string{"a", "b", "c", "d"} {
		m.Add(types.NewUserMessage(content))
		clock.Advance(time.Second)
	}

	msgs := m.Messages(0)
	require.Len(t, msgs, 3)
	assert.Equal(t, "b", msgs[0].Content, "oldest entry should be dropped first")
	assert.Equal(t, "d", msgs[2].Content)
}

func TestTTLHidesExpired(t *testing.T) {
	clock := newFakeClock()
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 10, TTL: time.Minute, Now: clock.Now}, nil)

	m.Add(types.NewUserMessage("old"))
	clock.Advance(2 * time.Minute)
	m.Add(types.NewUserMessage("fresh"))

	msgs := m.Messages(0)
	require.Len(t, msgs, 1)
	assert.Equal(t, "fresh", msgs[0].Content)
	assert.Equal(t, 1, m.Len())
}

func TestMessagesLimitKeepsMostRecent(t *testing.T) {
	clock := newFakeClock()
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 10, Now: clock.Now}, nil)

	for _, content := range []string{"a", "b", "c", "d"} {
		m.Add(types.NewUserMessage(content))
		clock.Advance(time.Second)
	}

	msgs := m.Messages(2)
	require.Len(t, msgs, 2)
	assert.Equal(t, "c", msgs[0].Content)
	assert.Equal(t, "d", msgs[1].Content)
}

func TestMessagesRoleFilter(t *testing.T) {
	clock := newFakeClock()
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 10, Now: clock.Now}, nil)

	m.Add(types.NewUserMessage("q1"))
	clock.Advance(time.Second)
	m.Add(types.NewAssistantMessage("a1"))
	clock.Advance(time.Second)
	m.Add(types.NewUserMessage("q2"))

	msgs := m.Messages(0, types.RoleUser)
	require.Len(t, msgs, 2)
	assert.Equal(t, "q1", msgs[0].Content)
	assert.Equal(t, "q2", msgs[1].Content)
}

func TestSearch(t *testing.T) {
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 10}, nil)

	m.Add(types.NewUserMessage("the Weather in Berlin"))
	m.Add(types.NewUserMessage("weather in Paris"))
	m.Add(types.NewUserMessage("stock prices"))

	assert.Len(t, m.Search("weather", 0, false), 2)
	assert.Len(t, m.Search("weather", 1, false), 1)
	assert.Len(t, m.Search("weather", 0, true), 1, "case sensitive search should skip the capitalized match")
	assert.Empty(t, m.Search("nonexistent", 0, false))
}

func TestSearchRoleFilter(t *testing.T) {
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 10}, nil)

	m.Add(types.NewUserMessage("weather in Berlin"))
	m.Add(types.NewAssistantMessage("the weather is mild"))
	m.Add(types.NewUserMessage("weather in Paris"))

	got := m.Search("weather", 0, false, types.RoleUser)
	require.Len(t, got, 2)
	for _, msg := range got {
		assert.Equal(t, types.RoleUser, msg.Role)
	}

	assert.Len(t, m.Search("weather", 0, false, types.RoleAssistant), 1)
	assert.Len(t, m.Search("weather", 0, false), 3, "no roles means no role filter")
}

func TestClear(t *testing.T) {
	m := NewMessageMemory(MessageMemoryConfig{MaxMessages: 10}, nil)
	m.Add(types.NewUserMessage("x"))
	m.Clear()
	assert.Equal(t, 0, m.Len())
}

package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/types"
)

// Conversation combines a message log with an optional vector memory so
// turns are both replayable in order and retrievable by similarity.
type Conversation struct {
	messages *MessageMemory
	vectors  *VectorMemory
	logger   *zap.Logger
}

// NewConversation creates a combined memory. vectors may be nil to disable
// semantic recall.
func NewConversation(messages *MessageMemory, vectors *VectorMemory, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{
		messages: messages,
		vectors:  vectors,
		logger:   logger.With(zap.String("component", "conversation")),
	}
}

// Record stores a turn in the message log and, when vector memory is
// present, indexes its content for recall. Indexing failures are logged,
// not returned; the message log is the source of truth.
func (c *Conversation) Record(ctx context.Context, msg types.Message) {
	c.messages.Add(msg)
	if c.vectors == nil || msg.Content == "" {
		return
	}
	meta := map[string]any{"role": string(msg.Role)}
	if _, err := c.vectors.Add(ctx, msg.Content, meta); err != nil {
		c.logger.Warn("failed to index message", zap.Error(err))
	}
}

// History returns up to n recent messages in chronological order.
func (c *Conversation) History(n int) []types.Message {
	return c.messages.Messages(n)
}

// Recall returns stored content semantically similar to query, or nil when
// vector memory is disabled.
func (c *Conversation) Recall(ctx context.Context, query string, limit int) ([]VectorResult, error) {
	if c.vectors == nil {
		return nil, nil
	}
	return c.vectors.Search(ctx, query, SearchOptions{Limit: limit})
}

// Clear drops both stores.
func (c *Conversation) Clear() {
	c.messages.Clear()
	if c.vectors != nil {
		c.vectors.Clear()
	}
}

package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EmbedFunc maps text to an embedding vector.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// VectorItem is a stored document with its metadata.
type VectorItem struct {
	ID        string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// VectorResult pairs a stored item with its similarity to a query.
type VectorResult struct {
	Item  VectorItem
	Score float64
}

// VectorMemoryConfig configures a vector memory.
type VectorMemoryConfig struct {
	// Dimension of stored vectors; used for the zero-vector fallback when
	// embedding fails. Zero means 128.
	Dimension int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// VectorMemory stores embedded documents for similarity search. Items and
// their vectors are kept in paired maps guarded by one mutex so the two can
// never drift.
type VectorMemory struct {
	mu      sync.RWMutex
	items   map[string]VectorItem
	vectors map[string][]float32
	embed   EmbedFunc
	dim     int
	now     func() time.Time
	logger  *zap.Logger
}

// NewVectorMemory creates a vector memory over the given embedding
// function.
func NewVectorMemory(embed EmbedFunc, cfg VectorMemoryConfig, logger *zap.Logger) *VectorMemory {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 128
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorMemory{
		items:   make(map[string]VectorItem),
		vectors: make(map[string][]float32),
		embed:   embed,
		dim:     cfg.Dimension,
		now:     cfg.Now,
		logger:  logger.With(zap.String("component", "vector_memory")),
	}
}

// Add embeds content and stores it, returning the generated item id. A
// failed embedding stores a zero vector so the item remains retrievable by
// id even though similarity search will never surface it.
func (m *VectorMemory) Add(ctx context.Context, content string, metadata map[string]any) (string, error) {
	vec, err := m.embedOrZero(ctx, content)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	item := VectorItem{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: m.now(),
	}

	m.mu.Lock()
	m.items[id] = item
	m.vectors[id] = vec
	m.mu.Unlock()
	return id, nil
}

func (m *VectorMemory) embedOrZero(ctx context.Context, content string) ([]float32, error) {
	if m.embed == nil {
		return make([]float32, m.dim), nil
	}
	vec, err := m.embed(ctx, content)
	if err != nil {
		m.logger.Warn("embedding failed, storing zero vector", zap.Error(err))
		return make([]float32, m.dim), nil
	}
	if len(vec) == 0 {
		return make([]float32, m.dim), nil
	}
	return vec, nil
}

// Get returns the item with the given id.
func (m *VectorMemory) Get(id string) (VectorItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok
}

// Delete removes an item and its vector together.
func (m *VectorMemory) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	delete(m.vectors, id)
	return true
}

// Len returns the number of stored items.
func (m *VectorMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Clear drops every item and vector.
func (m *VectorMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]VectorItem)
	m.vectors = make(map[string][]float32)
}

// SearchOptions shapes a similarity query.
type SearchOptions struct {
	// Limit caps results. Zero means 5.
	Limit int
	// Threshold drops results scoring below it.
	Threshold float64
	// Filter, when set, keeps only items it accepts.
	Filter func(item VectorItem) bool
}

// Search embeds query and returns the most similar items, highest score
// first.
func (m *VectorMemory) Search(ctx context.Context, query string, opts SearchOptions) ([]VectorResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 5
	}

	if m.embed == nil {
		return nil, fmt.Errorf("vector memory has no embedding function")
	}
	qvec, err := m.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.mu.RLock()
	results := make([]VectorResult, 0, len(m.items))
	for id, item := range m.items {
		score := cosineSimilarity(qvec, m.vectors[id])
		if score < opts.Threshold {
			continue
		}
		if opts.Filter != nil && !opts.Filter(item) {
			continue
		}
		results = append(results, VectorResult{Item: item, Score: score})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is zero-length or zero-magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package runtime

import (
	"math/rand"

	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/records"
)

// ShuffleCache assigns each question a randomized option order exactly
// once per session. The permutation is frozen: re-rendering (navigating
// back, reloading the page) always sees the same order, so a previously
// rendered answer never desynchronizes from its option row.
type ShuffleCache struct {
	repo records.Repository
	key  string
	rng  *rand.Rand
	// orders maps question key to the frozen permutation of option ids.
	orders map[string][]int
}

// NewShuffleCache creates a cache persisting under key in repo.
func NewShuffleCache(repo records.Repository, key string, rng *rand.Rand) *ShuffleCache {
	return &ShuffleCache{
		repo:   repo,
		key:    key,
		rng:    rng,
		orders: make(map[string][]int),
	}
}

// Load rehydrates persisted permutations. Must run before any rendering.
func (c *ShuffleCache) Load() {
	var stored map[string][]int
	if err := c.repo.Get(c.key, &stored); err == nil && stored != nil {
		c.orders = stored
	}
}

// Rekey moves the persistence target after an identity migration.
func (c *ShuffleCache) Rekey(key string) {
	c.key = key
}

// EnsureShuffled returns the question's options in their frozen session
// order, computing an unbiased permutation on first sight. A cached order
// is reused verbatim unless the option count changed, which signals a
// content change and invalidates the order for that question only.
func (c *ShuffleCache) EnsureShuffled(q *model.Question, index int) []model.Option {
	if len(q.Options) == 0 {
		return nil
	}

	key := q.Key(index)
	order, ok := c.orders[key]
	if !ok || len(order) != len(q.Options) {
		order = c.permute(len(q.Options), q.Options)
		c.orders[key] = order
		_ = c.repo.Set(c.key, c.orders)
	}

	byID := make(map[int]model.Option, len(q.Options))
	for _, opt := range q.Options {
		byID[opt.ID] = opt
	}

	shuffled := make([]model.Option, 0, len(order))
	for _, id := range order {
		if opt, ok := byID[id]; ok {
			shuffled = append(shuffled, opt)
		}
	}
	return shuffled
}

// permute runs a Fisher-Yates shuffle over the option ids.
func (c *ShuffleCache) permute(n int, options []model.Option) []int {
	ids := make([]int, n)
	for i, opt := range options {
		ids[i] = opt.ID
	}
	for i := n - 1; i > 0; i-- {
		j := c.rng.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

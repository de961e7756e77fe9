package fingerprint

import (
	"context"
	"runtime"
	"sync"

	xxhash "github.com/OneOfOne/xxhash"
	"golang.org/x/sync/errgroup"
)

const decodeCacheLimit = 4096

// Candidate is a stored fingerprint identified by the record key.
type Candidate struct {
	Key         string
	Fingerprint []byte
}

// Match is the score of one candidate. Valid is false when the stored
// fingerprint could not be decoded; such candidates score 0.
type Match struct {
	Key   string
	Score int
	Valid bool
}

// Matcher scores candidate lists against a query. Decoded candidate
// fingerprints are cached by content so repeated searches skip decoding.
type Matcher struct {
	strategy Strategy
	workers  int

	mu    sync.RWMutex
	cache map[uint64][]uint32
}

func NewMatcher(strategy Strategy) *Matcher {
	if strategy == nil {
		strategy = NewSlidingOffset()
	}
	return &Matcher{
		strategy: strategy,
		workers:  runtime.GOMAXPROCS(0),
		cache:    make(map[uint64][]uint32),
	}
}

// Rank scores every candidate. The result has the same order as cands.
func (m *Matcher) Rank(ctx context.Context, query []uint32, cands []Candidate) ([]Match, error) {
	out := make([]Match, len(cands))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, c := range cands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Match{Key: c.Key}
			raw, err := m.decode(c.Fingerprint)
			if err != nil {
				return nil
			}
			out[i].Score = m.strategy.Score(query, raw)
			out[i].Valid = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Matcher) decode(data []byte) ([]uint32, error) {
	key := xxhash.Checksum64(data)
	m.mu.RLock()
	raw, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return raw, nil
	}

	raw, err := Decode(data)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if len(m.cache) >= decodeCacheLimit {
		clear(m.cache)
	}
	m.cache[key] = raw
	m.mu.Unlock()
	return raw, nil
}

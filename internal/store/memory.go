package store

import (
	"context"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Memory is an in-process Store used in dry-run mode and in tests. A single
// mutex gives Atomic batches the same all-or-nothing visibility the Redis
// transaction does.
type Memory struct {
	mu     sync.Mutex
	lists  map[string][]string
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
	sets   map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		lists:  make(map[string][]string),
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *Memory) BLPop(ctx context.Context, key string) (string, error) {
	for {
		m.mu.Lock()
		if l := m.lists[key]; len(l) > 0 {
			v := l[0]
			m.lists[key] = l[1:]
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *Memory) RPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

// List returns a copy of a queue's contents; test helper.
func (m *Memory) List(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists[key]...)
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hset(key, field, value)
	return nil
}

func (m *Memory) HDel(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hdel(key, fields...)
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) HScanMatch(_ context.Context, key, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var fields []string
	for f := range m.hashes[key] {
		if globMatch(pattern, f) {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return fields, nil
}

func (m *Memory) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zadd(key, member, score)
	return nil
}

func (m *Memory) ZRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zrem(key, members...)
	return nil
}

func (m *Memory) ZRangeByScore(_ context.Context, key, min, max string) ([]ScoredMember, error) {
	lo, err := parseBound(min, false)
	if err != nil {
		return nil, err
	}
	hi, err := parseBound(max, true)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ScoredMember
	for member, score := range m.zsets[key] {
		if score >= lo && score <= hi {
			out = append(out, ScoredMember{Member: member, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out, nil
}

func (m *Memory) ZScanMatch(_ context.Context, key, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var members []string
	for member := range m.zsets[key] {
		if globMatch(pattern, member) {
			members = append(members, member)
		}
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var members []string
	for v := range m.sets[key] {
		members = append(members, v)
	}
	sort.Strings(members)
	return members, nil
}

// SAdd populates a set; test/dry-run helper, not part of the Store contract.
func (m *Memory) SAdd(key string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	for _, v := range members {
		s[v] = struct{}{}
	}
}

func (m *Memory) Atomic(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{}
	if err := fn(tx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range tx.ops {
		op(m)
	}
	return nil
}

// memTx buffers mutations and applies them under the store mutex only when
// the batch closure succeeded.
type memTx struct {
	ops []func(*Memory)
}

func (t *memTx) HSet(key, field, value string) {
	t.ops = append(t.ops, func(m *Memory) { m.hset(key, field, value) })
}

func (t *memTx) HDel(key string, fields ...string) {
	fs := append([]string(nil), fields...)
	t.ops = append(t.ops, func(m *Memory) { m.hdel(key, fs...) })
}

func (t *memTx) ZAdd(key, member string, score float64) {
	t.ops = append(t.ops, func(m *Memory) { m.zadd(key, member, score) })
}

func (t *memTx) ZRem(key string, members ...string) {
	ms := append([]string(nil), members...)
	t.ops = append(t.ops, func(m *Memory) { m.zrem(key, ms...) })
}

func (t *memTx) RPush(key string, values ...string) {
	vs := append([]string(nil), values...)
	t.ops = append(t.ops, func(m *Memory) { m.lists[key] = append(m.lists[key], vs...) })
}

// unlocked primitives, callers hold m.mu

func (m *Memory) hset(key, field, value string) {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
}

func (m *Memory) hdel(key string, fields ...string) {
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
}

func (m *Memory) zadd(key, member string, score float64) {
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
}

func (m *Memory) zrem(key string, members ...string) {
	for _, member := range members {
		delete(m.zsets[key], member)
	}
}

func parseBound(bound string, upper bool) (float64, error) {
	switch strings.ToLower(bound) {
	case "-inf":
		return math.Inf(-1), nil
	case "+inf", "inf":
		return math.Inf(1), nil
	}
	v, err := strconv.ParseFloat(bound, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse range bound %q (upper=%v)", bound, upper)
	}
	return v, nil
}

func globMatch(pattern, s string) bool {
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}

package depcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Hash caches a struct as one hash field per JSON field, so single fields can
// be read, replaced or incremented without rewriting the whole value. Field
// values are JSON; numeric fields are plain integers and support HINCRBY.
type Hash[V any] struct {
	strategy
}

// Key returns the storage key used for suffix in ctx.
func (h *Hash[V]) Key(ctx context.Context, suffix string) string { return h.key(ctx, suffix) }

// GetOrLoad returns the cached value, loading it when absent or when refresh
// (optional) reports the cached copy as outdated.
func (h *Hash[V]) GetOrLoad(ctx context.Context, suffix string, load func(context.Context) (V, error), refresh func(V) bool) (V, error) {
	var zero V
	if load == nil {
		return zero, invalidf("nil loader for %q", suffix)
	}
	key := h.key(ctx, suffix)
	v, ok, err := h.read(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok && (refresh == nil || !refresh(v)) {
		return v, nil
	}
	if ok {
		h.log.Info("hash refresh requested", Fields{"key": key})
		if _, err := h.st.Del(ctx, key); err != nil {
			return zero, err
		}
	}
	if v, err = load(ctx); err != nil {
		return zero, err
	}
	return v, h.write(ctx, key, v)
}

// GetMany returns the cached values of suffixes in order, skipping misses.
func (h *Hash[V]) GetMany(ctx context.Context, suffixes []string) ([]V, error) {
	out := make([]V, 0, len(suffixes))
	for _, s := range suffixes {
		v, ok, err := h.read(ctx, h.key(ctx, s))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Put loads and caches the value only when nothing is cached yet.
func (h *Hash[V]) Put(ctx context.Context, suffix string, load func(context.Context) (V, error)) error {
	if load == nil {
		return invalidf("nil loader for %q", suffix)
	}
	key := h.key(ctx, suffix)
	exists, err := h.st.Exists(ctx, key)
	if err != nil || exists {
		return err
	}
	v, err := load(ctx)
	if err != nil {
		return err
	}
	return h.write(ctx, key, v)
}

func (h *Hash[V]) Delete(ctx context.Context, suffix string) error {
	key := h.key(ctx, suffix)
	h.log.Info("hash deleted", Fields{"key": key})
	_, err := h.st.Del(ctx, key)
	return err
}

// Increment adds by to an integer field. It is a no-op (false) when nothing
// is cached.
func (h *Hash[V]) Increment(ctx context.Context, suffix, field string, by int64) (bool, error) {
	key := h.key(ctx, suffix)
	exists, err := h.st.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}
	_, err = h.st.HIncrBy(ctx, key, field, by)
	return err == nil, err
}

// SetField replaces one field. It is a no-op (false) when nothing is cached.
func (h *Hash[V]) SetField(ctx context.Context, suffix, field string, value any) (bool, error) {
	key := h.key(ctx, suffix)
	exists, err := h.st.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("depcache: encode field %s of %q: %w", field, key, err)
	}
	return true, h.st.HSet(ctx, key, map[string][]byte{field: b})
}

func (h *Hash[V]) read(ctx context.Context, key string) (V, bool, error) {
	var v V
	fields, err := h.st.HGetAll(ctx, key)
	if err != nil || len(fields) == 0 {
		return v, false, err
	}
	if err := json.Unmarshal(joinFields(fields), &v); err != nil {
		h.hooks.DecodeDropped(key, "value_decode")
		h.log.Debug("dropped undecodable hash", Fields{"key": key, "err": err})
		var zero V
		return zero, false, nil
	}
	return v, true, nil
}

func (h *Hash[V]) write(ctx context.Context, key string, v V) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("depcache: encode %q: %w", key, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return invalidf("%s: hash values must encode as JSON objects", h.d.Name)
	}
	fields := make(map[string][]byte, len(raw))
	for f, val := range raw {
		if string(val) != "null" {
			fields[f] = val
		}
	}
	if len(fields) == 0 {
		return nil
	}
	if err := h.st.HSet(ctx, key, fields); err != nil {
		return err
	}
	if err := h.st.Expire(ctx, key, h.ttl()); err != nil {
		return err
	}
	return h.track(ctx, key)
}

// joinFields rebuilds a JSON object from stored fields (sorted for stable output).
func joinFields(fields map[string][]byte) []byte {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(f)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(fields[f])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

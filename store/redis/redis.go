package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/depcache/internal/util"
	st "github.com/unkn0wn-root/depcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

const scanBatch = 100

// incrOnCreate applies the TTL only when INCR created the key, so a window
// never gets extended by later calls inside it.
var incrOnCreate = goredis.NewScript(`
local v = redis.call('INCR', KEYS[1])
if v == 1 and tonumber(ARGV[1]) > 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return v
`)

// Redis is a store.Store over go-redis. Scores are kept as Redis doubles, so
// int64 scores are exact up to 2^53.
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ st.Store = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// Client exposes the underlying client (CLI diagnostics).
func (s *Redis) Client() goredis.UniversalClient { return s.rdb }

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // non-positive => no expiry
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.rdb.Del(ctx, keys...).Result()
}

func (s *Redis) DelByPrefix(ctx context.Context, prefix string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	match := util.GlobEscape(prefix) + "*"
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *Redis) Scan(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	match := util.GlobEscape(prefix) + "*"
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.PExpire(ctx, key, ttl).Err()
}

func (s *Redis) KeyType(ctx context.Context, key string) (string, error) {
	return s.rdb.Type(ctx, key).Result()
}

func (s *Redis) Incr(ctx context.Context, key string, ttlOnCreate time.Duration) (int64, error) {
	return incrOnCreate.Run(ctx, s.rdb, []string{key}, ttlOnCreate.Milliseconds()).Int64()
}

// IncrExpire pipelines INCR + PEXPIRE in a single round-trip and returns the
// INCR result captured from the pipeline.
func (s *Redis) IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		if ttl > 0 {
			p.PExpire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *Redis) GetInt(ctx context.Context, key string) (int64, error) {
	res, err := s.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis counter parse %s: %w", key, err)
	}
	return n, nil
}

func (s *Redis) ZAdd(ctx context.Context, key string, members ...st.ZMember) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]goredis.Z, len(members))
	for i, m := range members {
		zs[i] = goredis.Z{Score: float64(m.Score), Member: m.Member}
	}
	return s.rdb.ZAdd(ctx, key, zs...).Err()
}

func (s *Redis) ZRangeByScoreDesc(ctx context.Context, key string, low, high int64, skip, take int) ([]st.ZMember, error) {
	if take == 0 {
		return nil, nil
	}
	by := &goredis.ZRangeBy{Min: scoreBound(low), Max: scoreBound(high)}
	if skip > 0 || take > 0 {
		by.Offset = int64(skip)
		by.Count = int64(take)
	}
	zs, err := s.rdb.ZRevRangeByScoreWithScores(ctx, key, by).Result()
	if err != nil {
		return nil, err
	}
	out := make([]st.ZMember, 0, len(zs))
	for _, z := range zs {
		out = append(out, st.ZMember{Score: int64(z.Score), Member: memberBytes(z.Member)})
	}
	return out, nil
}

func (s *Redis) ZRemRangeByScore(ctx context.Context, key string, low, high int64) (int64, error) {
	return s.rdb.ZRemRangeByScore(ctx, key, scoreBound(low), scoreBound(high)).Result()
}

func (s *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.rdb.SAdd(ctx, key, args...).Err()
}

func (s *Redis) SScan(ctx context.Context, key string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		members, next, err := s.rdb.SScan(ctx, key, cursor, "", scanBatch).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, members...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *Redis) HSet(ctx context.Context, key string, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]any, len(fields))
	for f, v := range fields {
		m[f] = v
	}
	return s.rdb.HSet(ctx, key, m).Err()
}

func (s *Redis) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	res, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(res))
	for f, v := range res {
		out[f] = []byte(v)
	}
	return out, nil
}

func (s *Redis) HMGet(ctx context.Context, key string, fields ...string) ([][]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	vals, err := s.rdb.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = memberBytes(v)
		}
	}
	return out, nil
}

func (s *Redis) HIncrBy(ctx context.Context, key, field string, by int64) (int64, error) {
	return s.rdb.HIncrBy(ctx, key, field, by).Result()
}

func (s *Redis) RPush(ctx context.Context, key string, values ...[]byte) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.rdb.RPush(ctx, key, args...).Err()
}

func (s *Redis) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	res, err := s.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(res))
	for i, v := range res {
		out[i] = []byte(v)
	}
	return out, nil
}

func (s *Redis) LLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.LLen(ctx, key).Result()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func scoreBound(v int64) string {
	switch v {
	case st.MinScore:
		return "-inf"
	case st.MaxScore:
		return "+inf"
	default:
		return strconv.FormatInt(v, 10)
	}
}

func memberBytes(v any) []byte {
	switch m := v.(type) {
	case string:
		return []byte(m)
	case []byte:
		return m
	default:
		return []byte(fmt.Sprint(m))
	}
}

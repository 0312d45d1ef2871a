package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/depcache"
	rs "github.com/unkn0wn-root/depcache/store/redis"
)

func setup(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := newClient
	newClient = func(*globals) goredis.UniversalClient {
		return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	}
	t.Cleanup(func() { newClient = prev })
	return mr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
strategies:
  - name: feed
    shape: sorted_set
    ttl: 10m
    dependencies: [Video]
  - name: profiles
    shape: dictionary
    location: local
    base_key: profile
    version: 3
    codec: msgpack
`), 0o600))

	out, err := run(t, "validate", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "feed")
	assert.Contains(t, out, "v3:profile")
	assert.Contains(t, out, "10m0s")
	assert.Regexp(t, `profiles\s.*msgpack`, out)
	assert.Regexp(t, `feed\s.*json`, out)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("strategies:\n  - name: x\n    shape: hash\n    location: both\n"), 0o600))
	_, err = run(t, "validate", "--config", bad)
	require.ErrorIs(t, err, depcache.ErrInvalidArgument)

	_, err = run(t, "validate")
	require.Error(t, err)
}

func TestResetPrefixAndAll(t *testing.T) {
	mr := setup(t)
	require.NoError(t, mr.Set("app:feed:1", "x"))
	require.NoError(t, mr.Set("app:feed:2", "x"))
	require.NoError(t, mr.Set("app:user:1", "x"))
	require.NoError(t, mr.Set("session:1", "x"))

	out, err := run(t, "--namespace", "app", "reset", "prefix", "feed:")
	require.NoError(t, err)
	assert.Equal(t, "deleted 2 keys\n", out)
	assert.True(t, mr.Exists("app:user:1"))

	_, err = run(t, "reset", "all")
	require.Error(t, err)

	out, err = run(t, "reset", "all", "--yes", "--keep", "session:")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 keys\n", out)
	assert.True(t, mr.Exists("session:1"))
}

func TestResetDependencyAndDeps(t *testing.T) {
	mr := setup(t)
	ctx := context.Background()

	st, err := rs.New(rs.Config{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), CloseClient: true})
	require.NoError(t, err)
	defer st.Close(ctx)
	tr := depcache.NewTracker(st, "app", nil, nil)
	require.NoError(t, st.Set(ctx, "app:a", []byte("1"), 0))
	require.NoError(t, st.Set(ctx, "app:b", []byte("1"), 0))
	require.NoError(t, tr.Track(ctx, "app:a", "User"))
	require.NoError(t, tr.TrackUser(ctx, 5, "app:b", "User"))

	out, err := run(t, "--namespace", "app", "deps", "User", "--group", "5")
	require.NoError(t, err)
	assert.Equal(t, "app:b\n", out)

	_, err = run(t, "--namespace", "app", "reset", "dependency", "User")
	require.NoError(t, err)
	assert.False(t, mr.Exists("app:a"))
	assert.True(t, mr.Exists("app:b"))

	_, err = run(t, "--namespace", "app", "reset", "dependency", "User", "--group", "5")
	require.NoError(t, err)
	assert.False(t, mr.Exists("app:b"))
}

func TestScoresTop(t *testing.T) {
	mr := setup(t)
	for i, m := range []string{"a", "b", "c", "d"} {
		_, err := mr.ZAdd("app:feed", float64(10*(i+1)), m)
		require.NoError(t, err)
	}

	out, err := run(t, "scores", "top", "app:feed", "--count", "2")
	require.NoError(t, err)
	assert.Equal(t, "d\nc\nnext: 30\n", out)

	out, err = run(t, "scores", "top", "app:feed", "--count", "5", "--below", "30")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, strings.Fields(out))
}

func TestScoresTopDecodesWithCodec(t *testing.T) {
	mr := setup(t)
	_, err := mr.ZAdd("app:users", 2, `{"name":"bob"}`)
	require.NoError(t, err)
	_, err = mr.ZAdd("app:users", 1, `{"name":"ann"}`)
	require.NoError(t, err)

	out, err := run(t, "scores", "top", "app:users", "--codec", "json")
	require.NoError(t, err)
	assert.Equal(t, "map[name:bob]\nmap[name:ann]\n", out)

	_, err = run(t, "scores", "top", "app:users", "--codec", "yaml")
	assert.ErrorContains(t, err, "unknown codec")
}

func TestThrottleStatus(t *testing.T) {
	mr := setup(t)
	require.NoError(t, mr.Set("quota:api", "7"))

	out, err := run(t, "throttle", "status", "quota:api", "quota:none")
	require.NoError(t, err)
	assert.Contains(t, out, "quota:api")
	assert.Regexp(t, `quota:api\s+7`, out)
	assert.Regexp(t, `quota:none\s+0`, out)
}

func TestBadLogLevel(t *testing.T) {
	setup(t)
	_, err := run(t, "--log-level", "loud", "throttle", "status", "k")
	require.Error(t, err)
}

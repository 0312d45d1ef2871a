// Command depcachectl inspects and resets a depcache namespace.
package main

import (
	"context"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/depcache"
	zaplog "github.com/unkn0wn-root/depcache/log/zap"
	rs "github.com/unkn0wn-root/depcache/store/redis"
)

type globals struct {
	redisAddr string
	redisPass string
	redisDB   int
	namespace string
	config    string
	logLevel  string
}

// newClient is replaced in tests.
var newClient = func(g *globals) goredis.UniversalClient {
	return goredis.NewClient(&goredis.Options{Addr: g.redisAddr, Password: g.redisPass, DB: g.redisDB})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "depcachectl",
		Short:         "Inspect and reset a depcache namespace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.redisAddr, "redis", "localhost:6379", "Redis address")
	rootCmd.PersistentFlags().StringVar(&g.redisPass, "redis-pass", "", "Redis password")
	rootCmd.PersistentFlags().IntVar(&g.redisDB, "redis-db", 0, "Redis database")
	rootCmd.PersistentFlags().StringVar(&g.namespace, "namespace", "depcache", "key namespace")
	rootCmd.PersistentFlags().StringVar(&g.config, "config", "", "YAML file with strategy descriptors")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		validateCmd(g),
		resetCmd(g),
		depsCmd(g),
		scoresCmd(g),
		throttleCmd(g),
	)
	return rootCmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func loadDescriptors(path string) ([]depcache.Descriptor, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return depcache.LoadDescriptors(f)
}

// open connects to the store and builds an engine; callers must Close it.
func open(g *globals) (*depcache.Engine, error) {
	zl, err := newLogger(g.logLevel)
	if err != nil {
		return nil, err
	}
	descs, err := loadDescriptors(g.config)
	if err != nil {
		return nil, err
	}
	st, err := rs.New(rs.Config{Client: newClient(g), CloseClient: true})
	if err != nil {
		return nil, err
	}
	e, err := depcache.New(depcache.Options{
		Store:       st,
		Namespace:   g.namespace,
		Logger:      zaplog.New(zl),
		Descriptors: descs,
	})
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	return e, nil
}

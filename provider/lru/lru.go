package lru

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pr "github.com/unkn0wn-root/depcache/provider"
)

// Provider is a size-bounded in-process LRU with one TTL for every entry.
type Provider struct {
	c *expirable.LRU[string, []byte]
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Size int           // max entries; must be > 0
	TTL  time.Duration // entry lifetime; 0 => no expiry
}

func New(cfg Config) (*Provider, error) {
	if cfg.Size <= 0 {
		return nil, errors.New("lru: invalid size")
	}
	return &Provider{c: expirable.NewLRU[string, []byte](cfg.Size, nil, cfg.TTL)}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

// Set ignores cost and the per-entry ttl; the LRU applies Config.TTL.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.c.Add(key, value)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Remove(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Purge()
	return nil
}

// Len reports the number of live entries.
func (p *Provider) Len() int { return p.c.Len() }

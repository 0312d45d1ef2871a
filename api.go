package depcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	c "github.com/unkn0wn-root/depcache/codec"
	gen "github.com/unkn0wn-root/depcache/genstore"
	pr "github.com/unkn0wn-root/depcache/provider"
	"github.com/unkn0wn-root/depcache/store"
)

// Options configure an Engine.
// Only Store is required; others have sensible defaults.
type Options struct {
	// Required
	Store store.Store

	Namespace   string          // key prefix of everything the engine writes; "" => "depcache"
	InstanceID  string          // identifies this process in local-tier markers; "" => random UUID
	Logger      Logger          // if nil, NopLogger is used
	Hooks       Hooks           // if nil, NopHooks is used
	Throttle    ThrottleOptions // zero => defaults
	Local       LocalFactory    // local tier per strategy; nil => DefaultLocal
	GenStore    gen.GenStore    // nil => generations in Store
	Descriptors []Descriptor    // strategies available to Bind*

	LockTTL     time.Duration // both-location load lock; 0 => 60s
	BufferPoll  time.Duration // wait between buffer polls; 0 => 200ms
	BufferPolls int           // polls before giving up; 0 => 300
}

// Engine wires the components over one backing store.
type Engine struct {
	Tracker   *Tracker
	Reset     *Resetter
	Throttler *Throttler
	Registry  *Registry

	st       store.Store
	ns       string
	instance string
	log      Logger
	hooks    Hooks
	gens     gen.GenStore
	local    LocalFactory
	opts     Options

	mu     sync.Mutex
	locals []pr.Provider
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("depcache: Options.Store is required")
	}
	ns := coalesce(opts.Namespace, defaultNamespace)
	log := opts.Logger
	if log == nil {
		log = NopLogger{}
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}
	gens := opts.GenStore
	if gens == nil {
		gens = gen.New(opts.Store, ns)
	}
	local := opts.Local
	if local == nil {
		local = DefaultLocal
	}
	reg, err := NewRegistry(opts.Descriptors...)
	if err != nil {
		return nil, err
	}

	opts.LockTTL = coalesce(opts.LockTTL, defaultLockTTL)
	opts.BufferPoll = coalesce(opts.BufferPoll, defaultBufferPoll)
	opts.BufferPolls = coalesce(opts.BufferPolls, defaultBufferPolls)

	tracker := NewTracker(opts.Store, ns, log, hooks)
	return &Engine{
		Tracker:   tracker,
		Reset:     NewResetter(opts.Store, tracker, log),
		Throttler: NewThrottler(opts.Store, opts.Throttle, log, hooks),
		Registry:  reg,
		st:        opts.Store,
		ns:        ns,
		instance:  coalesce(opts.InstanceID, uuid.NewString()),
		log:       log,
		hooks:     hooks,
		gens:      gens,
		local:     local,
		opts:      opts,
	}, nil
}

func (e *Engine) Store() store.Store { return e.st }
func (e *Engine) Namespace() string  { return e.ns }
func (e *Engine) InstanceID() string { return e.instance }
func (e *Engine) Logger() Logger     { return e.log }
func (e *Engine) Hooks() Hooks       { return e.hooks }

// Close releases the local tiers, the generation store and the backing store.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	locals := e.locals
	e.locals = nil
	e.mu.Unlock()

	var errs []error
	for _, p := range locals {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.gens.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.st.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewScoreListFor builds an unbound ScoreList over the engine store.
func NewScoreListFor[V any](e *Engine, cd c.Codec[V]) (*ScoreList[V], error) {
	return NewScoreList[V](e.st, cd, e.log, e.hooks)
}

func (e *Engine) strategy(d Descriptor) strategy {
	return strategy{d: d, ns: e.ns, st: e.st, tracker: e.Tracker, log: e.log, hooks: e.hooks}
}

func (e *Engine) localTier(d Descriptor) (*localTier, error) {
	p, err := e.local(d)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.locals = append(e.locals, p)
	e.mu.Unlock()
	return &localTier{p: p, gens: e.gens, instance: e.instance, log: e.log, hooks: e.hooks}, nil
}

// valueCodec returns cd, or the codec named by the descriptor when cd is nil,
// limited to d.MaxValueBytes on decode.
func valueCodec[V any](d Descriptor, cd c.Codec[V]) (c.Codec[V], error) {
	if cd == nil {
		var err error
		if cd, err = c.ByName[V](d.Codec); err != nil {
			return nil, invalidf("strategy %q: %v", d.Name, err)
		}
	}
	if d.MaxValueBytes > 0 {
		cd = c.LimitCodec[V]{Inner: cd, MaxDecode: d.MaxValueBytes}
	}
	return cd, nil
}

func bindValues[V any](e *Engine, name string, shape Shape, cd c.Codec[V]) (*valueCache[V], error) {
	d, err := e.Registry.claim(name, shape)
	if err != nil {
		return nil, err
	}
	if cd, err = valueCodec(d, cd); err != nil {
		return nil, err
	}
	vc := &valueCache[V]{
		strategy: e.strategy(d),
		codec:    cd,
		buffered: d.Location == LocationBoth,
		lockTTL:  e.opts.LockTTL,
		poll:     e.opts.BufferPoll,
		polls:    e.opts.BufferPolls,
	}
	if d.Location != LocationRemote {
		if vc.local, err = e.localTier(d); err != nil {
			return nil, err
		}
	}
	return vc, nil
}

// BindBlob binds the blob strategy registered as name. A nil cd selects
// the descriptor's Codec; the same holds for the other Bind functions.
func BindBlob[V any](e *Engine, name string, cd c.Codec[V]) (*Blob[V], error) {
	vc, err := bindValues(e, name, ShapeBlob, cd)
	if err != nil {
		return nil, err
	}
	return &Blob[V]{vc: vc}, nil
}

// BindDictionary binds the dictionary strategy registered as name.
func BindDictionary[ID comparable, V any](e *Engine, name string, cd c.Codec[V]) (*Dictionary[ID, V], error) {
	vc, err := bindValues(e, name, ShapeDictionary, cd)
	if err != nil {
		return nil, err
	}
	return &Dictionary[ID, V]{vc: vc}, nil
}

// BindHash binds the hash strategy registered as name.
func BindHash[V any](e *Engine, name string) (*Hash[V], error) {
	d, err := e.Registry.claim(name, ShapeHash)
	if err != nil {
		return nil, err
	}
	return &Hash[V]{strategy: e.strategy(d)}, nil
}

// BindList binds the paged list strategy registered as name.
func BindList[V any](e *Engine, name string, cd c.Codec[V]) (*List[V], error) {
	d, err := e.Registry.claim(name, ShapePagedList)
	if err != nil {
		return nil, err
	}
	if cd, err = valueCodec(d, cd); err != nil {
		return nil, err
	}
	return &List[V]{strategy: e.strategy(d), codec: cd}, nil
}

// BindScores binds the sorted set strategy registered as name.
func BindScores[V any](e *Engine, name string, cd c.Codec[V]) (*Scores[V], error) {
	d, err := e.Registry.claim(name, ShapeSortedSet)
	if err != nil {
		return nil, err
	}
	if cd, err = valueCodec(d, cd); err != nil {
		return nil, err
	}
	list, err := NewScoreList[V](e.st, cd, e.log, e.hooks)
	if err != nil {
		return nil, err
	}
	return &Scores[V]{strategy: e.strategy(d), list: list}, nil
}

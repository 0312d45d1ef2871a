package depcache

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/depcache/codec"
)

// Shape is the data layout a strategy caches.
type Shape string

const (
	ShapeBlob       Shape = "blob"
	ShapeDictionary Shape = "dictionary"
	ShapeHash       Shape = "hash"
	ShapePagedList  Shape = "paged_list"
	ShapeSortedSet  Shape = "sorted_set"
)

// Location is where a strategy keeps values.
type Location string

const (
	LocationRemote Location = "remote" // backing store only
	LocationLocal  Location = "local"  // process memory, validated by store markers
	LocationBoth   Location = "both"   // process memory over a shared store buffer
)

// Descriptor declares one cache strategy.
type Descriptor struct {
	Name     string   `yaml:"name"`
	Shape    Shape    `yaml:"shape"`
	Location Location `yaml:"location"` // "" => remote

	// BaseKey roots every key of the strategy; "" => Name. Required for
	// dictionaries.
	BaseKey string        `yaml:"base_key"`
	Version int           `yaml:"version"` // > 0 prefixes keys with v<N>
	TTL     time.Duration `yaml:"ttl"`     // 0 => 1h

	// Dependencies are tracked globally for every written key.
	Dependencies []EntityType `yaml:"dependencies"`

	// UserDependencies are tracked per group (see WithGroup); keys of such
	// strategies are scoped to the group as well.
	UserDependencies []EntityType `yaml:"user_dependencies"`

	// Codec names the value encoding used when Bind* gets a nil codec:
	// "json" (default), "msgpack" or "cbor". Hashes are always JSON.
	Codec string `yaml:"codec"`

	// MaxValueBytes > 0 drops stored values larger than this on read.
	MaxValueBytes int `yaml:"max_value_bytes"`

	// paged_list only
	PageSize        int  `yaml:"page_size"`         // minimum fill size; 0 => 50
	InitialPageSize int  `yaml:"initial_page_size"` // first load size; 0 => 100
	ReloadInitial   bool `yaml:"reload_initial"`    // drop a list still at its initial size
}

func (d Descriptor) withDefaults() Descriptor {
	d.Location = coalesce(d.Location, LocationRemote)
	d.BaseKey = coalesce(d.BaseKey, d.Name)
	d.TTL = coalesce(d.TTL, defaultStrategyTTL)
	if d.Shape == ShapePagedList {
		d.PageSize = coalesce(d.PageSize, defaultPageSize)
		d.InitialPageSize = coalesce(d.InitialPageSize, defaultInitialPage)
	}
	return d
}

// Validate reports the first problem with d.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return invalidf("descriptor without name")
	}
	switch d.Shape {
	case ShapeBlob, ShapeDictionary, ShapeHash, ShapePagedList, ShapeSortedSet:
	default:
		return invalidf("%s: unknown shape %q", d.Name, d.Shape)
	}
	loc := coalesce(d.Location, LocationRemote)
	switch loc {
	case LocationRemote, LocationLocal, LocationBoth:
	default:
		return invalidf("%s: unknown location %q", d.Name, d.Location)
	}
	switch {
	case loc != LocationRemote && (d.Shape == ShapeHash || d.Shape == ShapePagedList || d.Shape == ShapeSortedSet):
		return invalidf("%s: %s is remote only", d.Name, d.Shape)
	case loc == LocationBoth && d.Shape != ShapeBlob:
		return invalidf("%s: location both is blob only", d.Name)
	case d.Shape == ShapeDictionary && d.BaseKey == "":
		return invalidf("%s: dictionary requires base_key", d.Name)
	case d.TTL < 0:
		return invalidf("%s: negative ttl", d.Name)
	case d.PageSize < 0 || d.InitialPageSize < 0:
		return invalidf("%s: negative page size", d.Name)
	case d.MaxValueBytes < 0:
		return invalidf("%s: negative max_value_bytes", d.Name)
	case d.Shape == ShapeHash && d.Codec != "" && d.Codec != "json":
		return invalidf("%s: hash values are json only", d.Name)
	}
	if _, err := codec.ByName[any](d.Codec); err != nil {
		return invalidf("%s: %v", d.Name, err)
	}
	return nil
}

// Registry is the startup-time table of strategy descriptors. It is validated
// eagerly and every descriptor can be bound to a typed cache exactly once.
type Registry struct {
	mu    sync.Mutex
	descs map[string]Descriptor
	order []string
	bound map[string]bool
}

// NewRegistry validates descs (unique names, known shapes, compatible
// locations) and returns the table.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		descs: make(map[string]Descriptor, len(descs)),
		bound: make(map[string]bool, len(descs)),
	}
	var errs []error
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.descs[d.Name]; dup {
			errs = append(errs, invalidf("duplicate strategy %q", d.Name))
			continue
		}
		r.descs[d.Name] = d.withDefaults()
		r.order = append(r.order, d.Name)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// LoadDescriptors decodes a YAML document of the form
//
//	strategies:
//	  - name: feed
//	    shape: sorted_set
//	    ttl: 10m
//	    dependencies: [video]
func LoadDescriptors(r io.Reader) ([]Descriptor, error) {
	var doc struct {
		Strategies []Descriptor `yaml:"strategies"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("depcache: decode strategies: %w", err)
	}
	return doc.Strategies, nil
}

// Lookup returns the descriptor registered as name (with defaults applied).
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descs[name]
	return d, ok
}

// Names lists registered strategies in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Unbound lists registered strategies no code has bound yet.
func (r *Registry) Unbound() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.order {
		if !r.bound[n] {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) claim(name string, shape Shape) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descs[name]
	switch {
	case !ok:
		return Descriptor{}, invalidf("strategy %q is not registered", name)
	case d.Shape != shape:
		return Descriptor{}, invalidf("strategy %q is a %s, not a %s", name, d.Shape, shape)
	case r.bound[name]:
		return Descriptor{}, invalidf("strategy %q is already bound", name)
	}
	r.bound[name] = true
	return d, nil
}

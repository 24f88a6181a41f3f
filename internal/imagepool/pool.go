// Package imagepool holds the static table of stock images per product type
// and the batch-local cursor that hands them out in round-robin order.
package imagepool

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evimeria/evimeria-api/internal/classifier"
)

// ScopeAll is the scope used when no category specific pool exists.
const ScopeAll = "all"

// ErrNoPool is returned when neither a category scoped nor an "all" pool
// exists for a tag.
var ErrNoPool = errors.New("no image pool available")

//go:embed default_pools.yaml
var defaultPools []byte

// Slot names the role of an image within a product's gallery.
type Slot string

const (
	// SlotProduct is the packshot, used as the main image.
	SlotProduct Slot = "product"
	// SlotModel is a worn-by-model picture, used as a secondary image.
	SlotModel Slot = "model"
)

// Pool is the ordered image list of one (tag, scope). In YAML it is either a
// plain list, read as the product slot, or a {product, model} mapping.
type Pool struct {
	Product []string `yaml:"product"`
	Model   []string `yaml:"model"`
}

func (p *Pool) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&p.Product)
	}
	type plain Pool
	return node.Decode((*plain)(p))
}

// Slots returns the non-empty slots in gallery order.
func (p Pool) Slots() []Slot {
	var slots []Slot
	if len(p.Product) > 0 {
		slots = append(slots, SlotProduct)
	}
	if len(p.Model) > 0 {
		slots = append(slots, SlotModel)
	}
	return slots
}

func (p Pool) images(slot Slot) []string {
	if slot == SlotModel {
		return p.Model
	}
	return p.Product
}

// Pick returns the image of slot at index, wrapping around the pool.
func (p Pool) Pick(slot Slot, index int) (string, bool) {
	images := p.images(slot)
	if len(images) == 0 || index < 0 {
		return "", false
	}
	return images[index%len(images)], true
}

// Table maps (tag, scope) to pools. It never changes after construction.
type Table struct {
	pools map[classifier.Tag]map[string]Pool
}

// NewTable copies raw into a Table. Scope keys are lower-cased and empty
// pools are dropped.
func NewTable(raw map[classifier.Tag]map[string]Pool) *Table {
	t := &Table{pools: make(map[classifier.Tag]map[string]Pool, len(raw))}
	for tag, scopes := range raw {
		for scope, pool := range scopes {
			if len(pool.Product) == 0 && len(pool.Model) == 0 {
				continue
			}
			if t.pools[tag] == nil {
				t.pools[tag] = make(map[string]Pool, len(scopes))
			}
			t.pools[tag][normalizeScope(scope)] = Pool{
				Product: append([]string(nil), pool.Product...),
				Model:   append([]string(nil), pool.Model...),
			}
		}
	}
	return t
}

func LoadTable(r io.Reader) (*Table, error) {
	var raw map[classifier.Tag]map[string]Pool
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode image pools: %w", err)
	}
	return NewTable(raw), nil
}

func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image pools: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// DefaultTable returns the embedded stock photography table.
func DefaultTable() *Table {
	t, err := LoadTable(bytes.NewReader(defaultPools))
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup resolves the pool of tag for category: the category scoped pool
// first, then the "all" pool. It returns the scope that matched.
func (t *Table) Lookup(tag classifier.Tag, category string) (Pool, string, error) {
	scopes, ok := t.pools[tag]
	if !ok {
		return Pool{}, "", ErrNoPool
	}
	if category != "" {
		scope := normalizeScope(category)
		if pool, ok := scopes[scope]; ok {
			return pool, scope, nil
		}
	}
	if pool, ok := scopes[ScopeAll]; ok {
		return pool, ScopeAll, nil
	}
	return Pool{}, "", ErrNoPool
}

// Tags lists the tags that have at least one pool.
func (t *Table) Tags() []classifier.Tag {
	tags := make([]classifier.Tag, 0, len(t.pools))
	for tag := range t.pools {
		tags = append(tags, tag)
	}
	return tags
}

func normalizeScope(scope string) string {
	return strings.ToLower(strings.TrimSpace(scope))
}

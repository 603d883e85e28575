package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/cmn"
)

// jsonEntry is the on-disk representation of one registered Parameter, per
// spec §6 ("Config entry" schema). Only registered:true entries are ever
// written. LoadFromDisk does not read the field: every entry it loads is
// registered.
type jsonEntry struct {
	Key        string `json:"key"`
	Category   string `json:"category"`
	Type       Kind   `json:"type"`
	Value      string `json:"value"`
	Registered bool   `json:"registered"`
}

// Configuration is the process-wide composite-key → Parameter map (spec
// §3/§4.3). Reads dominate writes, so it is guarded by a RWMutex per spec
// §5 ("Configuration's parameter map is guarded by a single mutex; reads
// dominate, so a read-write lock is appropriate").
type Configuration struct {
	mu         sync.RWMutex
	moduleName string
	cachePath  string
	params     map[string]*Parameter // keyed by lowercase composite key
	categories map[string]*Category
	bus        *bus.Bus

	// currentState, when non-nil, is consulted to enforce a category's
	// AllowedStates; nil means "uninitialized state machine", which spec
	// §4.3 treats as always-allowed.
	currentState func() string
}

// New constructs an empty Configuration for moduleName, persisting to
// cachePath (ignored if empty — no-op save/load, matching an in-memory-only
// deployment).
func New(moduleName, cachePath string, b *bus.Bus) *Configuration {
	return &Configuration{
		moduleName: moduleName,
		cachePath:  cachePath,
		params:     make(map[string]*Parameter),
		categories: make(map[string]*Category),
		bus:        b,
	}
}

// SetCurrentStateFunc wires the accessor the Configuration uses to enforce
// per-category mutation windows. Called once by the Main Context after both
// Configuration and the state machine exist.
func (c *Configuration) SetCurrentStateFunc(fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentState = fn
}

// RegisterCategory adds cat to the known set, replacing any existing
// category with the same name.
func (c *Configuration) RegisterCategory(cat *Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories[cat.Name] = cat
}

func normalizeKey(k string) string { return strings.ToLower(k) }

// RegisterParameter registers p under its composite key. If the key is
// unknown, a clone of p is stored and returned (protecting the caller's
// definition from later mutation); if already known, the existing entry is
// returned unmodified except that it is marked registered=true, per spec
// §4.3.
func (c *Configuration) RegisterParameter(p *Parameter) *Parameter {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := normalizeKey(p.CompositeKey())
	if existing, ok := c.params[key]; ok {
		existing.registered = true
		return existing
	}
	clone := p.clone()
	clone.registered = true
	c.params[key] = clone
	return clone
}

// SetParameter looks up compositeKey case-insensitively and applies
// rawValue via the parameter's validation. On success, emits
// ParameterChangedEvent on the bus if the value actually changed. Returns
// cmn.NotFoundError if the key is unknown, or cmn.InvalidArgumentError if
// mutation is currently disallowed by the category's AllowedStates or the
// validator rejects rawValue (carrying the validator's message).
func (c *Configuration) SetParameter(compositeKey, rawValue string) error {
	c.mu.Lock()
	p, ok := c.params[normalizeKey(compositeKey)]
	if !ok {
		c.mu.Unlock()
		return cmn.NewNotFoundError("parameter", compositeKey)
	}
	if c.currentState != nil {
		if cat, catOK := c.categories[p.Category]; catOK {
			if !cat.AllowsMutationFrom(c.currentState()) {
				c.mu.Unlock()
				return cmn.NewInvalidArgumentError("parameter %s cannot be changed in the current state", compositeKey)
			}
		}
	}
	prev, err := p.setValue(rawValue)
	c.mu.Unlock()
	if err != nil {
		return cmn.NewInvalidArgumentError("%v", err)
	}
	if c.bus != nil && prev != rawValue {
		c.bus.Send(bus.ParameterChangedEvent{
			Category: p.Category,
			Key:      p.Key,
			OldValue: prev,
			NewValue: rawValue,
		})
	}
	return nil
}

// GetParameter returns the Parameter at compositeKey, or nil if unknown.
func (c *Configuration) GetParameter(compositeKey string) *Parameter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params[normalizeKey(compositeKey)]
}

// GetParameterStringValue returns the current string value at
// compositeKey, or def if the key is unknown.
func (c *Configuration) GetParameterStringValue(compositeKey, def string) string {
	p := c.GetParameter(compositeKey)
	if p == nil {
		return def
	}
	return p.StringValue()
}

// GetParameters returns every registered parameter, sorted by composite
// key for deterministic listing.
func (c *Configuration) GetParameters() []*Parameter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Parameter, 0, len(c.params))
	for _, p := range c.params {
		if p.registered {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompositeKey() < out[j].CompositeKey() })
	return out
}

// LoadFromDisk reads c.cachePath if set and present, registering-if-unknown
// each entry then applying its value, per spec §4.3. Unknown-type entries
// are skipped with a warning, not treated as fatal. A missing file is not
// an error (first-run case).
func (c *Configuration) LoadFromDisk() error {
	if c.cachePath == "" {
		return nil
	}
	var entries []jsonEntry
	if err := cmn.LoadJSON(c.cachePath, &entries); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		p := c.newParameterForKind(e)
		if p == nil {
			glog.Warningf("config: skipping entry %s/%s with unknown type %q", e.Category, e.Key, e.Type)
			continue
		}
		registered := c.RegisterParameter(p)
		if _, err := registered.setValue(e.Value); err != nil {
			glog.Warningf("config: skipping invalid persisted value for %s: %v", registered.CompositeKey(), err)
		}
	}
	return nil
}

func (c *Configuration) newParameterForKind(e jsonEntry) *Parameter {
	switch e.Type {
	case KindString:
		return NewString(e.Category, e.Key, e.Value)
	case KindInteger:
		n, _ := strconv.ParseInt(e.Value, 10, 64)
		return NewInteger(e.Category, e.Key, n)
	case KindBoolean:
		return NewBoolean(e.Category, e.Key, false)
	case KindPassword:
		return NewPassword(e.Category, e.Key, e.Value)
	case KindURL:
		return NewURL(e.Category, e.Key, e.Value)
	case KindEnum:
		return NewEnum(e.Category, e.Key, e.Value, c.bus)
	default:
		return nil
	}
}

// SaveToDisk writes every registered parameter to c.cachePath as JSON. No-op
// if no path is set, per spec §4.3.
func (c *Configuration) SaveToDisk() error {
	if c.cachePath == "" {
		return nil
	}
	params := c.GetParameters()
	entries := make([]jsonEntry, 0, len(params))
	for _, p := range params {
		entries = append(entries, jsonEntry{
			Key:        p.Key,
			Category:   p.Category,
			Type:       p.kind,
			Value:      p.StringValue(),
			Registered: true,
		})
	}
	return cmn.SaveJSON(c.cachePath, entries)
}

// GetAsPlainText renders every registered parameter as a human listing,
// masking sensitive values, per spec §4.3 ("getAsPlainText()").
func (c *Configuration) GetAsPlainText() string {
	var b strings.Builder
	for _, p := range c.GetParameters() {
		fmt.Fprintf(&b, "%s = %s\n", p.CompositeKey(), p.DisplayValue())
	}
	return b.String()
}


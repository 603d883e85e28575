// Package config implements the Configuration and Parameter subsystem
// (spec §4.3): typed configuration knobs grouped into categories, with
// composite-key lookup, registration stickiness, and JSON persistence.
// Grounded on the teacher's cli/commands/config.go listing conventions and
// dbdriver/bunt.go for the marshal/masking idiom.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/harvestrt/harvestrt/bus"
)

// Kind discriminates Parameter variants for JSON persistence (spec §6,
// "type":"string|integer|boolean|password|url|enum").
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindPassword Kind = "password"
	KindURL     Kind = "url"
	KindEnum    Kind = "enum"
)

// Parameter is a typed configuration knob (spec §3 "Parameter"). The zero
// value is not usable; construct with the New* functions below.
type Parameter struct {
	Key      string
	Category string
	kind     Kind
	value    string // canonical string form, always populated
	def      string
	registered bool

	// enumBus backs an Enum parameter's dynamic allowed-set lookup via
	// bus.GetEnumValuesEvent. Nil for non-enum parameters.
	enumBus *bus.Bus
}

// CompositeKey returns "category/key", the identifier used for lookups;
// comparisons elsewhere are case-insensitive but the stored casing here is
// whatever was supplied at registration.
func (p *Parameter) CompositeKey() string {
	return p.Category + "/" + p.Key
}

// Kind reports the parameter's variant.
func (p *Parameter) Kind() Kind { return p.kind }

// Registered reports whether this parameter has ever been registered
// during this run; registered parameters are the only ones persisted or
// listed.
func (p *Parameter) Registered() bool { return p.registered }

// StringValue returns the raw string form of the current value.
func (p *Parameter) StringValue() string { return p.value }

// IntValue returns the current value parsed as an integer. Only meaningful
// for KindInteger; returns 0 for other kinds or on parse failure.
func (p *Parameter) IntValue() int64 {
	n, _ := strconv.ParseInt(p.value, 10, 64)
	return n
}

// BoolValue returns the current value parsed as a boolean. Only meaningful
// for KindBoolean.
func (p *Parameter) BoolValue() bool {
	return strings.EqualFold(p.value, "true")
}

// DisplayValue returns the value for human listing, masking passwords per
// spec §4.3 ("toStringForDisplay() returns \"****\"").
func (p *Parameter) DisplayValue() string {
	if p.kind == KindPassword {
		return "****"
	}
	return p.value
}

// clone returns a copy of the struct (enumBus is shared, not copied), used
// by Configuration.RegisterParameter to
// protect the caller's definition from external mutation (spec §4.3:
// "clones p to protect global defaults").
func (p *Parameter) clone() *Parameter {
	cp := *p
	return &cp
}

// setValue validates raw against the parameter's kind and, on success,
// updates the stored value and returns the previous value. On rejection it
// returns an error describing why and leaves the value unchanged, per spec
// §4.3 ("setValue(raw) returns the previous value on success or the error
// message on rejection").
func (p *Parameter) setValue(raw string) (prev string, err error) {
	switch p.kind {
	case KindString, KindPassword:
		// identity mapping, no rejection
	case KindInteger:
		if _, convErr := strconv.ParseInt(raw, 10, 64); convErr != nil {
			return "", fmt.Errorf("%q is not a valid integer", raw)
		}
	case KindBoolean:
		if !strings.EqualFold(raw, "true") && !strings.EqualFold(raw, "false") {
			return "", fmt.Errorf("%q is not a valid boolean", raw)
		}
		raw = strings.ToLower(raw)
	case KindURL:
		u, convErr := url.ParseRequestURI(raw)
		if convErr != nil || u.Scheme == "" || u.Host == "" {
			return "", fmt.Errorf("%q is not a valid absolute URL", raw)
		}
	case KindEnum:
		if err := p.validateEnum(raw); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown parameter kind %q", p.kind)
	}
	prev = p.value
	p.value = raw
	return prev, nil
}

func (p *Parameter) validateEnum(raw string) error {
	if p.enumBus == nil {
		return fmt.Errorf("enum parameter %s has no value-source bus attached", p.CompositeKey())
	}
	result := p.enumBus.SendSynchronous(bus.GetEnumValuesEvent{CompositeKey: p.CompositeKey()})
	values, _ := result.([]string)
	for _, v := range values {
		if v == raw {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of the allowed values for %s", raw, p.CompositeKey())
}

// NewString constructs a String Parameter.
func NewString(category, key, def string) *Parameter {
	return &Parameter{Category: category, Key: key, kind: KindString, value: def, def: def}
}

// NewInteger constructs an Integer Parameter.
func NewInteger(category, key string, def int64) *Parameter {
	s := strconv.FormatInt(def, 10)
	return &Parameter{Category: category, Key: key, kind: KindInteger, value: s, def: s}
}

// NewBoolean constructs a Boolean Parameter.
func NewBoolean(category, key string, def bool) *Parameter {
	s := strconv.FormatBool(def)
	return &Parameter{Category: category, Key: key, kind: KindBoolean, value: s, def: s}
}

// NewPassword constructs a Password Parameter; its DisplayValue is always
// masked regardless of the underlying raw value.
func NewPassword(category, key, def string) *Parameter {
	return &Parameter{Category: category, Key: key, kind: KindPassword, value: def, def: def}
}

// NewURL constructs a URL Parameter; setValue rejects anything that does
// not parse as an absolute URL.
func NewURL(category, key, def string) *Parameter {
	return &Parameter{Category: category, Key: key, kind: KindURL, value: def, def: def}
}

// NewEnum constructs an Enum Parameter whose allowed set is resolved at
// validation time via b.SendSynchronous(GetEnumValuesEvent{...}), per spec
// §4.3 ("must be in a set resolved at validation time via a synchronous
// event").
func NewEnum(category, key, def string, b *bus.Bus) *Parameter {
	return &Parameter{Category: category, Key: key, kind: KindEnum, value: def, def: def, enumBus: b}
}

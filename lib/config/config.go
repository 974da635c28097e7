// Package config loads the codegate policy file: which store holds issued
// challenges, how each challenge type behaves, and which routes demand which
// type.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/TecharoHQ/codegate/data"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"k8s.io/apimachinery/pkg/util/yaml"
)

var (
	ErrUnknownRouteType = errors.New("config: routes reference an unknown challenge type")
	ErrNegativeValue    = errors.New("config.TypeConfig: value must not be negative")
	ErrDuplicatePrefix  = errors.New("config: two challenge types share a cache key prefix")
)

// TypeConfig overrides the built-in defaults of one challenge type. Unset
// fields keep their defaults.
type TypeConfig struct {
	Prefix     string            `json:"prefix,omitempty"`
	Param      string            `json:"param,omitempty"`
	TTL        *Duration         `json:"ttl,omitempty"`
	Length     *int              `json:"length,omitempty"`
	Width      *int              `json:"width,omitempty"`
	Height     *int              `json:"height,omitempty"`
	Tolerance  *int              `json:"tolerance,omitempty"`
	Reusable   *bool             `json:"reusable,omitempty"`
	Requires   string            `json:"requires,omitempty"`
	Expression *ExpressionOrList `json:"expression,omitempty"`
}

func (tc *TypeConfig) Valid() error {
	var errs []error

	for name, val := range map[string]*int{
		"length":    tc.Length,
		"width":     tc.Width,
		"height":    tc.Height,
		"tolerance": tc.Tolerance,
	} {
		if val != nil && *val < 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNegativeValue, name))
		}
	}

	if tc.Requires != "" {
		if _, err := challenge.ParseType(tc.Requires); err != nil {
			errs = append(errs, fmt.Errorf("requires: %w", err))
		}
	}

	if tc.Expression != nil {
		if err := tc.Expression.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("expression: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (tc *TypeConfig) apply(base challenge.TypeConfig) challenge.TypeConfig {
	if tc.Prefix != "" {
		base.Prefix = tc.Prefix
	}
	if tc.Param != "" {
		base.Param = tc.Param
	}
	if tc.TTL != nil {
		base.TTL = tc.TTL.Std()
	}
	if tc.Length != nil {
		base.Length = *tc.Length
	}
	if tc.Width != nil {
		base.Width = *tc.Width
	}
	if tc.Height != nil {
		base.Height = *tc.Height
	}
	if tc.Tolerance != nil {
		base.Tolerance = *tc.Tolerance
	}
	if tc.Reusable != nil {
		base.Reusable = *tc.Reusable
	}
	if tc.Requires != "" {
		base.Requires, _ = challenge.ParseType(tc.Requires)
	}
	return base
}

// File is the on-disk shape of a policy. Type names are case-insensitive.
type File struct {
	Store  *Store                `json:"store,omitempty"`
	Types  map[string]TypeConfig `json:"types,omitempty"`
	Routes map[string][]string   `json:"routes,omitempty"`
}

func (f *File) Valid() error {
	var errs []error

	if f.Store != nil {
		if err := f.Store.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	for name, tc := range f.Types {
		if _, err := challenge.ParseType(name); err != nil {
			errs = append(errs, fmt.Errorf("types: %w", err))
			continue
		}

		if err := tc.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("types.%s: %w", name, err))
		}
	}

	for name, specs := range f.Routes {
		t, err := challenge.ParseType(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownRouteType, name))
			continue
		}

		for i, spec := range specs {
			if _, err := ParseRoute(t, spec); err != nil {
				errs = append(errs, fmt.Errorf("routes.%s[%d]: %w", name, i, err))
			}
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Config is the effective policy after defaults are applied.
type Config struct {
	Store Store

	// Types holds one entry per challenge type in challenge.Types order.
	Types []challenge.TypeConfig

	// Conditions are the optional gate conditions per type.
	Conditions map[challenge.Type]*ExpressionOrList

	// Routes keeps type order, then file order within a type.
	Routes []Route
}

// TypeConfig returns the effective configuration of t.
func (c *Config) TypeConfig(t challenge.Type) (challenge.TypeConfig, bool) {
	for _, tc := range c.Types {
		if tc.Type == t {
			return tc, true
		}
	}
	return challenge.TypeConfig{}, false
}

func (c *Config) Valid() error {
	var errs []error

	if err := c.Store.Valid(); err != nil {
		errs = append(errs, err)
	}

	prefixes := map[string]challenge.Type{}
	for _, tc := range c.Types {
		if err := tc.Valid(); err != nil {
			errs = append(errs, err)
		}

		if other, ok := prefixes[tc.Prefix]; ok {
			errs = append(errs, fmt.Errorf("%w: %s and %s use %q", ErrDuplicatePrefix, other, tc.Type, tc.Prefix))
			continue
		}
		prefixes[tc.Prefix] = tc.Type
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// File converts the effective policy back to its on-disk shape, with every
// default spelled out.
func (c *Config) File() *File {
	store := c.Store
	result := &File{
		Store:  &store,
		Types:  map[string]TypeConfig{},
		Routes: map[string][]string{},
	}

	for _, tc := range c.Types {
		ttl := Duration(tc.TTL)
		length, width, height, tolerance, reusable := tc.Length, tc.Width, tc.Height, tc.Tolerance, tc.Reusable
		result.Types[string(tc.Type)] = TypeConfig{
			Prefix:     tc.Prefix,
			Param:      tc.Param,
			TTL:        &ttl,
			Length:     &length,
			Width:      &width,
			Height:     &height,
			Tolerance:  &tolerance,
			Reusable:   &reusable,
			Requires:   string(tc.Requires),
			Expression: c.Conditions[tc.Type],
		}
	}

	for _, r := range c.Routes {
		result.Routes[string(r.Type)] = append(result.Routes[string(r.Type)], r.String())
	}

	return result
}

// Load parses and validates a policy file.
func Load(fin io.Reader, fname string) (*Config, error) {
	var (
		f   File
		raw json.RawMessage
	)

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't parse policy config YAML %s: %w", fname, err)
	}

	// Decoded here rather than by the YAML decoder so that field errors such
	// as ErrBadDuration stay matchable with errors.Is.
	if len(raw) != 0 {
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("can't parse policy config YAML %s: %w", fname, err)
		}
	}

	if err := f.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating policy config %s: %w", fname, err)
	}

	types := map[challenge.Type]TypeConfig{}
	for name, tc := range f.Types {
		t, _ := challenge.ParseType(name)
		types[t] = tc
	}

	routes := map[challenge.Type][]string{}
	for _, name := range slices.Sorted(maps.Keys(f.Routes)) {
		t, _ := challenge.ParseType(name)
		routes[t] = append(routes[t], f.Routes[name]...)
	}

	result := &Config{
		Conditions: map[challenge.Type]*ExpressionOrList{},
	}

	if f.Store != nil {
		result.Store = *f.Store
	}
	result.Store.Backend = result.Store.backend()

	for _, t := range challenge.Types() {
		tc := types[t]
		result.Types = append(result.Types, tc.apply(challenge.DefaultTypeConfig(t)))

		if tc.Expression != nil {
			result.Conditions[t] = tc.Expression
		}

		for _, spec := range routes[t] {
			r, _ := ParseRoute(t, spec)
			result.Routes = append(result.Routes, r)
		}
	}

	if err := result.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating policy config %s: %w", fname, err)
	}

	return result, nil
}

// LoadFile loads the policy at fname, or the built-in default policy when
// fname is empty.
func LoadFile(fname string) (*Config, error) {
	if strings.TrimSpace(fname) == "" {
		fin, err := data.Policies.Open(data.DefaultPolicy)
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't open built-in policy: %w", err)
		}
		defer fin.Close()

		return Load(fin, "(data)/"+data.DefaultPolicy)
	}

	fin, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("can't open policy file %s: %w", fname, err)
	}
	defer fin.Close()

	return Load(fin, fname)
}

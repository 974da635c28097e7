package challenge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StoredVersion is the format version written into every Stored record.
const StoredVersion = 1

// Challenge is one issuance: the expected answer plus whatever the delivery
// channel needs to show it. It is not modified after the Generator returns it.
type Challenge struct {
	Code      string    // Expected answer, compared case-insensitively
	ExpiresAt time.Time // Absolute expiry, now + ttl at creation
	Token     string    // Unique per issuance, never the code
	Reusable  bool      // Successful validation keeps the record

	// Transient delivery data. None of it is ever cached.
	Payload     []byte
	ContentType string
	Metadata    map[string]string
}

// Stored is the cacheable projection of a Challenge. It has no payload field,
// so nothing transient can reach a cache store.
type Stored struct {
	Type      Type      `json:"type"`
	Version   int       `json:"version"`
	Code      string    `json:"code"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Reusable  bool      `json:"reusable"`
}

// Storable builds the Stored projection of c for challenge type t.
func (c *Challenge) Storable(t Type) *Stored {
	return &Stored{
		Type:      t,
		Version:   StoredVersion,
		Code:      c.Code,
		Token:     c.Token,
		ExpiresAt: c.ExpiresAt,
		Reusable:  c.Reusable,
	}
}

// Expired reports whether the record is dead at now.
func (s *Stored) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

var ErrUnknownType = errors.New("challenge: unknown challenge type")

// Type identifies a challenge kind.
type Type string

const (
	TypeImage     Type = "image"
	TypeSMS       Type = "sms"
	TypeSlider    Type = "slider"
	TypeTrack     Type = "track"
	TypeSelection Type = "selection"
	TypeCustomize Type = "customize"
)

// Types lists every challenge type in its canonical order.
func Types() []Type {
	return []Type{TypeImage, TypeSMS, TypeSlider, TypeTrack, TypeSelection, TypeCustomize}
}

// ParseType resolves a type name case-insensitively. Type names come from
// request paths, so unknown names are an ordinary error.
func ParseType(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}

	return t, nil
}

func (t Type) Valid() bool {
	switch t {
	case TypeImage, TypeSMS, TypeSlider, TypeTrack, TypeSelection, TypeCustomize:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	return string(t)
}

// TypeConfig is the effective configuration of one challenge type.
type TypeConfig struct {
	Type Type

	// Prefix is the cache key prefix, e.g. "code:image:".
	Prefix string

	// Param is the request parameter carrying the submitted answer.
	Param string

	TTL      time.Duration
	Length   int
	Reusable bool

	// Width and Height are the default dimensions of rendered challenges.
	Width  int
	Height int

	// Tolerance is the slider bucket size in pixels.
	Tolerance int

	// Requires names a type that must validate before this one is issued.
	Requires Type
}

// DefaultTypeConfig returns the built-in defaults for t.
func DefaultTypeConfig(t Type) TypeConfig {
	result := TypeConfig{
		Type:   t,
		Prefix: "code:" + string(t) + ":",
		Param:  string(t) + "Code",
	}

	switch t {
	case TypeImage:
		result.TTL = 60 * time.Second
		result.Length = 4
		result.Width = 120
		result.Height = 40
	case TypeSMS:
		result.TTL = 300 * time.Second
		result.Length = 6
	case TypeSlider:
		result.TTL = 120 * time.Second
		result.Reusable = true
		result.Width = 300
		result.Height = 150
		result.Tolerance = 6
	case TypeTrack:
		result.TTL = 120 * time.Second
		result.Length = 4
	case TypeSelection:
		result.TTL = 120 * time.Second
		result.Length = 3
	case TypeCustomize:
		result.TTL = 60 * time.Second
		result.Length = 6
	}

	return result
}

var (
	ErrMissingPrefix = errors.New("challenge: cache key prefix must be set")
	ErrMissingParam  = errors.New("challenge: request parameter name must be set")
	ErrBadTTL        = errors.New("challenge: ttl must be positive")
	ErrBadLength     = errors.New("challenge: length must be positive")
	ErrBadSize       = errors.New("challenge: width and height must not be negative")
	ErrSelfRequired  = errors.New("challenge: a type can't require itself")
)

func (c TypeConfig) Valid() error {
	var errs []error

	if !c.Type.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownType, c.Type))
	}

	if c.Prefix == "" {
		errs = append(errs, ErrMissingPrefix)
	}

	if c.Param == "" {
		errs = append(errs, ErrMissingParam)
	}

	if c.TTL <= 0 {
		errs = append(errs, ErrBadTTL)
	}

	if c.Length < 0 || (c.Length == 0 && c.Type != TypeSlider) {
		errs = append(errs, ErrBadLength)
	}

	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, ErrBadSize)
	}

	if c.Requires != "" {
		if !c.Requires.Valid() {
			errs = append(errs, fmt.Errorf("requires: %w: %q", ErrUnknownType, c.Requires))
		} else if c.Requires == c.Type {
			errs = append(errs, ErrSelfRequired)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("challenge type %s: %w", c.Type, errors.Join(errs...))
	}

	return nil
}

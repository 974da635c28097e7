package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/codegate/decaymap"
	"github.com/TecharoHQ/codegate/lib/store"
)

// DefaultCleanupInterval is how often expired challenges are swept when the
// config doesn't say otherwise.
const DefaultCleanupInterval = 5 * time.Minute

var ErrBadCleanupInterval = errors.New("memory: cleanupInterval must be a positive duration")

// Config holds the optional memory backend parameters.
type Config struct {
	CleanupInterval string `json:"cleanupInterval,omitempty"`
}

func (c Config) interval() (time.Duration, error) {
	if c.CleanupInterval == "" {
		return DefaultCleanupInterval, nil
	}

	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadCleanupInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrBadCleanupInterval, d)
	}

	return d, nil
}

func parseConfig(data json.RawMessage) (time.Duration, error) {
	var config Config
	if len(data) != 0 {
		if err := json.Unmarshal(data, &config); err != nil {
			return 0, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
		}
	}

	d, err := config.interval()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return d, nil
}

type factory struct{}

func (factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	interval, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	return NewWithInterval(ctx, interval), nil
}

func (factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}

func init() {
	store.Register("memory", factory{})
}

// impl keeps encoded challenge records in a decaymap. Reads hide expired
// records at once; the sweeper only frees their memory.
type impl struct {
	records *decaymap.Impl[string, []byte]
}

func (i *impl) Delete(_ context.Context, key string) error {
	if !i.records.Delete(key) {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	result, ok := i.records.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return result, nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	// copy so callers can reuse their buffer
	data := make([]byte, len(value))
	copy(data, value)

	i.records.Set(key, data, expiry)
	return nil
}

func (i *impl) sweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.records.Cleanup()
		}
	}
}

// New creates an in-memory store swept every DefaultCleanupInterval. Values
// are only visible inside this process, so it will not scale to multiple
// codegate instances.
func New(ctx context.Context) store.Interface {
	return NewWithInterval(ctx, DefaultCleanupInterval)
}

// NewWithInterval is New with a custom sweep interval.
func NewWithInterval(ctx context.Context, interval time.Duration) store.Interface {
	result := &impl{
		records: decaymap.New[string, []byte](),
	}

	go result.sweep(ctx, interval)

	return result
}

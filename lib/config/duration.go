package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrBadDuration = errors.New("config.Duration: must be a duration string like \"90s\" or a number of seconds")

// Duration is a time.Duration that reads either "1m30s" or a plain number of
// seconds, and writes the string form.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return ErrBadDuration
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		val, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadDuration, err)
		}

		*d = Duration(val)
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("%w: %w", ErrBadDuration, err)
	}

	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

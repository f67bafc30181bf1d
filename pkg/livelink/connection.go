// ABOUTME: Parses the "<animPort>;<audioPort>;<sampleRate>" connection string
// ABOUTME: Used by hosts that configure a source from a single text field
package livelink

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidConnectionString is returned for malformed connection strings
var ErrInvalidConnectionString = errors.New("invalid connection string")

// Connection is the parsed form of a connection string
type Connection struct {
	AnimationPort int
	AudioPort     int
	SampleRate    int
}

// String formats the connection back into its text form
func (c Connection) String() string {
	return fmt.Sprintf("%d;%d;%d", c.AnimationPort, c.AudioPort, c.SampleRate)
}

// ParseConnectionString parses "<animPort>;<audioPort>;<sampleRate>".
// Fields are trimmed; anything after the third field is ignored.
func ParseConnectionString(s string) (Connection, error) {
	fields := strings.Split(s, ";")
	if len(fields) < 3 {
		return Connection{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrInvalidConnectionString, len(fields))
	}

	values := make([]int, 3)
	for i := range values {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return Connection{}, fmt.Errorf("%w: field %d: %v", ErrInvalidConnectionString, i+1, err)
		}
		values[i] = v
	}

	c := Connection{AnimationPort: values[0], AudioPort: values[1], SampleRate: values[2]}
	if err := c.Validate(); err != nil {
		return Connection{}, err
	}
	return c, nil
}

// Validate checks port ranges and the sample rate
func (c Connection) Validate() error {
	if c.AnimationPort < 0 || c.AnimationPort > 65535 {
		return fmt.Errorf("%w: animation port %d out of range", ErrInvalidConnectionString, c.AnimationPort)
	}
	if c.AudioPort < 0 || c.AudioPort > 65535 {
		return fmt.Errorf("%w: audio port %d out of range", ErrInvalidConnectionString, c.AudioPort)
	}
	if c.AnimationPort != 0 && c.AnimationPort == c.AudioPort {
		return fmt.Errorf("%w: animation and audio ports must differ", ErrInvalidConnectionString)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidConnectionString)
	}
	return nil
}

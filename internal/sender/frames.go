// ABOUTME: Loads exported keyframe files for the test sender
// ABOUTME: Frames are keyed "0", "1", ... and replayed in counter order
package sender

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadFrames reads a keyframe export and returns each frame as compact JSON.
// Frames are taken from key "0" upward until the first missing index.
func LoadFrames(r io.Reader) ([][]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse keyframe file: %w", err)
	}

	frames := make([][]byte, 0, len(doc))
	for i := 0; ; i++ {
		raw, ok := doc[strconv.Itoa(i)]
		if !ok {
			break
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, buf.Bytes())
	}
	return frames, nil
}

// LoadFramesFile reads a keyframe export from disk
func LoadFramesFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyframe file: %w", err)
	}
	defer f.Close()
	return LoadFrames(f)
}

// ABOUTME: Decodes animation JSON payloads into subject layouts and frames
// ABOUTME: Processes subjects in document order and tracks which ones are live
package animation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

// DisconnectKey stops processing of the remaining subjects in a message
const DisconnectKey = "Disconnect"

var (
	// ErrInvalidJSON is returned for payloads that are not a JSON object
	ErrInvalidJSON = errors.New("invalid animation json")
	// ErrInvalidBone is returned when a bone entry is incomplete
	ErrInvalidBone = errors.New("invalid bone entry")
)

type rawBone struct {
	Name       *string   `json:"Name"`
	ParentName *string   `json:"ParentName"`
	Location   []float64 `json:"Location"`
	Rotation   []float64 `json:"Rotation"`
}

type rawFacial struct {
	Names   []string  `json:"Names"`
	Weights []float64 `json:"Weights"`
}

type rawSubject struct {
	Body   []rawBone  `json:"Body"`
	Facial *rawFacial `json:"Facial"`
}

type subjectShape struct {
	bones  int
	curves int
}

// Decoder turns animation payloads into consumer calls.
//
// Each message is a JSON object keyed by subject name. Subjects missing from
// a message are removed. A subject is re-created whenever its bone or curve
// count changes.
type Decoder struct {
	consumer Consumer
	log      *zap.SugaredLogger

	mu       sync.Mutex
	subjects map[string]subjectShape

	decoded int64
	failed  int64
}

// NewDecoder creates a decoder pushing into consumer
func NewDecoder(consumer Consumer, logger *zap.SugaredLogger) *Decoder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Decoder{
		consumer: consumer,
		log:      logger,
		subjects: make(map[string]subjectShape),
	}
}

// Deliver decodes a payload, logging failures
func (d *Decoder) Deliver(payload []byte) {
	if err := d.Decode(payload); err != nil {
		d.log.Warnf("Dropped animation payload (%d bytes): %v", len(payload), err)
	}
}

// Decode processes one payload. End markers and headers are ignored.
func (d *Decoder) Decode(payload []byte) error {
	switch protocol.Classify(payload, protocol.AnimationMagic) {
	case protocol.KindEnd, protocol.KindHeader:
		return nil
	}

	if !json.Valid(payload) {
		d.countFailure()
		return ErrInvalidJSON
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		d.countFailure()
		return ErrInvalidJSON
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	used := make(map[string]bool, len(d.subjects))
	var firstErr error

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			d.failed++
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		name, _ := tok.(string)
		if name == DisconnectKey {
			break
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			d.failed++
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}

		if err := d.processSubject(name, raw, used); err != nil {
			d.log.Debugw("Subject update aborted", "subject", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("subject %q: %w", name, err)
			}
		}
	}

	d.removeUnused(used)

	if firstErr != nil {
		d.failed++
		return firstErr
	}
	d.decoded++
	return nil
}

func (d *Decoder) processSubject(name string, raw json.RawMessage, used map[string]bool) error {
	shape, known := d.subjects[name]
	if known {
		// an aborted update leaves the subject as it was
		used[name] = true
	}

	var subject rawSubject
	if err := json.Unmarshal(raw, &subject); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if err := validateBones(subject.Body); err != nil {
		return err
	}

	var curveNames []string
	if subject.Facial != nil {
		curveNames = subject.Facial.Names
	}

	create := !known
	if known && subject.Body != nil && shape.bones != len(subject.Body) {
		create = true
	}
	if known && subject.Facial != nil && shape.curves != len(curveNames) {
		create = true
	}

	if create {
		static := buildStatic(name, subject.Body, curveNames)
		if known {
			d.consumer.RemoveSubject(name)
		}
		d.consumer.PushStaticData(static)
		d.subjects[name] = subjectShape{bones: len(static.BoneNames), curves: len(static.CurveNames)}
		d.log.Infof("Creating subject '%s' (%d bones, %d curves)", name, len(static.BoneNames), len(static.CurveNames))
	}
	used[name] = true

	d.consumer.PushFrame(buildFrame(name, subject, curveNames))
	return nil
}

func validateBones(bones []rawBone) error {
	for i, b := range bones {
		if b.Name == nil || b.ParentName == nil {
			return fmt.Errorf("%w: bone %d missing name or parent", ErrInvalidBone, i)
		}
		if len(b.Location) != 3 {
			return fmt.Errorf("%w: bone %q location has %d components", ErrInvalidBone, *b.Name, len(b.Location))
		}
		if len(b.Rotation) != 4 {
			return fmt.Errorf("%w: bone %q rotation has %d components", ErrInvalidBone, *b.Name, len(b.Rotation))
		}
	}
	return nil
}

func buildStatic(name string, bones []rawBone, curveNames []string) StaticData {
	static := StaticData{Subject: name}
	if len(curveNames) > 0 {
		static.CurveNames = append([]string(nil), curveNames...)
	}
	if len(bones) == 0 {
		return static
	}

	static.BoneNames = make([]string, len(bones))
	index := make(map[string]int, len(bones))
	for i, b := range bones {
		static.BoneNames[i] = strings.ToLower(*b.Name)
		index[static.BoneNames[i]] = i
	}

	static.BoneParents = make([]int, len(bones))
	for i, b := range bones {
		parent, ok := index[strings.ToLower(*b.ParentName)]
		if !ok || parent == i {
			parent = -1
		}
		static.BoneParents[i] = parent
	}
	return static
}

// buildFrame converts the sender's right-handed poses into the consumer's
// left-handed space by mirroring the Y axis.
func buildFrame(name string, subject rawSubject, curveNames []string) Frame {
	frame := Frame{Subject: name}

	if len(subject.Body) > 0 {
		frame.Transforms = make([]Transform, len(subject.Body))
		for i, b := range subject.Body {
			frame.Transforms[i] = Transform{
				Location: [3]float64{b.Location[0], -b.Location[1], b.Location[2]},
				Rotation: [4]float64{-b.Rotation[0], b.Rotation[1], -b.Rotation[2], b.Rotation[3]},
			}
		}
	}

	if subject.Facial != nil && len(curveNames) > 0 {
		frame.Curves = make([]float32, len(curveNames))
		for i := 0; i < len(curveNames) && i < len(subject.Facial.Weights); i++ {
			frame.Curves[i] = float32(subject.Facial.Weights[i])
		}
	}
	return frame
}

func (d *Decoder) removeUnused(used map[string]bool) {
	for name := range d.subjects {
		if used[name] {
			continue
		}
		d.consumer.RemoveSubject(name)
		delete(d.subjects, name)
		d.log.Infof("Removed subject '%s'", name)
	}
}

func (d *Decoder) countFailure() {
	d.mu.Lock()
	d.failed++
	d.mu.Unlock()
}

// ClearAllSubjects removes every tracked subject
func (d *Decoder) ClearAllSubjects() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeUnused(nil)
}

// Subjects returns the names of live subjects
func (d *Decoder) Subjects() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.subjects))
	for name := range d.subjects {
		names = append(names, name)
	}
	return names
}

// Counts returns decoded and failed message counts
func (d *Decoder) Counts() (decoded, failed int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decoded, d.failed
}

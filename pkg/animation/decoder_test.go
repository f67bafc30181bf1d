// ABOUTME: Tests for the animation JSON decoder
// ABOUTME: Covers subject lifecycle, Disconnect handling and malformed bones
package animation

import (
	"errors"
	"fmt"
	"testing"
)

type call struct {
	op      string
	subject string
}

type recordingConsumer struct {
	calls  []call
	static map[string]StaticData
	frames map[string]Frame
}

func newRecordingConsumer() *recordingConsumer {
	return &recordingConsumer{
		static: make(map[string]StaticData),
		frames: make(map[string]Frame),
	}
}

func (r *recordingConsumer) PushStaticData(data StaticData) {
	r.calls = append(r.calls, call{"static", data.Subject})
	r.static[data.Subject] = data
}

func (r *recordingConsumer) PushFrame(frame Frame) {
	r.calls = append(r.calls, call{"frame", frame.Subject})
	r.frames[frame.Subject] = frame
}

func (r *recordingConsumer) RemoveSubject(subject string) {
	r.calls = append(r.calls, call{"remove", subject})
	delete(r.static, subject)
	delete(r.frames, subject)
}

func (r *recordingConsumer) reset() { r.calls = nil }

func bone(name, parent string) string {
	return fmt.Sprintf(`{"Name":%q,"ParentName":%q,"Location":[1,2,3],"Rotation":[0.1,0.2,0.3,0.9]}`, name, parent)
}

func TestDecodeCreatesSubject(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)

	msg := `{"Face":{"Body":[` + bone("Root", "") + `,` + bone("Head", "Root") + `],"Facial":{"Names":["JawOpen","EyeBlink"],"Weights":[0.5,0.25]}}}`
	if err := d.Decode([]byte(msg)); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	static, ok := c.static["Face"]
	if !ok {
		t.Fatal("expected static data for Face")
	}
	if static.BoneNames[0] != "root" || static.BoneNames[1] != "head" {
		t.Errorf("expected lowercased bone names, got %v", static.BoneNames)
	}
	if static.BoneParents[0] != -1 || static.BoneParents[1] != 0 {
		t.Errorf("unexpected parents %v", static.BoneParents)
	}
	if len(static.CurveNames) != 2 {
		t.Errorf("expected 2 curve names, got %v", static.CurveNames)
	}

	frame := c.frames["Face"]
	if len(frame.Transforms) != 2 {
		t.Fatalf("expected 2 transforms, got %d", len(frame.Transforms))
	}
	tr := frame.Transforms[0]
	if tr.Location != [3]float64{1, -2, 3} {
		t.Errorf("expected mirrored location, got %v", tr.Location)
	}
	if tr.Rotation != [4]float64{-0.1, 0.2, -0.3, 0.9} {
		t.Errorf("expected mirrored rotation, got %v", tr.Rotation)
	}
	if frame.Curves[0] != 0.5 || frame.Curves[1] != 0.25 {
		t.Errorf("unexpected curves %v", frame.Curves)
	}
}

func TestDecodeReusesSubjectWhenShapeStable(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)

	msg := []byte(`{"Face":{"Facial":{"Names":["A"],"Weights":[0.1]}}}`)
	d.Decode(msg)
	c.reset()
	d.Decode(msg)

	if len(c.calls) != 1 || c.calls[0].op != "frame" {
		t.Errorf("expected a single frame push, got %v", c.calls)
	}
}

func TestDecodeRecreatesOnShapeChange(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)

	d.Decode([]byte(`{"Face":{"Facial":{"Names":["A"],"Weights":[0.1]}}}`))
	c.reset()
	d.Decode([]byte(`{"Face":{"Facial":{"Names":["A","B"],"Weights":[0.1,0.2]}}}`))

	want := []call{{"remove", "Face"}, {"static", "Face"}, {"frame", "Face"}}
	if fmt.Sprint(c.calls) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, c.calls)
	}
}

func TestDecodeRemovesMissingSubjects(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)

	d.Decode([]byte(`{"A":{},"B":{}}`))
	c.reset()
	d.Decode([]byte(`{"B":{}}`))

	if _, ok := c.static["A"]; ok {
		t.Error("expected subject A removed")
	}
	if subjects := d.Subjects(); len(subjects) != 1 || subjects[0] != "B" {
		t.Errorf("expected only B live, got %v", subjects)
	}
}

func TestDisconnectStopsProcessing(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)

	d.Decode([]byte(`{"A":{},"B":{}}`))
	c.reset()
	d.Decode([]byte(`{"A":{},"Disconnect":{},"B":{}}`))

	if _, ok := c.static["B"]; ok {
		t.Error("expected B removed since it follows Disconnect")
	}
	if _, ok := c.frames["A"]; !ok {
		t.Error("expected A still updated")
	}
}

func TestMalformedBoneAbortsSubject(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"ParentName":"","Location":[0,0,0],"Rotation":[0,0,0,1]}`},
		{"missing parent", `{"Name":"Root","Location":[0,0,0],"Rotation":[0,0,0,1]}`},
		{"short location", `{"Name":"Root","ParentName":"","Location":[0,0],"Rotation":[0,0,0,1]}`},
		{"short rotation", `{"Name":"Root","ParentName":"","Location":[0,0,0],"Rotation":[0,0,1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRecordingConsumer()
			d := NewDecoder(c, nil)

			good := `{"Face":{"Body":[` + bone("Root", "") + `]}}`
			if err := d.Decode([]byte(good)); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			before := c.frames["Face"]
			c.reset()

			err := d.Decode([]byte(`{"Face":{"Body":[` + tt.body + `]}}`))
			if !errors.Is(err, ErrInvalidBone) {
				t.Errorf("expected ErrInvalidBone, got %v", err)
			}
			if len(c.calls) != 0 {
				t.Errorf("expected no consumer calls, got %v", c.calls)
			}
			if fmt.Sprint(c.frames["Face"]) != fmt.Sprint(before) {
				t.Error("expected previous subject state unchanged")
			}
			if len(d.Subjects()) != 1 {
				t.Error("expected subject to stay live")
			}
		})
	}
}

func TestDecodeIgnoresControlPayloads(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)

	for _, p := range []string{"EOS", "A2F:30"} {
		if err := d.Decode([]byte(p)); err != nil {
			t.Errorf("%s: unexpected error %v", p, err)
		}
	}
	if len(c.calls) != 0 {
		t.Errorf("expected no consumer calls, got %v", c.calls)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)

	for _, p := range []string{`{"A":`, `[1,2]`, `garbage`} {
		if err := d.Decode([]byte(p)); !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("%q: expected ErrInvalidJSON, got %v", p, err)
		}
	}
	if _, failed := d.Counts(); failed != 3 {
		t.Errorf("expected 3 failures, got %d", failed)
	}
}

func TestClearAllSubjects(t *testing.T) {
	c := newRecordingConsumer()
	d := NewDecoder(c, nil)
	d.Decode([]byte(`{"A":{},"B":{}}`))

	d.ClearAllSubjects()
	if len(d.Subjects()) != 0 || len(c.static) != 0 {
		t.Errorf("expected all subjects cleared, got %v", d.Subjects())
	}
}

func TestStoreTracksLatestFrame(t *testing.T) {
	s := NewStore()
	d := NewDecoder(Multi{s}, nil)

	d.Decode([]byte(`{"Face":{"Facial":{"Names":["A"],"Weights":[0.1]}}}`))
	d.Decode([]byte(`{"Face":{"Facial":{"Names":["A"],"Weights":[0.7]}}}`))

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 subject, got %d", len(snap))
	}
	if snap[0].Frames != 2 || snap[0].Frame.Curves[0] != float32(0.7) {
		t.Errorf("unexpected state %+v", snap[0])
	}

	d.Decode([]byte(`{}`))
	if s.Len() != 0 {
		t.Errorf("expected store emptied, got %d", s.Len())
	}
}

// ABOUTME: Animation data types pushed to consumers
// ABOUTME: Subjects carry a static skeleton/curve layout and per-frame values
package animation

// Transform is a bone pose in the consumer's coordinate space
type Transform struct {
	Location [3]float64 `json:"location"`
	Rotation [4]float64 `json:"rotation"` // x, y, z, w
}

// StaticData describes a subject's layout. It changes only when the bone
// or curve count changes.
type StaticData struct {
	Subject     string   `json:"subject"`
	BoneNames   []string `json:"bone_names,omitempty"`
	BoneParents []int    `json:"bone_parents,omitempty"`
	CurveNames  []string `json:"curve_names,omitempty"`
}

// Frame holds one update for a subject
type Frame struct {
	Subject    string      `json:"subject"`
	Transforms []Transform `json:"transforms,omitempty"`
	Curves     []float32   `json:"curves,omitempty"`
}

// Consumer receives decoded animation
type Consumer interface {
	PushStaticData(data StaticData)
	PushFrame(frame Frame)
	RemoveSubject(subject string)
}

// Multi fans every call out to each consumer in order
type Multi []Consumer

func (m Multi) PushStaticData(data StaticData) {
	for _, c := range m {
		c.PushStaticData(data)
	}
}

func (m Multi) PushFrame(frame Frame) {
	for _, c := range m {
		c.PushFrame(frame)
	}
}

func (m Multi) RemoveSubject(subject string) {
	for _, c := range m {
		c.RemoveSubject(subject)
	}
}

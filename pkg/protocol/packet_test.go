// ABOUTME: Tests for payload classification and header parsing
// ABOUTME: Covers magic matching, field counts and leading-integer parsing
package protocol

import (
	"testing"

	"github.com/Resonate-Protocol/livelink-go/pkg/audio"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		magic   string
		want    Kind
	}{
		{"end marker", "EOS", AnimationMagic, KindEnd},
		{"end marker audio", "EOS", WaveMagic, KindEnd},
		{"end marker with suffix", "EOS!", AnimationMagic, KindData},
		{"animation header", "A2F:30", AnimationMagic, KindHeader},
		{"bare magic", "A2F", AnimationMagic, KindData},
		{"wave header", "WAVE:16000:1:16:1", WaveMagic, KindHeader},
		{"wrong magic", "A2F:30", WaveMagic, KindData},
		{"json", `{"a":1}`, AnimationMagic, KindData},
		{"empty", "", AnimationMagic, KindData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify([]byte(tt.payload), tt.magic); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseAnimationHeader(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		fps     int
		ok      bool
	}{
		{"valid", "A2F:30", 30, true},
		{"float fps", "A2F:30.0", 30, true},
		{"empty fields dropped", "A2F::60:", 60, true},
		{"zero fps", "A2F:0", 0, false},
		{"negative fps", "A2F:-5", 0, false},
		{"non numeric", "A2F:abc", 0, false},
		{"too many fields", "A2F:30:1", 0, false},
		{"missing fps", "A2F:", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fps, ok := ParseAnimationHeader([]byte(tt.payload))
			if ok != tt.ok || fps != tt.fps {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.fps, tt.ok, fps, ok)
			}
		})
	}
}

func TestParseWaveHeader(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    audio.WaveFormat
		ok      bool
	}{
		{"pcm mono", "WAVE:16000:1:16:1", audio.WaveFormat{SamplesPerSecond: 16000, NumChannels: 1, BitsPerSample: 16, SampleType: 1}, true},
		{"float stereo", "WAVE:48000:2:32:3", audio.WaveFormat{SamplesPerSecond: 48000, NumChannels: 2, BitsPerSample: 32, SampleType: 3}, true},
		{"too few fields", "WAVE:16000:1:16", audio.WaveFormat{}, false},
		{"too many fields", "WAVE:16000:1:16:1:9", audio.WaveFormat{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseWaveHeader([]byte(tt.payload))
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestHeaderBuildersRoundTrip(t *testing.T) {
	if fps, ok := ParseAnimationHeader(AnimationHeader(24)); !ok || fps != 24 {
		t.Errorf("expected 24 fps, got %d (%v)", fps, ok)
	}

	f := audio.WaveFormat{SamplesPerSecond: 22050, NumChannels: 2, BitsPerSample: 16, SampleType: 1}
	got, ok := ParseWaveHeader(WaveHeader(f))
	if !ok || got != f {
		t.Errorf("expected %+v, got %+v (%v)", f, got, ok)
	}
}

func TestAtoi(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"42", 42},
		{"  7", 7},
		{"+3", 3},
		{"-12abc", -12},
		{"x1", 0},
		{"", 0},
		{"99999999999", 2147483647},
		{"-99999999999", -2147483648},
	}

	for _, tt := range tests {
		if got := atoi(tt.in); got != tt.want {
			t.Errorf("atoi(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestChannelFenceBits(t *testing.T) {
	if ChannelAudio.FenceBit() != 0x1 {
		t.Errorf("expected audio bit 0x1, got %#x", ChannelAudio.FenceBit())
	}
	if ChannelAnimation.FenceBit() != 0x2 {
		t.Errorf("expected animation bit 0x2, got %#x", ChannelAnimation.FenceBit())
	}
}

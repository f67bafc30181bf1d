// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a float32 playback callback
package output

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	volume
	log *zap.SugaredLogger

	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	renderer   atomic.Pointer[rendererRef]
	sampleRate int
	channels   int

	// callback scratch, only touched on the device thread
	buf []float32

	mu sync.Mutex
}

// NewMalgo creates a new Malgo output
func NewMalgo(logger *zap.SugaredLogger) *Malgo {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	m := &Malgo{log: logger}
	m.volume.reset()
	return m
}

// Open initializes the playback device and starts rendering
func (m *Malgo) Open(sampleRate, channels int, r Renderer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		m.log.Infof("Audio output already initialized with same format, reusing device")
		m.renderer.Store(&rendererRef{r})
		return nil
	}

	if m.device != nil {
		m.log.Infof("Format change detected (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	m.renderer.Store(&rendererRef{r})
	m.sampleRate = sampleRate
	m.channels = channels

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.device = device

	m.log.Infof("Audio output initialized: %dHz, %d channels (malgo/F32)", sampleRate, channels)
	return nil
}

// rendererRef lets the device thread load the renderer atomically
type rendererRef struct {
	Renderer
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	n := int(frameCount) * m.channels
	if cap(m.buf) < n {
		m.buf = make([]float32, n)
	}
	buf := m.buf[:n]

	ref := m.renderer.Load()
	if ref == nil || ref.Renderer == nil {
		clear(buf)
	} else {
		m.volume.render(ref.Renderer, buf, m.channels, m.sampleRate)
	}
	encodeFloat32LE(pOutput, buf)
}

// encodeFloat32LE writes samples as little-endian float32 into dst
func encodeFloat32LE(dst []byte, samples []float32) int {
	n := len(dst) / 4
	if n > len(samples) {
		n = len(samples)
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(samples[i]))
	}
	return n * 4
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.log.Warnf("malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		m.log.Warnf("device stop error: %v", err)
	}
	m.device.Uninit()
	m.device = nil
}

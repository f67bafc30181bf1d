// ABOUTME: Scrape-time collector for frame player and mixer statistics
// ABOUTME: Takes one source status snapshot per scrape
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Resonate-Protocol/livelink-go/internal/player"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

type sourceCollector struct {
	src StatusProvider

	packetsReceived *prometheus.Desc
	packetsPlayed   *prometheus.Desc
	packetsDropped  *prometheus.Desc
	fenceWaits      *prometheus.Desc
	queueDepth      *prometheus.Desc
	inBurst         *prometheus.Desc
	burstFPS        *prometheus.Desc
	fence           *prometheus.Desc
	resets          *prometheus.Desc

	segmentsCreated  *prometheus.Desc
	segmentsRejected *prometheus.Desc
	bytesDropped     *prometheus.Desc
	samplesRendered  *prometheus.Desc
	underruns        *prometheus.Desc
	rateMismatches   *prometheus.Desc
	segments         *prometheus.Desc
	bufferedBytes    *prometheus.Desc

	subjects     *prometheus.Desc
	decodeFailed *prometheus.Desc
	delay        *prometheus.Desc
}

func newSourceCollector(src StatusProvider) *sourceCollector {
	channel := []string{"channel"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &sourceCollector{
		src: src,

		packetsReceived: desc("player_packets_received_total", "Packets pushed to the frame player", channel),
		packetsPlayed:   desc("player_packets_played_total", "Packets released to channel sinks", channel),
		packetsDropped:  desc("player_packets_dropped_total", "Packets discarded by a reset", channel),
		fenceWaits:      desc("player_fence_waits_total", "End-of-burst packets held by the fence", channel),
		queueDepth:      desc("player_queue_depth", "Packets waiting in the channel queue", channel),
		inBurst:         desc("listener_in_burst", "Whether the channel is inside a burst", channel),
		burstFPS:        desc("listener_burst_fps", "Frame rate announced by the current burst header", channel),
		fence:           desc("player_fence", "Fence bitmask, 255 when no burst is open", nil),
		resets:          desc("player_resets_total", "Frame player resets", nil),

		segmentsCreated:  desc("mixer_segments_created_total", "Mixer segments created", nil),
		segmentsRejected: desc("mixer_segments_rejected_total", "Mixer segments refused because too many were queued", nil),
		bytesDropped:     desc("mixer_bytes_dropped_total", "Audio bytes that could not be buffered", nil),
		samplesRendered:  desc("mixer_samples_rendered_total", "Samples rendered to the audio device", nil),
		underruns:        desc("mixer_underruns_total", "Render calls that ran out of buffered audio", nil),
		rateMismatches:   desc("mixer_rate_mismatches_total", "Renders where the segment rate differed from the device rate", nil),
		segments:         desc("mixer_segments", "Segments waiting for or in playback", nil),
		bufferedBytes:    desc("mixer_buffered_bytes", "Audio bytes waiting for playback", nil),

		subjects:     desc("animation_subjects", "Live animation subjects", nil),
		decodeFailed: desc("animation_decode_failures_total", "Animation payloads that failed to decode", nil),
		delay:        desc("channel_delay_ms", "Configured channel delay in milliseconds", channel),
	}
}

func (c *sourceCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *sourceCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Status()

	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	perChannel := []struct {
		ch    protocol.Channel
		stats player.ChannelStats
		burst bool
		fps   int
		delay int
	}{
		{protocol.ChannelAudio, st.Player.Audio, st.Audio.InBurst, st.Audio.FPS, st.AudioDelayMs},
		{protocol.ChannelAnimation, st.Player.Animation, st.Animation.InBurst, st.Animation.FPS, st.AnimationDelayMs},
	}
	for _, p := range perChannel {
		name := p.ch.String()
		counter(c.packetsReceived, float64(p.stats.Received), name)
		counter(c.packetsPlayed, float64(p.stats.Played), name)
		counter(c.packetsDropped, float64(p.stats.Dropped), name)
		counter(c.fenceWaits, float64(p.stats.FenceWaits), name)
		gauge(c.queueDepth, float64(p.stats.Queued), name)
		gauge(c.inBurst, boolValue(p.burst), name)
		gauge(c.burstFPS, float64(p.fps), name)
		gauge(c.delay, float64(p.delay), name)
	}
	gauge(c.fence, float64(st.Player.Fence))
	counter(c.resets, float64(st.Player.Resets))

	counter(c.segmentsCreated, float64(st.Mixer.SegmentsCreated))
	counter(c.segmentsRejected, float64(st.Mixer.SegmentsRejected))
	counter(c.bytesDropped, float64(st.Mixer.BytesDropped))
	counter(c.samplesRendered, float64(st.Mixer.SamplesRendered))
	counter(c.underruns, float64(st.Mixer.Underruns))
	counter(c.rateMismatches, float64(st.Mixer.RateMismatches))
	gauge(c.segments, float64(st.Mixer.Segments))
	gauge(c.bufferedBytes, float64(st.Mixer.BufferedBytes))

	gauge(c.subjects, float64(st.Subjects))
	counter(c.decodeFailed, float64(st.FramesFailed))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

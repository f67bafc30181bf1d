// ABOUTME: Tests for the TCP channel listener
// ABOUTME: Uses loopback connections to exercise reassembly and connection replacement
package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

func startListener(t *testing.T, ch *fakeChannel, sched *fakeScheduler) *Listener {
	t.Helper()
	l := New(Config{
		Address:   "127.0.0.1:0",
		Channel:   ch,
		Scheduler: sched,
	})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestListenerReassemblesSplitWrites(t *testing.T) {
	ch := &fakeChannel{ch: protocol.ChannelAnimation}
	sched := &fakeScheduler{}
	l := startListener(t, ch, sched)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	var stream []byte
	stream = append(stream, protocol.EncodeFrame([]byte("A2F:30"))...)
	stream = append(stream, protocol.EncodeFrame([]byte(`{"Face":{}}`))...)
	stream = append(stream, protocol.EncodeFrame([]byte("EOS"))...)

	// dribble the stream a few bytes at a time
	for i := 0; i < len(stream); i += 5 {
		end := i + 5
		if end > len(stream) {
			end = len(stream)
		}
		if _, err := conn.Write(stream[i:end]); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	waitFor(t, "three packets", func() bool { return len(sched.all()) == 3 })
	waitFor(t, "frame count", func() bool { return l.Status().FramesReceived == 3 })

	pkts := sched.all()
	if !pkts[0].pkt.BeginFence || !pkts[2].pkt.EndFence {
		t.Errorf("expected begin and end fences, got %+v", pkts)
	}
	if string(pkts[1].pkt.Payload) != `{"Face":{}}` {
		t.Errorf("unexpected payload %q", pkts[1].pkt.Payload)
	}

	st := l.Status()
	if !st.Connected || st.FramesReceived != 3 || st.InBurst {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestListenerDeliversOutsideBurst(t *testing.T) {
	ch := &fakeChannel{ch: protocol.ChannelAudio}
	sched := &fakeScheduler{}
	l := startListener(t, ch, sched)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := protocol.WriteFrame(conn, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	waitFor(t, "immediate delivery", func() bool { return len(ch.deliveries()) == 1 })
	if len(sched.all()) != 0 {
		t.Error("expected no scheduled packets outside a burst")
	}
}

func TestNewConnectionReplacesOld(t *testing.T) {
	ch := &fakeChannel{ch: protocol.ChannelAudio}
	sched := &fakeScheduler{}
	l := startListener(t, ch, sched)

	first, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer first.Close()
	waitFor(t, "first connection", func() bool { return l.Status().Connections == 1 })

	// half a frame from the first peer must not leak into the second
	partial := protocol.EncodeFrame([]byte("first-peer-data"))
	first.Write(partial[:12])
	time.Sleep(20 * time.Millisecond)

	second, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer second.Close()
	waitFor(t, "second connection", func() bool { return l.Status().Connections == 2 })

	protocol.WriteFrame(second, []byte("second"))
	waitFor(t, "delivery from second peer", func() bool { return len(ch.deliveries()) == 1 })

	if got := ch.deliveries(); got[0] != "second" {
		t.Errorf("expected clean frame from second peer, got %q", got[0])
	}

	// the replaced connection is closed by the listener
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := first.Read(make([]byte, 1)); err == nil {
		t.Error("expected first connection to be closed")
	}
}

func TestBurstStateSurvivesReconnect(t *testing.T) {
	ch := &fakeChannel{ch: protocol.ChannelAnimation}
	sched := &fakeScheduler{}
	l := startListener(t, ch, sched)

	first, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	protocol.WriteFrame(first, []byte("A2F:25"))
	waitFor(t, "header", func() bool { return len(sched.all()) == 1 })
	first.Close()
	waitFor(t, "disconnect", func() bool { return !l.Status().Connected })

	second, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer second.Close()
	protocol.WriteFrame(second, []byte("frame"))
	waitFor(t, "frame", func() bool { return len(sched.all()) == 2 })

	if d := sched.all()[1].pkt.Delta; d != time.Second/25 {
		t.Errorf("expected burst timing to carry over, got delta %v", d)
	}
}

func TestCloseBeforeStart(t *testing.T) {
	l := New(Config{Channel: &fakeChannel{}, Scheduler: &fakeScheduler{}})
	if err := l.Close(); err != ErrNotStarted {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

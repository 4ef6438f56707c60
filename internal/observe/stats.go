package observe

import (
	"context"
	"time"

	"github.com/acoustad/voxcall/pkg/call"
)

// Stats adapts [Metrics] to the call core's recorder interface. Recording
// happens on the audio and event hot paths, so a background context is used
// rather than threading one through the call core.
type Stats struct {
	m *Metrics
}

var _ call.StatsRecorder = (*Stats)(nil)

// NewStats returns a recorder backed by m. Pass nil to use [DefaultMetrics].
func NewStats(m *Metrics) *Stats {
	if m == nil {
		m = DefaultMetrics()
	}
	return &Stats{m: m}
}

func (s *Stats) FrameSent(bytes int) {
	ctx := context.Background()
	s.m.AudioFramesSent.Add(ctx, 1)
	s.m.AudioBytesSent.Add(ctx, int64(bytes))
}

func (s *Stats) EventReceived(kind string) {
	s.m.RecordInboundEvent(context.Background(), kind)
}

func (s *Stats) ReconnectScheduled(attempt int) {
	s.m.RecordReconnect(context.Background(), attempt)
}

func (s *Stats) CallStarted() {
	s.m.ActiveCalls.Add(context.Background(), 1)
}

func (s *Stats) CallEnded(d time.Duration) {
	ctx := context.Background()
	s.m.ActiveCalls.Add(ctx, -1)
	s.m.CallDuration.Record(ctx, d.Seconds())
}

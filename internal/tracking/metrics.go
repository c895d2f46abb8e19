package tracking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/mat"
)

const (
	stageFrameLinking   = "frame_linking"
	stageSegmentLinking = "segment_linking"
)

// Metrics holds the Prometheus collectors of a tracker. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	StageDuration   *prometheus.HistogramVec
	MatrixSize      *prometheus.HistogramVec
	Events          *prometheus.CounterVec
	DroppedSegments prometheus.Counter
}

// NewMetrics creates the tracker collectors and registers them on reg. A nil
// reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "laptrack",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each tracking stage",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
		MatrixSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "laptrack",
			Name:      "lap_matrix_size",
			Help:      "Side length of the square LAP matrices handed to the solver",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 12),
		}, []string{"stage"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "laptrack",
			Name:      "events_total",
			Help:      "Edges added to trajectory graphs, by kind",
		}, []string{"kind"}),
		DroppedSegments: f.NewCounter(prometheus.CounterOpts{
			Namespace: "laptrack",
			Name:      "dropped_segments_total",
			Help:      "Segments discarded for being shorter than the minimum length",
		}),
	}
}

func (m *Metrics) observeMatrix(stage string, full mat.Matrix) {
	if m == nil {
		return
	}
	n, _ := full.Dims()
	m.MatrixSize.WithLabelValues(stage).Observe(float64(n))
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeStats(st Stats) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(EdgeLink.String()).Add(float64(st.FrameLinks))
	m.Events.WithLabelValues(EdgeGapClosing.String()).Add(float64(st.GapClosings))
	m.Events.WithLabelValues(EdgeMerge.String()).Add(float64(st.Merges))
	m.Events.WithLabelValues(EdgeSplit.String()).Add(float64(st.Splits))
	m.DroppedSegments.Add(float64(st.DroppedSegments))
}

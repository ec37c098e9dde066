package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vehicle_auction"

// Recorder publishes engine activity as Prometheus metrics
type Recorder struct {
	bidsAccepted    *prometheus.CounterVec
	bidsRejected    *prometheus.CounterVec
	autoBids        prometheus.Counter
	cascadeDuration prometheus.Histogram
	lotsEnded       *prometheus.CounterVec
}

type RecorderParams struct {
	// Registerer defaults to prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

func NewRecorder(params RecorderParams) *Recorder {
	reg := params.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		bidsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_accepted_total",
			Help:      "Accepted bids by bid type.",
		}, []string{"kind"}),
		bidsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_rejected_total",
			Help:      "Rejected bids by the first rule they violated.",
		}, []string{"rule"}),
		autoBids: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_bids_total",
			Help:      "Auto-bids emitted by proxy cascades.",
		}),
		cascadeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_duration_seconds",
			Help:      "Time spent resolving proxy cascades.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		lotsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lots_ended_total",
			Help:      "Resolved lots by outcome.",
		}, []string{"outcome"}),
	}
}

func (r *Recorder) BidAccepted(kind string) {
	r.bidsAccepted.WithLabelValues(kind).Inc()
}

func (r *Recorder) BidRejected(rule string) {
	r.bidsRejected.WithLabelValues(rule).Inc()
}

func (r *Recorder) AutoBidsEmitted(count int) {
	if count > 0 {
		r.autoBids.Add(float64(count))
	}
}

func (r *Recorder) CascadeDuration(d time.Duration) {
	r.cascadeDuration.Observe(d.Seconds())
}

func (r *Recorder) LotEnded(outcome string) {
	r.lotsEnded.WithLabelValues(outcome).Inc()
}

package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	EncodeErrorsTotal  *prometheus.CounterVec
	PredictionsTotal   *prometheus.CounterVec
	Probability        *prometheus.HistogramVec
	ScoringDuration    *prometheus.HistogramVec
	ScoringErrorsTotal *prometheus.CounterVec
	DisagreementsTotal prometheus.Counter
	SubmitsTotal       *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitaltriage_evaluations_total",
			Help: "Total evaluations by outcome.",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitaltriage_evaluation_duration_seconds",
			Help:    "Duration of encode plus all model scoring.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us .. ~0.4s
		}),
		EncodeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitaltriage_encode_errors_total",
			Help: "Records rejected by the feature encoder, by error kind.",
		}, []string{"kind"}),
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitaltriage_predictions_total",
			Help: "Predictions by model and triage category.",
		}, []string{"model", "category"}),
		Probability: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vitaltriage_probability",
			Help:    "Positive-class probability returned by each model.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10), // 0.1 .. 1.0
		}, []string{"model"}),
		ScoringDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vitaltriage_scoring_duration_seconds",
			Help:    "Duration of a single model scoring call.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us .. ~80ms
		}, []string{"model"}),
		ScoringErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitaltriage_scoring_errors_total",
			Help: "Model scoring failures by model.",
		}, []string{"model"}),
		DisagreementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitaltriage_model_disagreements_total",
			Help: "Evaluations where models reached different categories.",
		}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitaltriage_submits_total",
			Help: "Total evaluation submissions by result.",
		}, []string{"result"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitaltriage_notifications_total",
			Help: "Triage notifications by delivery status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.EncodeErrorsTotal,
		m.PredictionsTotal,
		m.Probability,
		m.ScoringDuration,
		m.ScoringErrorsTotal,
		m.DisagreementsTotal,
		m.SubmitsTotal,
		m.NotificationsTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnEncodeError: func(kind string) {
			m.EncodeErrorsTotal.WithLabelValues(kind).Inc()
		},
		OnScore: func(model string, p Prediction, duration float64, err error) {
			m.ScoringDuration.WithLabelValues(model).Observe(duration)
			if err != nil {
				m.ScoringErrorsTotal.WithLabelValues(model).Inc()
				return
			}
			m.PredictionsTotal.WithLabelValues(model, string(p.Category)).Inc()
			m.Probability.WithLabelValues(model).Observe(p.Probability)
		},
		OnComplete: func(e *CompleteEvent) {
			m.EvaluationsTotal.WithLabelValues(e.Outcome).Inc()
			m.EvaluationDuration.Observe(e.Duration)
			if e.Disagreement {
				m.DisagreementsTotal.Inc()
			}
		},
	}
}

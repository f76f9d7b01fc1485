// Package metrics exposes Prometheus counters for ingestion, retraining and
// posting. A nil *Metrics records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/models"
)

type Metrics struct {
	ingested   *prometheus.CounterVec
	retrains   *prometheus.CounterVec
	posts      *prometheus.CounterVec
	corpusSize prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markovbot_ingested_messages_total",
			Help: "Inbound chat messages by ingestion result.",
		}, []string{"result"}),
		retrains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markovbot_model_retrains_total",
			Help: "Generation model rebuilds by status.",
		}, []string{"status"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markovbot_post_cycles_total",
			Help: "Posting cycles by surface and outcome.",
		}, []string{"surface", "outcome"}),
		corpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "markovbot_corpus_size",
			Help: "Messages currently held in the corpus.",
		}),
	}
	reg.MustRegister(m.ingested, m.retrains, m.posts, m.corpusSize)
	return m
}

func (m *Metrics) Ingested(result models.IngestResult) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(result.String()).Inc()
}

func (m *Metrics) Retrained(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.retrains.WithLabelValues(status).Inc()
}

func (m *Metrics) Posted(surface string, outcome models.Outcome) {
	if m == nil {
		return
	}
	m.posts.WithLabelValues(surface, outcome.String()).Inc()
}

func (m *Metrics) CorpusSize(n int) {
	if m == nil {
		return
	}
	m.corpusSize.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package grpccas

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics counts PayloadStore requests on its own registry.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesStored     prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payloadstore_requests_total",
				Help: "Total number of PayloadStore requests by method and status code",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payloadstore_request_duration_seconds",
				Help:    "PayloadStore request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		bytesStored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "payloadstore_put_bytes_total",
				Help: "Total payload bytes accepted by successful Put calls",
			},
		),
		registry: registry,
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.bytesStored)
	return m
}

// UnaryServerInterceptor records every call and logs failures when log is set.
func (m *Metrics) UnaryServerInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		method := info.FullMethod[strings.LastIndexByte(info.FullMethod, '/')+1:]
		code := status.Code(err)

		m.requestsTotal.WithLabelValues(method, code.String()).Inc()
		m.requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err == nil && info.FullMethod == methodPut {
			if in, ok := req.(interface{ GetValue() []byte }); ok {
				m.bytesStored.Add(float64(len(in.GetValue())))
			}
		}
		if err != nil && log != nil {
			log.Warn("payload store request failed", "method", method, "code", code.String(), "err", err)
		}
		return resp, err
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

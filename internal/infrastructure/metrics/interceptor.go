package metrics

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor records the outcome of every unary call in collector
// and, when exporter is non-nil, in Prometheus.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err)
		collector.ObserveCall(info.FullMethod, code, elapsed)
		if exporter != nil {
			exporter.ObserveCall(info.FullMethod, code, elapsed)
		}
		return resp, err
	}
}

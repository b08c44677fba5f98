package rpcapi

import (
	"context"
	"strings"
	"time"

	"github.com/cuemby/compactord/pkg/metrics"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// LoggingInterceptor logs every inbound RPC's method, duration, and
// outcome at the component logger's debug/warn level, and records the
// same method/outcome pair into compactord_rpc_requests_total.
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := methodName(info.FullMethod)
		outcome := "ok"
		event := logger.Debug()
		if err != nil {
			outcome = "error"
			event = logger.Warn()
		}
		event.
			Str("method", method).
			Dur("duration", time.Since(start)).
			AnErr("err", err).
			Msg("rpc handled")

		metrics.RPCRequestsTotal.WithLabelValues(method, outcome).Inc()

		return resp, err
	}
}

func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}

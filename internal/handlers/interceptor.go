package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "x-request-id"

// LoggingInterceptor returns a gRPC interceptor that tags each request with
// a request id and logs its outcome. A client supplied x-request-id is kept.
func LoggingInterceptor(log *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		requestID := incomingRequestID(ctx)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = logger.WithRequestID(ctx, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		l := logger.FromContext(ctx, log).With(
			logger.FieldMethod, info.FullMethod,
			logger.FieldCode, code.String(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
		switch {
		case err == nil:
			l.Infow("request completed")
		case code == codes.Internal || code == codes.Unknown:
			l.Errorw("request failed", logger.FieldError, err)
		default:
			l.Warnw("request rejected", logger.FieldError, err)
		}

		return resp, err
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if ids := md.Get(RequestIDHeader); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

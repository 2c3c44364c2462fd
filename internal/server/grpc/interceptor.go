package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/rpc"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// publicMethods can be called without an access token.
var publicMethods = map[string]bool{
	rpc.MethodRegister:     true,
	rpc.MethodLogin:        true,
	rpc.MethodRefreshToken: true,
	rpc.MethodPing:         true,
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return userID, nil
}

// authenticate resolves the caller from the access_token metadata.
// Expired tokens are reported with the exact "token expired" message the
// client keys its refresh on.
func (s *GRPCServer) authenticate(ctx context.Context) (string, error) {
	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return "", status.Error(codes.Unauthenticated, "missing token")
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return "", status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return "", status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}
	return userID, nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	userID, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return handler(withUserID(ctx, userID), req)
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *authenticatedStream) Context() context.Context { return w.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	userID, err := s.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &authenticatedStream{ServerStream: ss, ctx: withUserID(ss.Context(), userID)})
}

// metricsInterceptor counts unary calls by method and status code.
func (s *GRPCServer) metricsInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	begin := time.Now()
	resp, err := handler(ctx, req)

	s.metrics.HistRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(begin).Seconds())
	s.metrics.CounterRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	return resp, err
}

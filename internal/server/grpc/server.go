// Package grpc exposes the NoteSync service over gRPC: account and token
// calls, note upsert and selection, exports, and the per-user change feed.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/rpc"
	"github.com/dmitrijs2005/notesync/internal/server/changefeed"
	"github.com/dmitrijs2005/notesync/internal/server/metrics"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"google.golang.org/grpc"
)

const gracefulStopTimeout = 10 * time.Second

type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type NoteService interface {
	Upsert(ctx context.Context, userID string, n *models.Note) (*models.Note, error)
	SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error)
	Export(ctx context.Context, userID string) (string, string, error)
}

type ChangeBroker interface {
	Subscribe(userID string) *changefeed.Subscriber
}

type GRPCServer struct {
	address   string
	users     UserService
	notes     NoteService
	broker    ChangeBroker
	logger    logging.Logger
	metrics   *metrics.Manager
	jwtSecret []byte

	// closed when Run begins shutting down; ends open Subscribe streams
	stopping chan struct{}
}

var _ rpc.NoteSyncServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us UserService, ns NoteService, b ChangeBroker, mm *metrics.Manager, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		notes:     ns,
		broker:    b,
		metrics:   mm,
		jwtSecret: []byte(secretKey),
		stopping:  make(chan struct{}),
	}
}

// NewServer builds a grpc.Server with the interceptor chain and the
// NoteSync service registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	rpc.RegisterNoteSyncServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		close(s.stopping)

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(gracefulStopTimeout):
			srv.Stop()
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}

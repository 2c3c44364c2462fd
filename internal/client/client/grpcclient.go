package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const rpcTimeout = 12 * time.Second

// noteSyncAPI is the subset of *rpc.NoteSyncClient the client calls.
type noteSyncAPI interface {
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RefreshToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpsertNote(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SelectNotes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ExportNotes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (rpc.SubscribeClient, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      noteSyncAPI
	log         logging.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	onRefresh    func(access, refresh string)
	onReconnect  func()

	minBackoff time.Duration
	maxBackoff time.Duration
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, _ := s.Tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)

	if err == nil || !isTokenExpired(err) || method == rpc.MethodRefreshToken {
		return err
	}
	if rerr := s.refresh(ctx); rerr != nil {
		return err
	}

	// tokens refreshed, retry with the new access token
	access, _ = s.Tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

// refresh rotates the token pair using the refresh token.
func (s *GRPCClient) refresh(ctx context.Context) error {
	_, refreshToken := s.Tokens()
	if refreshToken == "" {
		return ErrNotSignedIn
	}

	resp, err := s.client.RefreshToken(ctx, rpc.EncodeString("refresh_token", refreshToken))
	if err != nil {
		return s.mapError(err)
	}
	tokens, err := rpc.DecodeTokens(resp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	fn := s.onRefresh
	s.mu.Unlock()

	if fn != nil {
		fn(tokens.AccessToken, tokens.RefreshToken)
	}
	return nil
}

func NewNoteSyncClient(endpointURL string, log logging.Logger) (*GRPCClient, error) {
	c := &GRPCClient{
		endpointURL: endpointURL,
		log:         log.With("module", "grpcclient"),
		minBackoff:  500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewNoteSyncClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	s.refreshToken = refresh
}

func (s *GRPCClient) Tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) OnTokensRefreshed(fn func(access, refresh string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

// OnReconnect registers fn to run each time a change feed stream is
// re-established after a disconnect. Events sent while the stream was down
// are lost, so fn typically schedules a sync pass.
func (s *GRPCClient) OnReconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReconnect = fn
}

func (s *GRPCClient) reconnected() {
	s.mu.RLock()
	fn := s.onReconnect
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *GRPCClient) Register(ctx context.Context, email, password string) error {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	_, err := s.client.Register(ctx, rpc.EncodeCredentials(rpc.Credentials{Email: email, Password: password}))
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.Login(ctx, rpc.EncodeCredentials(rpc.Credentials{Email: email, Password: password}))
	if err != nil {
		return "", s.mapError(err)
	}
	tokens, err := rpc.DecodeTokens(resp)
	if err != nil {
		return "", err
	}

	s.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	return tokens.UserID, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &structpb.Struct{})
	if err != nil {
		return s.mapError(err)
	}

	st, err := rpc.DecodeString(resp, "status")
	if err != nil || st != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Upsert(ctx context.Context, n *models.Note) (*models.Note, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.UpsertNote(ctx, rpc.EncodeNote(uploadPayload(n)))
	if err != nil {
		return nil, s.mapError(err)
	}
	stored, err := rpc.DecodeNote(resp)
	if err != nil {
		return nil, err
	}
	return noteFromWire(stored), nil
}

func (s *GRPCClient) SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.SelectNotes(ctx, rpc.EncodeSelectRequest(userID, after))
	if err != nil {
		return nil, s.mapError(err)
	}
	list, err := rpc.DecodeNoteList(resp)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Note, 0, len(list))
	for _, n := range list {
		result = append(result, noteFromWire(n))
	}
	return result, nil
}

func (s *GRPCClient) ExportNotes(ctx context.Context) (string, string, error) {
	resp, err := s.client.ExportNotes(ctx, &structpb.Struct{})
	if err != nil {
		return "", "", s.mapError(err)
	}
	return rpc.DecodeExport(resp)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.AlreadyExists:
		return common.ErrorAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

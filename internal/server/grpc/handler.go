package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/rpc"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus maps service errors onto gRPC status codes. Unknown errors are
// logged and reported as Internal without details.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation), errors.Is(err, rpc.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, common.ErrForeignRecord):
		return status.Error(codes.PermissionDenied, common.ErrForeignRecord.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func noteToWire(n *models.Note) *rpc.Note {
	if n == nil {
		return nil
	}
	return &rpc.Note{
		ID:              n.ID,
		UserID:          n.UserID,
		Content:         n.Content,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
		IsDeleted:       n.IsDeleted,
		ServerUpdatedAt: n.ServerUpdatedAt,
	}
}

func noteFromWire(n *rpc.Note) *models.Note {
	return &models.Note{
		ID:        n.ID,
		UserID:    n.UserID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		IsDeleted: n.IsDeleted,
	}
}

func changeToWire(c models.Change) rpc.Event {
	return rpc.Event{Kind: rpc.EventKind(c.Op), New: noteToWire(c.New), Old: noteToWire(c.Old)}
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	creds, err := rpc.DecodeCredentials(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registration request")

	u, err := s.users.Register(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", u.ID)
	return rpc.EncodeString(rpc.FieldUserID, u.ID), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	creds, err := rpc.DecodeCredentials(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	tokens, err := s.users.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return rpc.EncodeTokens(rpc.Tokens{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}), nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	refresh, err := rpc.DecodeString(req, "refresh_token")
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if refresh == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	tokens, err := s.users.RefreshToken(ctx, refresh)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return rpc.EncodeTokens(rpc.Tokens{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}), nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return rpc.EncodeString("status", "OK"), nil
}

func (s *GRPCServer) UpsertNote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	in, err := rpc.DecodeNote(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	stored, err := s.notes.Upsert(ctx, userID, noteFromWire(in))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Debug(ctx, "note upserted", "id", stored.ID, "updated_at", stored.UpdatedAt)
	return rpc.EncodeNote(noteToWire(stored)), nil
}

func (s *GRPCServer) SelectNotes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	requested, after, err := rpc.DecodeSelectRequest(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if requested != "" && requested != userID {
		return nil, status.Error(codes.PermissionDenied, "cannot read another user's notes")
	}

	list, err := s.notes.SelectUpdatedSince(ctx, userID, after)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := make([]*rpc.Note, 0, len(list))
	for _, n := range list {
		out = append(out, noteToWire(n))
	}
	return rpc.EncodeNoteList(out), nil
}

func (s *GRPCServer) ExportNotes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	key, url, err := s.notes.Export(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "notes exported", "user_id", userID, "key", key)
	return rpc.EncodeExport(key, url), nil
}

// Subscribe streams the caller's note changes until the client goes away,
// the server stops, or the subscriber falls behind.
func (s *GRPCServer) Subscribe(req *structpb.Struct, stream rpc.SubscribeServer) error {
	ctx := stream.Context()
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return err
	}

	requested, err := rpc.DecodeString(req, rpc.FieldUserID)
	if err != nil {
		return s.toStatus(ctx, err)
	}
	if requested != "" && requested != userID {
		return status.Error(codes.PermissionDenied, "cannot subscribe to another user's notes")
	}

	sub := s.broker.Subscribe(userID)
	defer sub.Close()

	s.logger.Debug(ctx, "subscriber connected", "user_id", userID)
	defer s.logger.Debug(ctx, "subscriber disconnected", "user_id", userID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopping:
			return status.Error(codes.Unavailable, "server shutting down")
		case c, ok := <-sub.Events():
			if !ok {
				if sub.Lagging() {
					return status.Error(codes.ResourceExhausted, "subscriber fell behind")
				}
				return status.Error(codes.Unavailable, "change feed closed")
			}
			if err := stream.Send(rpc.EncodeEvent(changeToWire(c))); err != nil {
				return err
			}
		}
	}
}

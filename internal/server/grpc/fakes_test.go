package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/rpc"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"github.com/dmitrijs2005/notesync/internal/server/changefeed"
	"github.com/dmitrijs2005/notesync/internal/server/metrics"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

const testSecret = "secret"

type fakeUsers struct {
	regErr    error
	loginErr  error
	refreshOK string
}

func (f *fakeUsers) Register(ctx context.Context, email, password string) (*models.User, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &models.User{ID: "u-" + email, Email: email}, nil
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	access, _ := auth.GenerateToken("u1", []byte(testSecret), time.Hour)
	return &services.TokenPair{UserID: "u1", AccessToken: access, RefreshToken: "r1"}, nil
}

func (f *fakeUsers) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if refreshToken != f.refreshOK {
		return nil, common.ErrorUnauthorized
	}
	access, _ := auth.GenerateToken("u1", []byte(testSecret), time.Hour)
	return &services.TokenPair{UserID: "u1", AccessToken: access, RefreshToken: "r2"}, nil
}

type fakeNotes struct {
	mu   sync.Mutex
	rows map[string]*models.Note
	err  error
}

func newFakeNotes() *fakeNotes { return &fakeNotes{rows: map[string]*models.Note{}} }

func (f *fakeNotes) Upsert(ctx context.Context, userID string, n *models.Note) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if cur, ok := f.rows[n.ID]; ok {
		if cur.UserID != userID {
			return nil, common.ErrForeignRecord
		}
		if n.UpdatedAt < cur.UpdatedAt {
			c := *cur
			return &c, nil
		}
	}
	c := *n
	c.UserID = userID
	c.ServerUpdatedAt = 999
	f.rows[n.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeNotes) SelectUpdatedSince(ctx context.Context, userID string, after int64) ([]*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Note
	for _, n := range f.rows {
		if n.UserID == userID && n.UpdatedAt > after {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeNotes) Export(ctx context.Context, userID string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return "exports/" + userID + "/x.json", "https://s3/x.json", nil
}

type harness struct {
	server *GRPCServer
	client *rpc.NoteSyncClient
	broker *changefeed.Broker
	users  *fakeUsers
	notes  *fakeNotes
	cancel context.CancelFunc
}

// newHarness serves a GRPCServer over bufconn and dials it.
func newHarness(t *testing.T) *harness {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	mm := metrics.NewTestManager()
	h := &harness{
		users:  &fakeUsers{refreshOK: "r1"},
		notes:  newFakeNotes(),
		broker: changefeed.NewBroker(8, mm, logging.Nop()),
	}
	h.server = NewGRPCServer("bufnet", logging.Nop(), h.users, h.notes, h.broker, mm, testSecret)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	done := make(chan error, 1)
	go func() { done <- h.server.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})

	h.client = rpc.NewNoteSyncClient(conn)
	return h
}

func authed(t *testing.T, userID string) context.Context {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, tok)
}

package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/smsfilter/internal/backup"
	"github.com/solatis/smsfilter/internal/core/api"
	"github.com/solatis/smsfilter/internal/core/auth"
	"github.com/solatis/smsfilter/internal/core/config"
	"github.com/solatis/smsfilter/internal/core/db"
	"github.com/solatis/smsfilter/internal/core/store"
	"github.com/solatis/smsfilter/internal/rules"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("testsecret1234567890abcdefghijklmnop")

type harness struct {
	client *api.FilterServiceClient
	conn   *grpc.ClientConn
	key    string
	set    *metrics.Set
}

func startServer(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.MigrateUp(database))
	q, err := db.LoadQueries(database)
	require.NoError(t, err)

	key, _, err := auth.CreateKey(ctx, q, "test-gateway", testSecretID, testSecret)
	require.NoError(t, err)

	set := metrics.NewSet()
	ruleStore := store.NewRuleStore(q)
	cfg := config.DefaultServiceConfig()
	svc, err := api.NewFilterService(
		rules.NewEngine(ruleStore, nil, set),
		store.NewMessageStore(q),
		backup.NewManager(ruleStore, nil, set),
		cfg, nil)
	require.NoError(t, err)

	srv, err := NewGRPCServer(cfg, svc, auth.NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q), nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{client: api.NewFilterServiceClient(conn), conn: conn, key: key, set: set}
}

func (h *harness) authed(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "x-api-key", h.key)
}

func TestGRPCServer_EndToEnd(t *testing.T) {
	h := startServer(t)
	ctx := h.authed(context.Background())

	doc, err := structpb.NewStruct(map[string]interface{}{
		"document": `{"version":3,"filters":[{"action":"block","sender":{"mode":"starts_with","pattern":"+1900","caseSensitive":false}}]}`,
	})
	require.NoError(t, err)
	resp, err := h.client.ImportRules(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, float64(1), resp.Fields["imported"].GetNumberValue())

	msg, err := structpb.NewStruct(map[string]interface{}{"sender": "+19005551234", "body": "hi"})
	require.NoError(t, err)
	resp, err = h.client.Evaluate(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "block", resp.Fields["decision"].GetStringValue())

	resp, err = h.client.ListBlocked(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.Len(t, resp.Fields["messages"].GetListValue().GetValues(), 1)
}

func TestGRPCServer_RequiresAPIKey(t *testing.T) {
	h := startServer(t)

	_, err := h.client.Evaluate(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCServer_HealthWithoutKey(t *testing.T) {
	h := startServer(t)

	resp, err := grpc_health_v1.NewHealthClient(h.conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestMetricsHandler(t *testing.T) {
	set := metrics.NewSet()
	set.GetOrCreateCounter(`smsfilter_decisions_total{decision="block"}`).Add(3)

	rec := httptest.NewRecorder()
	MetricsHandler(set).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `smsfilter_decisions_total{decision="block"} 3`)
}

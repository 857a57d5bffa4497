package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustena-platforms/julctl/internal/coordinator"
	"github.com/sustena-platforms/julctl/internal/metrics"
	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/registry"
	"github.com/sustena-platforms/julctl/internal/view"
)

// stubLedger answers every call from fixed state; err, when set, fails the
// write operations.
type stubLedger struct {
	mu       sync.Mutex
	next     []string
	balances map[string]models.Amount
	err      error
	sent     []models.Transaction
}

func (l *stubLedger) CreateWallet(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	addr := l.next[0]
	l.next = l.next[1:]
	return addr, nil
}

func (l *stubLedger) GetBalance(_ context.Context, address string) (models.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address], nil
}

func (l *stubLedger) GetChain(context.Context) ([]models.Block, error) {
	return []models.Block{{Index: 0, Hash: "genesis"}}, nil
}

func (l *stubLedger) GetMempool(context.Context) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Transaction(nil), l.sent...), nil
}

func (l *stubLedger) GetValidators(context.Context) ([]models.Validator, error) {
	return []models.Validator{{Address: "0xV", Stake: 5}}, nil
}

func (l *stubLedger) GetCommunityFund(context.Context) (models.CommunityFund, error) {
	return models.CommunityFund{Balance: 1}, nil
}

func (l *stubLedger) SendTransaction(_ context.Context, from, to string, amount, fee models.Amount) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return models.Transaction{}, l.err
	}
	tx := models.Transaction{ID: "t1", From: from, To: to, Amount: amount, Fee: fee, Status: models.TxPending}
	l.sent = append(l.sent, tx)
	return tx, nil
}

func (l *stubLedger) Stake(context.Context, string, models.Amount) error   { return l.err }
func (l *stubLedger) Unstake(context.Context, string, models.Amount) error { return l.err }

func (l *stubLedger) Purchase(_ context.Context, address string, usd float64) (models.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	acquired := models.Amount(usd * float64(models.NanoPerJUL))
	l.balances[address] += acquired
	return acquired, nil
}

func (l *stubLedger) ForgeBlock(context.Context) error { return l.err }

func newTestServer(t *testing.T, ledger *stubLedger) (*Server, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := registry.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg, err := registry.Open(context.Background(), store, registry.Options{})
	require.NoError(t, err)

	m := metrics.New()
	coord := coordinator.New(ledger, reg, view.New(), coordinator.Options{Metrics: m, FundUSD: 10})
	t.Cleanup(func() { _ = coord.Close() })
	return New(coord, reg, m, "julctl-test"), reg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &stubLedger{balances: map[string]models.Amount{}})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	do(t, s, http.MethodPost, "/api/forge", "")
	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `julctl_actions_total{action="forgeBlock",result="ok"} 1`)
}

func TestCreateFundAndList(t *testing.T) {
	ledger := &stubLedger{next: []string{"0xABC", "0xDEF"}, balances: map[string]models.Amount{}}
	s, reg := newTestServer(t, ledger)

	rec := do(t, s, http.MethodPost, "/api/wallets?fund=2.5", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"address":"0xABC","julAmount":"2.5"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/wallets", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"0xABC", "0xDEF"}, reg.List())

	rec = do(t, s, http.MethodPut, "/api/wallets/0xABC/alias", `{"alias":"main"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/wallets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"address":"0xABC","alias":"main","balance":"2.5","status":"ready"},
		{"address":"0xDEF","status":"idle"}
	]`, rec.Body.String())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		ledgerErr error
		method    string
		path      string
		body      string
		status    int
		message   string
	}{
		{
			name:    "unknown wallet",
			method:  http.MethodPost,
			path:    "/api/transactions",
			body:    `{"from":"0xNope","to":"0xB","amount":"1"}`,
			status:  http.StatusBadRequest,
			message: "invalid from: wallet 0xNope is not registered",
		},
		{
			name:    "bad amount",
			method:  http.MethodPost,
			path:    "/api/stake",
			body:    `{"address":"main","amount":"abc"}`,
			status:  http.StatusBadRequest,
			message: "invalid amount: not a number: abc",
		},
		{
			name:    "malformed body",
			method:  http.MethodPost,
			path:    "/api/purchase",
			body:    `{"address":`,
			status:  http.StatusBadRequest,
		},
		{
			name:      "ledger rejection",
			ledgerErr: &models.ServerRejection{Op: "sendTransaction", StatusCode: 400, Message: "insufficient balance"},
			method:    http.MethodPost,
			path:      "/api/transactions",
			body:      `{"from":"main","to":"0xB","amount":"1","fee":"0.1"}`,
			status:    http.StatusUnprocessableEntity,
			message:   "insufficient balance",
		},
		{
			name:      "ledger unreachable",
			ledgerErr: &models.NetworkError{Op: "forgeBlock", StatusCode: 503, Err: context.DeadlineExceeded},
			method:    http.MethodPost,
			path:      "/api/forge",
			status:    http.StatusBadGateway,
		},
		{
			name:    "alias shadows an address",
			method:  http.MethodPut,
			path:    "/api/wallets/0xA/alias",
			body:    `{"alias":"0xA"}`,
			status:  http.StatusBadRequest,
			message: "invalid alias: 0xA is a registered wallet address",
		},
		{
			name:    "unknown resource",
			method:  http.MethodPost,
			path:    "/api/refresh",
			body:    `{"resource":"blocks"}`,
			status:  http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &stubLedger{next: []string{"0xA"}, balances: map[string]models.Amount{}}
			s, reg := newTestServer(t, ledger)
			_, err := reg.Add(context.Background(), "0xA")
			require.NoError(t, err)
			require.NoError(t, reg.SetAlias(context.Background(), "0xA", "main"))
			ledger.err = tc.ledgerErr

			rec := do(t, s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			msg := decodeError(t, rec)
			assert.NotEmpty(t, msg)
			if tc.message != "" {
				assert.Equal(t, tc.message, msg)
			}
		})
	}
}

func TestSendResolvesAliasesAndRefreshes(t *testing.T) {
	ledger := &stubLedger{balances: map[string]models.Amount{"0xA": 9 * models.NanoPerJUL}}
	s, reg := newTestServer(t, ledger)
	_, err := reg.Add(context.Background(), "0xA")
	require.NoError(t, err)
	require.NoError(t, reg.SetAlias(context.Background(), "0xA", "main"))

	rec := do(t, s, http.MethodPost, "/api/transactions", `{"from":"main","to":"0xB","amount":"1.5"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var tx models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, "0xA", tx.From)
	assert.Equal(t, 3*models.NanoPerJUL/2, tx.Amount)

	rec = do(t, s, http.MethodGet, "/api/view", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		View view.Snapshot `json:"view"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.View.Mempool.Value, 1)
	assert.Len(t, body.View.Chain.Value, 1)
	assert.Equal(t, view.StatusReady, body.View.Balances["0xA"].Status)
}

func TestRefresh(t *testing.T) {
	ledger := &stubLedger{balances: map[string]models.Amount{"0xA": 4}}
	s, reg := newTestServer(t, ledger)
	_, err := reg.Add(context.Background(), "0xA")
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap view.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, models.Amount(4), snap.Balances["0xA"].Value)
	assert.Equal(t, models.Amount(1), snap.CommunityFund.Value.Balance)
	assert.Len(t, snap.Validators.Value, 1)

	rec = do(t, s, http.MethodPost, "/api/refresh", `{"resource":"balance"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

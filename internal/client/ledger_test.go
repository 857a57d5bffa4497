package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustena-platforms/julctl/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *LedgerClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second})
}

func TestGetChain(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantLen int
		wantErr bool
	}{
		{
			name: "capitalized field names",
			body: `[{"Index":0,"Hash":"g","Timestamp":1,"Validator":"v0","Transactions":[]},
			        {"Index":1,"Hash":"h1","Timestamp":2,"Validator":"v1","Transactions":[{"ID":"t1","From":"a","To":"b","Amount":5,"Fee":1}]}]`,
			wantLen: 2,
		},
		{
			name:    "empty chain",
			body:    `[]`,
			wantLen: 0,
		},
		{
			name:    "gap in indices",
			body:    `[{"index":0,"hash":"g"},{"index":2,"hash":"h2"}]`,
			wantErr: true,
		},
		{
			name:    "missing index",
			body:    `[{"hash":"g"}]`,
			wantErr: true,
		},
		{
			name:    "not an array",
			body:    `{"chain":[]}`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/blockchain", r.URL.Path)
				_, _ = io.WriteString(w, tc.body)
			}))
			blocks, err := c.GetChain(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, models.IsNetwork(err))
				assert.ErrorIs(t, err, models.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Len(t, blocks, tc.wantLen)
		})
	}
}

func TestGetChainTransactionsAreConfirmed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"index":0,"hash":"g","validatorAddress":"v","transactions":[{"id":"t1","from":"a","to":"b","amount":7}]}]`)
	}))
	blocks, err := c.GetChain(context.Background())
	require.NoError(t, err)
	require.Len(t, blocks[0].Transactions, 1)
	assert.Equal(t, models.TxConfirmed, blocks[0].Transactions[0].Status)
	assert.Equal(t, "v", blocks[0].Validator)
}

func TestGetMempoolFallsBackToAlternatePath(t *testing.T) {
	var snakeHits, camelHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/get_mempool", func(w http.ResponseWriter, r *http.Request) {
		snakeHits.Add(1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/api/getMempool", func(w http.ResponseWriter, r *http.Request) {
		camelHits.Add(1)
		_, _ = io.WriteString(w, `[{"id":"t1","from":"a","to":"b","amount":10,"fee":1}]`)
	})
	c := newTestClient(t, mux)

	txs, err := c.GetMempool(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxPending, txs[0].Status)

	_, err = c.GetMempool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), snakeHits.Load(), "working path is remembered")
	assert.Equal(t, int32(2), camelHits.Load())
}

func TestGetValidatorsShapes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    []models.Validator
		wantErr bool
	}{
		{
			name: "bare array",
			body: `[{"address":"0xA","stake":50}]`,
			want: []models.Validator{{Address: "0xA", Stake: 50}},
		},
		{
			name: "envelope",
			body: `{"validators":[{"Address":"0xB","Stake":30}]}`,
			want: []models.Validator{{Address: "0xB", Stake: 30}},
		},
		{
			name:    "object without validators",
			body:    `{"items":[]}`,
			wantErr: true,
		},
		{
			name:    "validator without stake",
			body:    `[{"address":"0xA"}]`,
			wantErr: true,
		},
		{
			name:    "scalar",
			body:    `42`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			}))
			got, err := c.GetValidators(context.Background())
			if tc.wantErr {
				assert.ErrorIs(t, err, models.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetBalanceEscapesAddress(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/getBalance/0x%2FABC", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"balance":1500000000}`)
	}))
	bal, err := c.GetBalance(context.Background(), "0x/ABC")
	require.NoError(t, err)
	assert.Equal(t, models.Amount(1_500_000_000), bal)
}

func TestSendTransactionErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		rejection bool
		message   string
	}{
		{name: "plain text rejection", status: http.StatusBadRequest, body: "insufficient balance\n", rejection: true, message: "insufficient balance"},
		{name: "json rejection", status: http.StatusUnprocessableEntity, body: `{"error":"unknown recipient"}`, rejection: true, message: "unknown recipient"},
		{name: "server failure", status: http.StatusInternalServerError, body: "boom"},
		{name: "not found", status: http.StatusNotFound, body: "404 page not found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			_, err := c.SendTransaction(context.Background(), "a", "b", 10, 1)
			require.Error(t, err)
			if tc.rejection {
				var sr *models.ServerRejection
				require.True(t, errors.As(err, &sr))
				assert.Equal(t, tc.message, sr.Message)
				assert.Equal(t, tc.status, sr.StatusCode)
				return
			}
			var ne *models.NetworkError
			require.True(t, errors.As(err, &ne))
			assert.Equal(t, tc.status, ne.StatusCode)
		})
	}
}

func TestSendTransactionRequestAndResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"from": "a", "to": "b", "amount": float64(10), "fee": float64(2)}, body)
		_, _ = io.WriteString(w, `{"id":"tx1","from":"a","to":"b","amount":10,"fee":2}`)
	}))
	tx, err := c.SendTransaction(context.Background(), "a", "b", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, models.Transaction{ID: "tx1", From: "a", To: "b", Amount: 10, Fee: 2, Status: models.TxPending}, tx)
}

func TestSendTransactionAcknowledgement(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasFee := body["fee"]
		assert.False(t, hasFee, "zero fee is omitted")
		_, _ = io.WriteString(w, `{"message":"Transfer successful"}`)
	}))
	tx, err := c.SendTransaction(context.Background(), "a", "b", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, tx.ID)
	assert.Equal(t, models.Amount(10), tx.Amount)
}

func TestPurchase(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/purchaseJUL", r.URL.Path)
		var body purchaseRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, purchaseRequest{Wallet: "0xABC", USDAmount: 100}, body)
		_, _ = io.WriteString(w, `{"julAmount":3500000000000}`)
	}))
	got, err := c.Purchase(context.Background(), "0xABC", 100)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(3500*models.NanoPerJUL), got)
}

func TestCreateWalletAddress(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "plain", body: `{"address":"0xABC"}`, want: "0xABC"},
		{name: "padded", body: `{"address":" 0xABC\n"}`, want: "0xABC"},
		{name: "empty", body: `{"address":""}`, wantErr: true},
		{name: "blank", body: `{"address":"   "}`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			}))
			got, err := c.CreateWallet(context.Background())
			if tc.wantErr {
				assert.ErrorIs(t, err, models.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := c.ForgeBlock(context.Background())

	var ne *models.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout)
}

package julctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustena-platforms/julctl/internal/models"
)

func newFakeLedger(t *testing.T) *httptest.Server {
	t.Helper()
	balances := map[string]uint64{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/createWallet", func(w http.ResponseWriter, _ *http.Request) {
		balances["0xABC"] = 0
		_ = json.NewEncoder(w).Encode(map[string]string{"address": "0xABC"})
	})
	mux.HandleFunc("GET /api/getBalance/{address}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]uint64{"balance": balances[r.PathValue("address")]})
	})
	mux.HandleFunc("POST /api/purchaseJUL", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Wallet    string  `json:"wallet"`
			USDAmount float64 `json:"usdAmount"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		acquired := uint64(req.USDAmount * 1e9)
		balances[req.Wallet] += acquired
		_ = json.NewEncoder(w).Encode(map[string]uint64{"julAmount": acquired})
	})
	mux.HandleFunc("POST /api/stakeJUL", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "insufficient balance"})
	})
	mux.HandleFunc("GET /api/getCommunityFund", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]uint64{"balance": 42_000_000_000})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd := NewRootCmd(viper.New())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--registry-backend", "file", "--registry-path", dataDir, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWalletCommands(t *testing.T) {
	srv := newFakeLedger(t)
	t.Setenv("JULCTL_LEDGER_URL", srv.URL+"/api")
	dir := t.TempDir()

	out, err := run(t, dir, "wallet", "create", "--fund", "1.5", "--alias", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "Created wallet 0xABC")
	assert.Contains(t, out, "Purchased 1.5 JUL")

	out, err = run(t, dir, "wallet", "balance", "main")
	require.NoError(t, err)
	assert.Equal(t, "0xABC\t1.5 JUL\n", out)

	out, err = run(t, dir, "wallet", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "1.5 JUL")

	out, err = run(t, dir, "wallet", "add", "0xABC")
	require.NoError(t, err)
	assert.Contains(t, out, "already registered")
}

func TestActionErrors(t *testing.T) {
	srv := newFakeLedger(t)
	dir := t.TempDir()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown wallet", args: []string{"stake", "nobody", "1"}, want: "wallet nobody is not registered"},
		{name: "invalid amount", args: []string{"send", "0xABC", "0xDEF", "1.2.3"}, want: "invalid amount"},
		{name: "invalid fiat", args: []string{"purchase", "0xABC", "lots"}, want: "not a number: lots"},
		{name: "ledger rejection", args: []string{"stake", "0xABC", "5"}, want: "insufficient balance"},
	}

	_, err := run(t, dir, "--ledger-url", srv.URL+"/api", "wallet", "create")
	require.NoError(t, err)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, dir, append([]string{"--ledger-url", srv.URL + "/api"}, tc.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error()+" "+models.UserMessage(err), tc.want)
		})
	}
}

func TestFundCommandJSON(t *testing.T) {
	srv := newFakeLedger(t)
	out, err := run(t, t.TempDir(), "--ledger-url", srv.URL+"/api", "fund", "--json")
	require.NoError(t, err)

	var snap struct {
		CommunityFund struct {
			Value struct {
				Balance uint64 `json:"balance"`
			} `json:"value"`
			Status string `json:"status"`
		} `json:"communityFund"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, uint64(42_000_000_000), snap.CommunityFund.Value.Balance)
	assert.Equal(t, "ready", snap.CommunityFund.Status)
}

func TestInvalidConfiguration(t *testing.T) {
	_, err := run(t, t.TempDir(), "--ledger-url", "not a url", "wallet", "list")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ledger.url"))
}

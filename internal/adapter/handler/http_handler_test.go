package handler

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trustmesh/escrow-engine/internal/adapter/accesscontrol"
	"github.com/trustmesh/escrow-engine/internal/adapter/gateway"
	"github.com/trustmesh/escrow-engine/internal/adapter/storage"
	"github.com/trustmesh/escrow-engine/internal/core/fee"
	"github.com/trustmesh/escrow-engine/internal/core/service"
)

const (
	tokenHex = "0x00000000000000000000000000000000000000ee"
	aliceHex = "0x00000000000000000000000000000000000000a1"
	bobHex   = "0x00000000000000000000000000000000000000b2"
	adminHex = "0x00000000000000000000000000000000000000ad"
)

type testAPI struct {
	router *gin.Engine
	ledger *gateway.MemoryLedger
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := gateway.NewMemoryLedger()
	memory := storage.NewMemory()
	access := accesscontrol.NewStatic([]common.Address{common.HexToAddress(adminHex)}, nil)

	escrow := service.NewEscrowService(service.Deps{
		Store:   memory,
		Vault:   memory,
		Journal: memory,
		Assets:  ledger,
		Access:  access,
		Policy:  fee.NewPolicy(4),
	})

	return &testAPI{
		router: NewRouter(escrow, zap.NewNop(), nil),
		ledger: ledger,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (a *testAPI) fund(addr string, amount int64) {
	token := common.HexToAddress(tokenHex)
	holder := common.HexToAddress(addr)
	a.ledger.Mint(token, holder, big.NewInt(amount))
	a.ledger.Approve(token, holder, big.NewInt(amount))
}

func createBody(extra map[string]any) map[string]any {
	body := map[string]any{
		"caller":    aliceHex,
		"token":     tokenHex,
		"symbol":    "X",
		"recipient": bobHex,
		"amount":    "1000",
		"fee":       "4",
		"remark":    "test",
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func TestCreateOrder_HTTP(t *testing.T) {
	api := newTestAPI(t)
	api.fund(aliceHex, 2000)

	rec, out := api.do(t, http.MethodPost, "/api/orders", createBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, out["order_id"])
	assert.NotZero(t, out["draft_at"])
}

func TestCreateOrder_HTTP_InvalidFee(t *testing.T) {
	api := newTestAPI(t)
	api.fund(aliceHex, 2000)

	rec, out := api.do(t, http.MethodPost, "/api/orders", createBody(map[string]any{"fee": "5"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "invalid fee")
}

func TestCreateOrder_HTTP_MalformedAddress(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/orders", createBody(map[string]any{"recipient": "not-an-address"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_HTTP_TransferFailed(t *testing.T) {
	api := newTestAPI(t)
	// no funding: the pull is rejected

	rec, _ := api.do(t, http.MethodPost, "/api/orders", createBody(nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestConfirmOrder_HTTP_RoundTrip(t *testing.T) {
	api := newTestAPI(t)
	api.fund(aliceHex, 2000)

	rec, out := api.do(t, http.MethodPost, "/api/orders", createBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	draftAt := int64(out["draft_at"].(float64))

	confirm := map[string]any{
		"caller":    aliceHex,
		"token":     tokenHex,
		"symbol":    "X",
		"recipient": bobHex,
		"amount":    "1000",
		"fee":       "4",
		"draft_at":  draftAt,
	}
	rec, _ = api.do(t, http.MethodPost, "/api/orders/confirm", confirm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, int64(1000),
		api.ledger.BalanceOf(common.HexToAddress(tokenHex), common.HexToAddress(bobHex)).Int64())

	// replay resolves to 404
	rec, _ = api.do(t, http.MethodPost, "/api/orders/confirm", confirm)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes_HTTP_Unauthorized(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPut, "/api/admin/fee-rate", map[string]any{"caller": aliceHex, "rate": 9})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/admin/fees/withdraw", map[string]any{
		"caller": aliceHex, "token": tokenHex, "amount": "1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/api/admin/fees?caller="+aliceHex+"&token="+tokenHex, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithdrawFees_HTTP(t *testing.T) {
	api := newTestAPI(t)
	api.fund(aliceHex, 2000)

	// accrue a fee via a full order round trip
	rec, out := api.do(t, http.MethodPost, "/api/orders", createBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	draftAt := int64(out["draft_at"].(float64))

	rec, _ = api.do(t, http.MethodPost, "/api/orders/confirm", map[string]any{
		"caller": aliceHex, "token": tokenHex, "symbol": "X",
		"recipient": bobHex, "amount": "1000", "fee": "4", "draft_at": draftAt,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = api.do(t, http.MethodGet, "/api/admin/fees?caller="+adminHex+"&token="+tokenHex, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", out["balance"])

	// over-withdrawal conflicts
	rec, _ = api.do(t, http.MethodPost, "/api/admin/fees/withdraw", map[string]any{
		"caller": adminHex, "token": tokenHex, "amount": "5",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/admin/fees/withdraw", map[string]any{
		"caller": adminHex, "token": tokenHex, "amount": "4",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4),
		api.ledger.BalanceOf(common.HexToAddress(tokenHex), common.HexToAddress(adminHex)).Int64())
}

func TestGrantFeeExemption_HTTP(t *testing.T) {
	api := newTestAPI(t)
	api.fund(aliceHex, 2000)

	rec, _ := api.do(t, http.MethodPost, "/api/admin/fee-exemptions", map[string]any{
		"caller": adminHex, "addresses": []string{aliceHex},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// exempt caller creates with zero fee
	rec, _ = api.do(t, http.MethodPost, "/api/orders", createBody(map[string]any{"fee": "0"}))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealth_HTTP(t *testing.T) {
	api := newTestAPI(t)
	rec, out := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

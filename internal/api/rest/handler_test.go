package rest_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alpha-fi/cheddar-nft-minter/internal/adapter"
	"github.com/alpha-fi/cheddar-nft-minter/internal/api/middleware"
	"github.com/alpha-fi/cheddar-nft-minter/internal/api/rest"
	"github.com/alpha-fi/cheddar-nft-minter/internal/contract"
	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/logger"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
)

const (
	testAPIKey = "test-api-key"
	testOwner  = "owner.test"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	gin.SetMode(gin.TestMode)

	code := m.Run()
	os.Exit(code)
}

type testServer struct {
	router  *gin.Engine
	engine  *contract.Contract
	privKey *rsa.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "node.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	engine := contract.New(store.NewStore(db), adapter.NewClock(), nil, nil, nil, contract.Config{
		TokenStorageCost: domain.NewU128(100),
		LinkdropBaseCost: domain.NewU128(500),
		ContractID:       "nft.test",
		RaffleSeed:       7,
	})
	t.Cleanup(engine.Close)

	require.NoError(t, engine.New(context.Background(), contract.InitArgs{
		OwnerID: testOwner,
		Metadata: domain.ContractMetadata{
			Spec:   "nft-1.0.0",
			Name:   "Cheddar Collection",
			Symbol: "CHDR",
		},
		Size: 5,
		Sale: &domain.Sale{Price: domain.NewU128(1000)},
	}))

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	router := gin.New()
	rest.SetupRoutes(router, rest.NewHandler(engine), middleware.AuthConfig{
		JWTPublicKey: string(pubPEM),
		APIKeys:      []string{testAPIKey},
	})

	return &testServer{router: router, engine: engine, privKey: privKey}
}

type apiResponse struct {
	Result json.RawMessage `json:"result"`
	OK     bool            `json:"ok"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, path, caller, deposit string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Authorization", "APIKey "+testAPIKey)
	if caller != "" {
		req.Header.Set(middleware.CallerHeader, caller)
	}
	if deposit != "" {
		req.Header.Set(rest.DepositHeader, deposit)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestCall_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/call/nft_mint_one", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCall_MintAndView(t *testing.T) {
	srv := newTestServer(t)

	// owner mints for free, paying storage only
	w, resp := srv.do(t, "/api/v1/call/nft_mint_one", testOwner, "100", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token domain.Token
	require.NoError(t, json.Unmarshal(resp.Result, &token))
	assert.Equal(t, domain.AccountID(testOwner), token.OwnerID)

	w, resp = srv.do(t, "/api/v1/view/nft_total_supply", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"1"`, string(resp.Result))

	w, resp = srv.do(t, "/api/v1/view/nft_token", "", "", gin.H{"token_id": token.TokenID})
	require.Equal(t, http.StatusOK, w.Code)
	var fetched domain.Token
	require.NoError(t, json.Unmarshal(resp.Result, &fetched))
	assert.Equal(t, token.TokenID, fetched.TokenID)
}

func TestCall_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	// underpaying maps to 402 with a stable code
	w, resp := srv.do(t, "/api/v1/call/nft_mint_one", "alice.test", "0", nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "insufficient_deposit", resp.Error.Code)

	// unknown methods are not found
	w, _ = srv.do(t, "/api/v1/call/no_such_method", "alice.test", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = srv.do(t, "/api/v1/view/no_such_view", "", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// malformed deposit header is rejected before dispatch
	w, _ = srv.do(t, "/api/v1/call/nft_mint_one", "alice.test", "not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// API key calls need an explicit caller
	w, resp = srv.do(t, "/api/v1/call/nft_mint_one", "", "1100", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, resp.Error)
}

func TestCall_AdminGuard(t *testing.T) {
	srv := newTestServer(t)

	w, resp := srv.do(t, "/api/v1/call/update_price", "mallory.test", "", gin.H{"price": "5"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, resp.Error)

	w, resp = srv.do(t, "/api/v1/call/update_price", testOwner, "", gin.H{"price": "5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `"1000"`, string(resp.Result), "previous price is returned")
}

func TestCall_JWTSubjectIsCaller(t *testing.T) {
	srv := newTestServer(t)

	claims := jwt.RegisteredClaims{
		Subject:   "alice.test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(srv.privKey)
	require.NoError(t, err)

	body := bytes.NewBufferString("{}")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/call/nft_mint_one", body)
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set(rest.DepositHeader, "1100")

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var token domain.Token
	require.NoError(t, json.Unmarshal(resp.Result, &token))
	assert.Equal(t, domain.AccountID("alice.test"), token.OwnerID)
}

func TestView_GetSaleInfo(t *testing.T) {
	srv := newTestServer(t)

	w, resp := srv.do(t, "/api/v1/view/get_sale_info", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info domain.SaleInfo
	require.NoError(t, json.Unmarshal(resp.Result, &info))
	assert.Equal(t, domain.StatusOpen, info.Status)
	assert.Equal(t, uint64(5), info.TokenFinalSupply)
	assert.Equal(t, "1000", info.Price.String())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"initialized":true`)
}

package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idledger/internal/admin"
	"idledger/internal/audit"
	"idledger/internal/authz"
	"idledger/internal/gateway"
	"idledger/internal/keys"
	"idledger/internal/ledger/contract"
	"idledger/internal/ledger/state"
	"idledger/internal/offchain"
	"idledger/internal/ratelimit"
)

const testAdminToken = "test-admin-token"

type RouterSuite struct {
	suite.Suite

	keys     *keys.Service
	contract *contract.IdentityContract
	verifier *authz.TokenVerifier
	server   *httptest.Server
}

func (s *RouterSuite) SetupTest() {
	encKey := make([]byte, 32)
	hmacSecret := make([]byte, 32)
	for i := range encKey {
		encKey[i] = byte(i)
		hmacSecret[i] = byte(255 - i)
	}
	s.keys = keys.NewService(keys.WithEncryptionKey(encKey), keys.WithHMACSecret(hmacSecret))

	checker := authz.NewRoleChecker(map[string][]authz.Role{
		"issuer1": {authz.RoleIssuer},
		"admin1":  {authz.RoleAdmin},
	})
	s.contract = contract.New(state.NewMemoryStore(), s.keys, checker)

	wallet, err := gateway.NewFileSystemWallet(s.T().TempDir())
	s.Require().NoError(err)
	s.Require().NoError(wallet.Put(gateway.Identity{Label: "appUser", MSPID: "Org1MSP"}))

	client := gateway.NewClient(gateway.InvokerFunc(s.contract.Dispatch))
	s.Require().NoError(client.Connect(gateway.NetworkConfig{
		Network:  "identity-channel",
		Contract: "identity-contract",
	}, wallet, "appUser"))

	s.verifier = authz.NewTokenVerifier([]byte("router-test-signing-key"), "idledger")
	adminSvc := admin.NewService(client, s.keys, offchain.NewMemoryStore(), audit.NewLog(64))

	logger := slog.New(slog.DiscardHandler)
	router := NewRouter(RouterConfig{
		Assets:     NewAssetHandler(client, s.keys, logger, nil),
		Admin:      NewAdminHandler(adminSvc, s.keys, client, logger),
		Verifier:   s.verifier,
		AdminToken: testAdminToken,
	})
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) issuerToken() string {
	token, err := s.verifier.Issue("issuer1", []authz.Role{authz.RoleIssuer}, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) request(method, path, token string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) adminRequest(method, path, token string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set(headerAdminToken, token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func decodeBody[T any](s *RouterSuite, resp *http.Response) T {
	defer resp.Body.Close()
	var v T
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *RouterSuite) mint(id string) {
	resp := s.request(http.MethodPost, "/assets", s.issuerToken(), MintAssetRequest{
		ID:              id,
		SubjectID:       "subject-" + id,
		KYCHash:         keys.HashForPrivacy("kyc-" + id),
		ExpiryTimestamp: time.Now().Add(24 * time.Hour).Unix(),
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func (s *RouterSuite) TestMintThenVerify() {
	resp := s.request(http.MethodPost, "/assets", s.issuerToken(), MintAssetRequest{
		ID:              "DID-1",
		SubjectID:       "subject-1",
		KYCHash:         keys.HashForPrivacy("kyc-1"),
		ExpiryTimestamp: time.Now().Add(24 * time.Hour).Unix(),
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	receipt := decodeBody[contract.Receipt](s, resp)
	s.Equal("DID-1", receipt.AssetID)
	s.Equal(uint64(1), receipt.Version)
	s.NotEmpty(receipt.TxID)

	resp = s.request(http.MethodGet, "/assets/DID-1?kycHash="+keys.HashForPrivacy("kyc-1"), s.issuerToken(), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	result := decodeBody[contract.VerificationResult](s, resp)
	s.True(result.Valid)
	s.Equal("subject-1", result.SubjectID)
}

func (s *RouterSuite) TestMintRequiresToken() {
	resp := s.request(http.MethodPost, "/assets", "", MintAssetRequest{})
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestMintRejectsUnknownFields() {
	resp := s.request(http.MethodPost, "/assets", s.issuerToken(), map[string]any{
		"subjectId": "subject-1",
		"bogus":     true,
	})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[map[string]string](s, resp)
	s.Equal("VALIDATION_ERROR", body["error"])
}

func (s *RouterSuite) TestVerifyUnknownAssetIsNotAnError() {
	resp := s.request(http.MethodGet, "/assets/DID-ghost", s.issuerToken(), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	result := decodeBody[contract.VerificationResult](s, resp)
	s.False(result.Valid)
	s.Equal(contract.ReasonNotFound, result.Reason)
}

func (s *RouterSuite) TestRevokeIsTerminal() {
	s.mint("DID-2")

	resp := s.request(http.MethodPost, "/assets/DID-2/revoke", s.issuerToken(), RevokeAssetRequest{Reason: "compromised"})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.request(http.MethodPost, "/assets/DID-2/revoke", s.issuerToken(), RevokeAssetRequest{Reason: "again"})
	s.Equal(http.StatusConflict, resp.StatusCode)
	body := decodeBody[map[string]string](s, resp)
	s.Equal("CONFLICT", body["error"])

	resp = s.request(http.MethodGet, "/assets/DID-2", s.issuerToken(), nil)
	result := decodeBody[contract.VerificationResult](s, resp)
	s.False(result.Valid)
	s.Equal("REVOKED", result.Reason)
}

func (s *RouterSuite) TestRenewExtendsExpiry() {
	s.mint("DID-3")
	newExpiry := time.Now().Add(48 * time.Hour).Unix()

	resp := s.request(http.MethodPost, "/assets/DID-3/renew", s.issuerToken(), RenewAssetRequest{NewExpiry: newExpiry})
	s.Equal(http.StatusOK, resp.StatusCode)
	receipt := decodeBody[contract.Receipt](s, resp)
	s.Equal(uint64(2), receipt.Version)
}

func (s *RouterSuite) TestBulkVerify() {
	s.mint("DID-4")

	resp := s.request(http.MethodPost, "/assets/bulk-verify", s.issuerToken(), BulkVerifyHTTPRequest{
		IDs: []string{"DID-4", "DID-ghost"},
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	result := decodeBody[contract.BulkVerifyResult](s, resp)
	s.Require().Len(result.Results, 2)
	s.True(result.Results[0].Valid)
	s.False(result.Results[1].Valid)
}

func (s *RouterSuite) TestQueryBySubject() {
	s.mint("DID-5")

	resp := s.request(http.MethodGet, "/subjects/subject-DID-5/assets", s.issuerToken(), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	result := decodeBody[contract.QueryResult](s, resp)
	s.Require().Len(result.Assets, 1)
	s.Equal("DID-5", result.Assets[0].ID)
}

func (s *RouterSuite) TestStatusWithoutAuth() {
	resp := s.request(http.MethodGet, "/status", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	status := decodeBody[gateway.Status](s, resp)
	s.True(status.Connected)
	s.Equal("identity-channel", status.Network)
}

func (s *RouterSuite) TestAdminRequiresToken() {
	resp := s.adminRequest(http.MethodGet, "/admin/health", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.adminRequest(http.MethodGet, "/admin/health", "wrong-token", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestAdminHealth() {
	resp := s.adminRequest(http.MethodGet, "/admin/health", testAdminToken, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	health := decodeBody[admin.Health](s, resp)
	s.Equal(admin.StatusHealthy, health.OverallHealth)
}

func (s *RouterSuite) TestAdminBulkMint() {
	resp := s.adminRequest(http.MethodPost, "/admin/identities/bulk-mint", testAdminToken, BulkMintHTTPRequest{
		Actor: "admin1",
		Subjects: []admin.SubjectRecord{
			{
				SubjectID:       "bulk-subject-1",
				IssuerID:        "issuer1",
				KYCData:         "raw kyc 1",
				ExpiryTimestamp: time.Now().Add(24 * time.Hour).Unix(),
			},
		},
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	report := decodeBody[admin.BulkReport](s, resp)
	s.Equal(1, report.Succeeded)
	s.Equal(0, report.Failed)

	resp = s.adminRequest(http.MethodGet, "/admin/audit?type="+audit.TypeBulkMintComplete, testAdminToken, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	trail := decodeBody[map[string][]audit.Entry](s, resp)
	s.Require().Len(trail["entries"], 1)
	s.Equal("admin1", trail["entries"][0].Actor)
}

func (s *RouterSuite) TestAdminKeyRotation() {
	resp := s.adminRequest(http.MethodPost, "/admin/keys/rotate", testAdminToken, RotateKeyRequest{Type: "hmac"})
	s.Equal(http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](s, resp)
	s.Equal("hmac", body["type"])
	s.Equal(float64(1), body["generation"])

	resp = s.adminRequest(http.MethodPost, "/admin/keys/rotate", testAdminToken, RotateKeyRequest{Type: "pigeon"})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RouterSuite) TestAdminRateLimitTighterThanPublic() {
	limiter := ratelimit.New(ratelimit.Limit{Requests: 2, Window: time.Minute})
	adminSvc := admin.NewService(nil, s.keys, nil, audit.NewLog(8))
	logger := slog.New(slog.DiscardHandler)

	client := gateway.NewClient(gateway.InvokerFunc(s.contract.Dispatch))
	router := NewRouter(RouterConfig{
		Assets:       NewAssetHandler(client, s.keys, logger, nil),
		Admin:        NewAdminHandler(adminSvc, s.keys, client, logger),
		Verifier:     s.verifier,
		AdminToken:   testAdminToken,
		AdminLimiter: limiter,
	})
	server := httptest.NewServer(router)
	defer server.Close()

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/admin/audit", nil)
		req.Header.Set(headerAdminToken, testAdminToken)
		resp, err := server.Client().Do(req)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/admin/audit", nil)
	req.Header.Set(headerAdminToken, testAdminToken)
	resp, err := server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.Equal("0", resp.Header.Get("X-RateLimit-Remaining"))
}

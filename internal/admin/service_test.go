package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idledger/internal/audit"
	"idledger/internal/authz"
	"idledger/internal/gateway"
	"idledger/internal/keys"
	"idledger/internal/ledger/contract"
	"idledger/internal/ledger/state"
	"idledger/internal/offchain"
	dErrors "idledger/pkg/errors"
	"idledger/pkg/requestcontext"
)

type AdminSuite struct {
	suite.Suite

	keys     *keys.Service
	contract *contract.IdentityContract
	client   *gateway.Client
	offchain *offchain.MemoryStore
	auditLog *audit.Log
	svc      *Service
	now      time.Time
}

func (s *AdminSuite) SetupTest() {
	encKey := make([]byte, 32)
	hmacSecret := make([]byte, 32)
	for i := range encKey {
		encKey[i] = byte(i)
		hmacSecret[i] = byte(i + 1)
	}
	s.keys = keys.NewService(keys.WithEncryptionKey(encKey), keys.WithHMACSecret(hmacSecret))

	checker := authz.NewRoleChecker(map[string][]authz.Role{
		"issuer1": {authz.RoleIssuer},
		"admin1":  {authz.RoleAdmin},
	})
	s.contract = contract.New(state.NewMemoryStore(), s.keys, checker)

	wallet, err := gateway.NewFileSystemWallet(s.T().TempDir())
	s.Require().NoError(err)
	s.Require().NoError(wallet.Put(gateway.Identity{Label: "admin", MSPID: "Org1MSP"}))

	s.client = gateway.NewClient(gateway.InvokerFunc(s.contract.Dispatch))
	s.Require().NoError(s.client.Connect(gateway.NetworkConfig{
		Network:  "identity-channel",
		Contract: "identity-contract",
	}, wallet, "admin"))

	s.offchain = offchain.NewMemoryStore()
	s.auditLog = audit.NewLog(64)
	s.svc = NewService(s.client, s.keys, s.offchain, s.auditLog)
	s.now = time.Unix(1_700_000_000, 0)
}

func (s *AdminSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *AdminSuite) subject(id string) SubjectRecord {
	return SubjectRecord{
		SubjectID:       id,
		IssuerID:        "issuer1",
		KYCData:         "kyc payload for " + id,
		ExpiryTimestamp: s.now.Add(24 * time.Hour).Unix(),
	}
}

func TestAdminSuite(t *testing.T) {
	suite.Run(t, new(AdminSuite))
}

func (s *AdminSuite) TestBulkMintEnrollsEverySubject() {
	report, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{
		s.subject("subject-a"), s.subject("subject-b"), s.subject("subject-c"),
	}, "admin1")
	s.Require().NoError(err)
	s.Equal(3, report.Succeeded)
	s.Equal(0, report.Failed)

	for _, outcome := range report.Outcomes {
		s.True(outcome.Success)
		s.NotEmpty(outcome.AssetID)
		s.NotEmpty(outcome.TxID)
		s.True(outcome.OffchainStored)

		// Each mint left a decryptable ciphertext behind.
		mapping, err := s.offchain.Get(s.ctx(), outcome.AssetID)
		s.Require().NoError(err)
		plain, err := s.keys.Decrypt(mapping.Ciphertext)
		s.Require().NoError(err)
		s.Equal("kyc payload for "+outcome.SubjectID, string(plain))

		// The minted asset verifies against the hash of the raw payload.
		result, err := s.contract.VerifyAsset(s.ctx(), contract.VerifyRequest{
			ID:      outcome.AssetID,
			KYCHash: keys.HashForPrivacy("kyc payload for " + outcome.SubjectID),
		})
		s.Require().NoError(err)
		s.True(result.Valid)
	}
}

func (s *AdminSuite) TestBulkMintSkipsSubjectWithActiveAsset() {
	_, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{s.subject("subject-a")}, "admin1")
	s.Require().NoError(err)

	report, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{
		s.subject("subject-a"), s.subject("subject-b"),
	}, "admin1")
	s.Require().NoError(err)
	s.Equal(1, report.Succeeded)
	s.Equal(1, report.Failed)
	s.Equal(string(dErrors.CodeConflict), report.Outcomes[0].Code)
	s.True(report.Outcomes[1].Success)
}

func (s *AdminSuite) TestBulkMintRejectsEmptyBatch() {
	_, err := s.svc.BulkMintDigitalIdentities(s.ctx(), nil, "admin1")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AdminSuite) TestBulkMintIncompleteSubjectFailsThatOutcomeOnly() {
	report, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{
		{SubjectID: "subject-a", IssuerID: "issuer1"}, // no KYC data
		s.subject("subject-b"),
	}, "admin1")
	s.Require().NoError(err)
	s.Equal(1, report.Succeeded)
	s.Equal(1, report.Failed)
	s.Equal(string(dErrors.CodeValidation), report.Outcomes[0].Code)
}

func (s *AdminSuite) TestBulkMintSurvivesOffchainFailure() {
	s.svc = NewService(s.client, s.keys, failingStore{}, s.auditLog)

	report, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{s.subject("subject-a")}, "admin1")
	s.Require().NoError(err)
	s.Equal(1, report.Succeeded)
	s.False(report.Outcomes[0].OffchainStored)

	result, err := s.contract.VerifyAsset(s.ctx(), contract.VerifyRequest{ID: report.Outcomes[0].AssetID})
	s.Require().NoError(err)
	s.True(result.Valid)
}

func (s *AdminSuite) TestBulkRevoke() {
	minted, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{
		s.subject("subject-a"), s.subject("subject-b"),
	}, "admin1")
	s.Require().NoError(err)

	ids := []string{minted.Outcomes[0].AssetID, "no-such-asset", minted.Outcomes[1].AssetID}
	report, err := s.svc.BulkRevokeDigitalIdentities(s.ctx(), ids, "compliance sweep", "admin1")
	s.Require().NoError(err)
	s.Equal(2, report.Succeeded)
	s.Equal(1, report.Failed)
	s.Equal(string(dErrors.CodeNotFound), report.Outcomes[1].Code)

	result, err := s.contract.VerifyAsset(s.ctx(), contract.VerifyRequest{ID: minted.Outcomes[0].AssetID})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal("REVOKED", result.Reason)
}

func (s *AdminSuite) TestBulkRevokeRequiresReason() {
	_, err := s.svc.BulkRevokeDigitalIdentities(s.ctx(), []string{"DID-1"}, "", "admin1")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AdminSuite) TestAuditTrailRecordsBulkOperations() {
	_, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{
		s.subject("subject-a"), s.subject("subject-b"),
	}, "admin1")
	s.Require().NoError(err)

	entries := s.svc.AuditTrail(0, "")
	s.Require().Len(entries, 2)
	s.Equal(audit.TypeBulkMintComplete, entries[0].Type)
	s.Equal(audit.TypeBulkMintStart, entries[1].Type)
	s.Equal("admin1", entries[0].Actor)
	s.Equal(2, entries[0].Details["count"])
	s.Equal(2, entries[0].Details["succeeded"])
	s.Equal(0, entries[0].Details["failed"])
}

func (s *AdminSuite) TestSystemHealthHealthy() {
	health := s.svc.SystemHealth(s.ctx())
	s.Equal(StatusHealthy, health.OverallHealth)
	s.Equal(StatusHealthy, health.Components["gateway"].Status)
	s.Equal(StatusHealthy, health.Components["keys"].Status)
	s.Equal(StatusHealthy, health.Components["ledger"].Status)
	s.Require().NotNil(health.Ledger)
	s.Equal(0, health.Ledger.Total)
	s.Equal(s.now, health.CheckedAt)
}

func (s *AdminSuite) TestSystemHealthDegradedWhenHMACSecretMissing() {
	encKey := make([]byte, 32)
	unsigned := keys.NewService(keys.WithEncryptionKey(encKey))
	s.svc = NewService(s.client, unsigned, s.offchain, s.auditLog)

	health := s.svc.SystemHealth(s.ctx())
	s.Equal(StatusDegraded, health.OverallHealth)
	s.Equal(StatusDegraded, health.Components["hmac_secret"].Status)
	s.Equal("not configured", health.Components["hmac_secret"].Detail)
}

func (s *AdminSuite) TestSystemHealthDegradedWhenGatewayDisconnected() {
	s.client.Disconnect()
	health := s.svc.SystemHealth(s.ctx())
	s.Equal(StatusDegraded, health.OverallHealth)
	s.Equal(StatusDegraded, health.Components["gateway"].Status)
	s.Equal(StatusDegraded, health.Components["ledger"].Status)
}

func (s *AdminSuite) TestSystemHealthCountsAssets() {
	_, err := s.svc.BulkMintDigitalIdentities(s.ctx(), []SubjectRecord{
		s.subject("subject-a"), s.subject("subject-b"),
	}, "admin1")
	s.Require().NoError(err)

	health := s.svc.SystemHealth(s.ctx())
	s.Require().NotNil(health.Ledger)
	s.Equal(2, health.Ledger.Total)
	s.Equal(2, health.Ledger.Active)
}

// failingStore always rejects writes.
type failingStore struct{}

func (failingStore) Put(context.Context, offchain.Mapping) error {
	return dErrors.New(dErrors.CodeUnavailable, "store offline")
}

func (failingStore) Get(context.Context, string) (offchain.Mapping, error) {
	return offchain.Mapping{}, dErrors.New(dErrors.CodeUnavailable, "store offline")
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caredesk/internal/actor"
	beneficiaryhandler "caredesk/internal/beneficiary/handler"
	branchhandler "caredesk/internal/branch/handler"
	"caredesk/internal/platform/config"
	id "caredesk/pkg/domain"
	"caredesk/pkg/testutil"
)

// ServerSuite drives the fully wired in-memory service through its router.
type ServerSuite struct {
	suite.Suite
	router   http.Handler
	deps     *dependencies
	verifier *actor.Verifier
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	cfg := config.Server{
		RequestTimeout:         5 * time.Second,
		ReciprocalMode:         config.ReciprocalInline,
		ReplicationConcurrency: 2,
		ReplicationLockTTL:     time.Second,
		JWTSigningKey:          "test-signing-key",
		ActorHeadersTrusted:    true,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := wire(context.Background(), cfg, log)
	s.Require().NoError(err)
	s.deps = deps
	s.router = newRouter(cfg, log, deps)
	s.verifier = actor.NewVerifier(cfg.JWTSigningKey, "")
}

func (s *ServerSuite) TearDownTest() {
	s.deps.close()
}

func (s *ServerSuite) asSuperAdmin(req *http.Request) *http.Request {
	req.Header.Set(actor.HeaderRole, "superadmin")
	return req
}

func (s *ServerSuite) withToken(req *http.Request, a actor.Context) *http.Request {
	token, err := s.verifier.Issue(a, time.Minute)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *ServerSuite) createBranch(code, name string) branchhandler.Response {
	req := s.asSuperAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/branches",
		branchhandler.CreateRequest{Code: code, Name: name}))
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[branchhandler.Response](s.T(), rr)
}

func beneficiaryBody(number string) map[string]any {
	return map[string]any{
		"name":           "Fatima Al-Sayed",
		"internalNumber": number,
		"civilId":        "2870112345",
		"contactPhone":   "+965 5000 1234",
		"address":        "Block 4, Street 12",
		"familyMembers":  3,
		"maritalStatus":  "single",
		"healthStatus":   "healthy",
	}
}

func (s *ServerSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "ok")
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *ServerSuite) TestMetricsEndpoint() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *ServerSuite) TestReplicateThenBranchScopedConflict() {
	ahmadi := s.createBranch("AH", "Ahmadi")
	s.createBranch("BY", "Bayan")

	rr := testutil.DoRequest(s.router, s.asSuperAdmin(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/beneficiaries", beneficiaryBody("500"))))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	replicated := testutil.UnmarshalResponse[beneficiaryhandler.ReplicationResponse](s.T(), rr)
	s.Equal(2, replicated.Count)
	s.Empty(replicated.FailedBranches)

	branchID, err := id.ParseBranchID(ahmadi.ID)
	s.Require().NoError(err)
	staff := actor.Context{Authorized: true, BranchID: branchID, BranchName: "Ahmadi", Subject: "u1"}

	rr = testutil.DoRequest(s.router, s.withToken(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/beneficiaries", beneficiaryBody("500")), staff))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "conflict")
	s.Contains(testutil.UnmarshalErrorResponse(s.T(), rr)["error_description"], "Ahmadi")

	rr = testutil.DoRequest(s.router, s.withToken(
		testutil.NewRequest(s.T(), http.MethodGet, "/beneficiaries"), staff))
	testutil.AssertStatusOK(s.T(), rr)
	list := testutil.UnmarshalResponse[map[string][]map[string]any](s.T(), rr)
	s.Require().Len((*list)["beneficiaries"], 1)
	s.Equal("Ahmadi", (*list)["beneficiaries"][0]["branchName"])
}

func (s *ServerSuite) TestAnonymousIsRejected() {
	rr := testutil.DoRequest(s.router,
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/beneficiaries", beneficiaryBody("1")))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *ServerSuite) TestValidationMessagesFollowAcceptLanguage() {
	s.createBranch("AH", "Ahmadi")
	body := beneficiaryBody("1")
	body["civilId"] = "12"

	req := s.asSuperAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/beneficiaries", body))
	req.Header.Set("Accept-Language", "ar")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	s.Contains(testutil.UnmarshalErrorResponse(s.T(), rr)["error_description"], "رقماً")
}

func (s *ServerSuite) TestPriorityPreview() {
	body := map[string]any{"income": 100, "rentalCost": 300, "familyMembers": 2, "healthStatus": "sick"}
	rr := testutil.DoRequest(s.router, s.asSuperAdmin(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/beneficiaries/priority", body)))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"priority":8}`, rr.Body.String())
}

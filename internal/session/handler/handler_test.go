package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"bursa/internal/platform/logger"
	"bursa/internal/session/models"
	"bursa/internal/session/service"
	"bursa/internal/session/store"
)

// =============================================================================
// Session Handler Test Suite
// =============================================================================
// Endpoints run against the real service and in-memory store; the wire
// behavior tested here is what a reviewer's frontend depends on.

type SessionHandlerSuite struct {
	suite.Suite
	store  *store.InMemoryStore
	router chi.Router
}

func TestSessionHandlerSuite(t *testing.T) {
	suite.Run(t, new(SessionHandlerSuite))
}

func (s *SessionHandlerSuite) SetupTest() {
	s.store = store.NewInMemory()
	svc, err := service.New(s.store)
	s.Require().NoError(err)

	h := New(svc, logger.New(), nil)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *SessionHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *SessionHandlerSuite) seed() {
	ctx := context.Background()
	s.Require().NoError(s.store.UpsertCandidates(ctx, []models.Candidate{
		{RequestID: "0001", ApplicationNumber: 1, Name: "Amina Diallo",
			Program: "Medicine", Level: models.LevelUndergraduate, Decision: models.DecisionPending},
		{RequestID: "0002", ApplicationNumber: 2, Name: "Moussa Traore",
			Program: "Medicine", Level: models.LevelUndergraduate, Decision: models.DecisionPending},
	}))
	s.Require().NoError(s.store.UpsertQuotas(ctx, map[models.Bucket]int{
		{Level: models.LevelUndergraduate, Program: "Medicine"}: 1,
		{Level: models.LevelUndergraduate, Program: "Law"}:      3,
	}))
}

func (s *SessionHandlerSuite) TestSessionStatus() {
	s.Run("empty session reports not loaded", func() {
		rec := s.do(http.MethodGet, "/session", nil)
		s.Equal(http.StatusOK, rec.Code)

		var resp SessionResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(service.StatusNotLoaded, resp.Status)
		s.Zero(resp.Stats.Total)
	})

	s.Run("seeded session reports loaded with stats", func() {
		s.seed()
		rec := s.do(http.MethodGet, "/session", nil)
		s.Equal(http.StatusOK, rec.Code)

		var resp SessionResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(service.StatusLoaded, resp.Status)
		s.Equal(2, resp.Stats.Total)
		s.Equal(2, resp.Stats.Pending)
	})
}

func (s *SessionHandlerSuite) TestImport() {
	s.Run("flat CSV body loads candidates", func() {
		csvBody := "number,name,program,level\n1,Amina Diallo,Medicine,Licence\n2,Moussa Traore,Law,Licence\n"
		req := httptest.NewRequest(http.MethodPost, "/session/candidates", strings.NewReader(csvBody))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp ImportResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(2, resp.Imported)
		s.Equal("flat", resp.Form)
		s.NotEmpty(resp.BatchID)
	})

	s.Run("empty body is unprocessable", func() {
		req := httptest.NewRequest(http.MethodPost, "/session/candidates", strings.NewReader(""))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *SessionHandlerSuite) TestCapacityPlan() {
	plan := models.CapacityPlan{
		"Licence": {"Medicine": 5, "Law": 3},
	}
	rec := s.do(http.MethodPost, "/session/capacity-plan", plan)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp map[string]int
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(2, resp["buckets"])
}

func (s *SessionHandlerSuite) TestDecision() {
	s.seed()

	s.Run("favorable under quota returns the applied decision", func() {
		rec := s.do(http.MethodPost, "/candidates/0001/decision", DecisionRequest{Decision: "Favorable"})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp DecisionResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("0001", resp.RequestID)
		s.Equal(models.DecisionFavorable, resp.Decision)
	})

	s.Run("favorable over quota returns 409 with the envelope", func() {
		rec := s.do(http.MethodPost, "/candidates/0002/decision", DecisionRequest{Decision: "Favorable"})
		s.Require().Equal(http.StatusConflict, rec.Code)

		var envelope map[string]string
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&envelope))
		s.Equal("conflict", envelope["error"])
		s.Contains(envelope["error_description"], "quota exhausted")
	})

	s.Run("unknown candidate returns 404", func() {
		rec := s.do(http.MethodPost, "/candidates/9999/decision", DecisionRequest{Decision: "Alternate"})
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("invalid decision returns 400", func() {
		rec := s.do(http.MethodPost, "/candidates/0002/decision", DecisionRequest{Decision: "maybe"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed body returns 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/candidates/0002/decision", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *SessionHandlerSuite) TestSearch() {
	s.seed()

	s.Run("missing query is a bad request", func() {
		rec := s.do(http.MethodGet, "/candidates/search?field=name", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown field is a bad request", func() {
		rec := s.do(http.MethodGet, "/candidates/search?field=shoe_size&q=42", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("name match returns candidates", func() {
		rec := s.do(http.MethodGet, "/candidates/search?field=name&q=diallo", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var matches []models.Candidate
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&matches))
		s.Require().Len(matches, 1)
		s.Equal("0001", matches[0].RequestID)
	})

	s.Run("miss returns an empty array, not null", func() {
		rec := s.do(http.MethodGet, "/candidates/search?field=name&q=nobody", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("[]", strings.TrimSpace(rec.Body.String()))
	})
}

func (s *SessionHandlerSuite) TestTransfer() {
	s.seed()

	s.Run("valid transfer returns both new capacities", func() {
		rec := s.do(http.MethodPost, "/quotas/transfer", TransferRequest{
			FromLevel: "Licence", FromProgram: "Law",
			ToLevel: "Licence", ToProgram: "Medicine",
			Amount: 2,
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp service.TransferResult
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(1, resp.FromCapacity)
		s.Equal(3, resp.ToCapacity)
	})

	s.Run("overdraw returns 409", func() {
		rec := s.do(http.MethodPost, "/quotas/transfer", TransferRequest{
			FromLevel: "Licence", FromProgram: "Law",
			ToLevel: "Licence", ToProgram: "Medicine",
			Amount: 50,
		})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("zero amount returns 400", func() {
		rec := s.do(http.MethodPost, "/quotas/transfer", TransferRequest{
			FromLevel: "Licence", FromProgram: "Law",
			ToLevel: "Licence", ToProgram: "Medicine",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *SessionHandlerSuite) TestQuotas() {
	s.seed()
	rec := s.do(http.MethodGet, "/quotas", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var statuses []models.QuotaStatus
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&statuses))
	s.Require().Len(statuses, 2)
	// Programs sort alphabetically within a level.
	s.Equal("Law", statuses[0].Program)
	s.Equal("Medicine", statuses[1].Program)
}

func (s *SessionHandlerSuite) TestExports() {
	s.seed()
	s.do(http.MethodPost, "/candidates/0001/decision", DecisionRequest{Decision: "Favorable"})

	s.Run("decision list defaults to CSV", func() {
		rec := s.do(http.MethodGet, "/export/decisions", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("text/csv", rec.Header().Get("Content-Type"))
		s.Contains(rec.Body.String(), "AWARDED")
		s.Contains(rec.Body.String(), "Amina Diallo")
	})

	s.Run("quota sheet as text renders the table", func() {
		rec := s.do(http.MethodGet, "/export/quotas?format=text", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "TOTAL")
	})

	s.Run("unknown format is a bad request", func() {
		rec := s.do(http.MethodGet, "/export/decisions?format=xlsx", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *SessionHandlerSuite) TestReset() {
	s.seed()
	rec := s.do(http.MethodDelete, "/session", nil)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/session", nil)
	var resp SessionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(service.StatusNotLoaded, resp.Status)
}

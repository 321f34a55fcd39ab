package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbauer79999/rei-crm-sub004/internal/leads/domain"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/escalation"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/repository"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/scoring"
	"github.com/tbauer79999/rei-crm-sub004/internal/leads/service"
	"github.com/tbauer79999/rei-crm-sub004/platform/apperr"
	"github.com/tbauer79999/rei-crm-sub004/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeScorer struct {
	input     service.ScoreInput
	err       error
	lastLimit int
}

func (f *fakeScorer) Score(_ context.Context, in service.ScoreInput) (*service.ScoreResult, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.ScoreResult{
		LeadID:   in.LeadID,
		TenantID: in.TenantID,
		Evaluation: scoring.Evaluation{
			HotScore:       34,
			Classification: scoring.Classification{Stage: domain.FunnelStageLukewarm},
		},
		Dispatch: escalation.DispatchResult{Status: domain.LeadStatusCold},
	}, nil
}

func (f *fakeScorer) History(_ context.Context, _, _ uuid.UUID, limit int) ([]repository.ScoreRecord, error) {
	f.lastLimit = limit
	return []repository.ScoreRecord{{ID: uuid.New(), HotScore: 40}}, nil
}

func newRouter(svc Scorer, tenantID *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		if tenantID != nil {
			c.Set(httpkit.ContextTenantIDKey, *tenantID)
		}
		c.Next()
	})
	New(svc).RegisterRoutes(r.Group("/leads"))
	return r
}

func TestScoreEndpoint(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()
	svc := &fakeScorer{}
	r := newRouter(svc, &tenantID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+leadID.String()+"/score", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.input.LeadID != leadID || svc.input.TenantID != tenantID || svc.input.Trigger != triggerManual {
		t.Fatalf("unexpected service input: %+v", svc.input)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %v", err)
	}
	if body["hotScore"] != float64(34) || body["leadStatus"] != "Cold Lead" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["aiConversationEnabled"] != true {
		t.Fatalf("expected AI to stay enabled, got %v", body["aiConversationEnabled"])
	}
}

func TestScoreEndpointRejectsUnknownTrigger(t *testing.T) {
	tenantID := uuid.New()
	r := newRouter(&fakeScorer{}, &tenantID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+uuid.NewString()+"/score", strings.NewReader(`{"trigger":"cron"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestScoreEndpointReadsChunkedBody(t *testing.T) {
	tenantID := uuid.New()
	svc := &fakeScorer{}
	r := newRouter(svc, &tenantID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+uuid.NewString()+"/score", strings.NewReader(`{"trigger":"scheduled"}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.input.Trigger != "scheduled" {
		t.Fatalf("expected trigger scheduled, got %q", svc.input.Trigger)
	}
}

func TestScoreEndpointEmptyBodyDefaultsTrigger(t *testing.T) {
	tenantID := uuid.New()
	svc := &fakeScorer{}
	r := newRouter(svc, &tenantID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/"+uuid.NewString()+"/score", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.input.Trigger != triggerManual {
		t.Fatalf("expected default trigger %q, got %q", triggerManual, svc.input.Trigger)
	}
}

func TestScoreEndpointMapsErrors(t *testing.T) {
	tenantID := uuid.New()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: apperr.NotFound("lead not found"), want: http.StatusNotFound},
		{name: "validation", err: apperr.Validation("lead has no messages to score"), want: http.StatusBadRequest},
		{name: "internal", err: apperr.Internal("store score record failed"), want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(&fakeScorer{err: tc.err}, &tenantID)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/leads/"+uuid.NewString()+"/score", nil))
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestScoreEndpointBadID(t *testing.T) {
	tenantID := uuid.New()
	r := newRouter(&fakeScorer{}, &tenantID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/leads/not-a-uuid/score", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestScoreEndpointRequiresTenant(t *testing.T) {
	r := newRouter(&fakeScorer{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/leads/"+uuid.NewString()+"/score", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestListScoresEndpoint(t *testing.T) {
	tenantID := uuid.New()
	svc := &fakeScorer{}
	r := newRouter(svc, &tenantID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads/"+uuid.NewString()+"/scores?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", svc.lastLimit)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads/"+uuid.NewString()+"/scores?limit=1000", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", w.Code)
	}
}

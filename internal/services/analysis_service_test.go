package services

import (
	"context"
	"sync"
	"testing"

	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    map[models.CorrelationScope][]string
	response *models.AnalysisResponse
	err      error
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		calls: make(map[models.CorrelationScope][]string),
		response: &models.AnalysisResponse{
			Status: models.StatusSuccess,
			Analysis: models.CorrelationAnalysis{
				Patterns:        []models.DegradationPattern{},
				Recommendations: []string{"No correlated degradation detected in the analysis window"},
			},
		},
	}
}

func (f *fakeAnalyzer) record(scope models.CorrelationScope, id string) (*models.AnalysisResponse, error) {
	f.mu.Lock()
	f.calls[scope] = append(f.calls[scope], id)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeAnalyzer) AnalyzeNetwork(ctx context.Context, networkID string, hours int) (*models.AnalysisResponse, error) {
	return f.record(models.ScopeNetwork, networkID)
}

func (f *fakeAnalyzer) AnalyzeHubAntenna(ctx context.Context, siteID string, hours int) (*models.AnalysisResponse, error) {
	return f.record(models.ScopeHubAntenna, siteID)
}

func (f *fakeAnalyzer) AnalyzeSatellite(ctx context.Context, satellite string, hours int) (*models.AnalysisResponse, error) {
	return f.record(models.ScopeSatellite, satellite)
}

func (f *fakeAnalyzer) AnalyzeLinkBidirectional(ctx context.Context, linkID string, hours int) (*models.AnalysisResponse, error) {
	return f.record(models.ScopeLinkBidirectional, linkID)
}

func TestServiceDispatchesByScope(t *testing.T) {
	analyzer := newFakeAnalyzer()
	svc := NewAnalysisService(analyzer, nil)

	cases := []struct {
		scope models.CorrelationScope
		id    string
	}{
		{models.ScopeNetwork, "net-1"},
		{models.ScopeHubAntenna, "hub-1"},
		{models.ScopeSatellite, "sat-1"},
		{models.ScopeLinkBidirectional, "link-1"},
	}

	for _, tc := range cases {
		resp, err := svc.Analyze(context.Background(), models.AnalysisRequest{
			Scope:         tc.scope,
			EntityID:      tc.id,
			HoursLookback: 24,
		})
		if err != nil {
			t.Fatalf("Analyze(%s): %v", tc.scope, err)
		}
		if resp.Status != models.StatusSuccess {
			t.Fatalf("status = %s", resp.Status)
		}
		if got := analyzer.calls[tc.scope]; len(got) != 1 || got[0] != tc.id {
			t.Fatalf("scope %s received %v, want [%s]", tc.scope, got, tc.id)
		}
	}
}

func TestServiceRejectsMissingFields(t *testing.T) {
	svc := NewAnalysisService(newFakeAnalyzer(), nil)

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{Scope: models.ScopeNetwork})
	if err == nil {
		t.Fatal("expected error for missing entity identifier")
	}
	if !utils.IsKind(err, utils.KindConfiguration) {
		t.Fatalf("error kind = %v, want configuration", err)
	}

	_, err = svc.Analyze(context.Background(), models.AnalysisRequest{EntityID: "x"})
	if err == nil {
		t.Fatal("expected error for missing scope")
	}
}

func TestServiceRejectsOutOfRangeLookback(t *testing.T) {
	svc := NewAnalysisService(newFakeAnalyzer(), nil)

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{
		Scope:         models.ScopeNetwork,
		EntityID:      "net-1",
		HoursLookback: 500,
	})
	if err == nil {
		t.Fatal("expected error for lookback beyond maximum")
	}
	if !utils.IsKind(err, utils.KindConfiguration) {
		t.Fatalf("error kind = %v, want configuration", err)
	}
}

func TestServiceRejectsUnknownScope(t *testing.T) {
	svc := NewAnalysisService(newFakeAnalyzer(), nil)

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{
		Scope:    "galaxy",
		EntityID: "x",
	})
	if err == nil {
		t.Fatal("expected error for unknown scope")
	}
}

func TestServicePropagatesAnalyzerError(t *testing.T) {
	analyzer := newFakeAnalyzer()
	analyzer.err = utils.NewAppError("fake", utils.KindRepositoryUnavailable, "down", nil)
	svc := NewAnalysisService(analyzer, nil)

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{
		Scope:    models.ScopeNetwork,
		EntityID: "net-1",
	})
	if !utils.IsKind(err, utils.KindRepositoryUnavailable) {
		t.Fatalf("error kind = %v, want repository-unavailable", err)
	}
}

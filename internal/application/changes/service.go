package changes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/application"
	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/audit"
	domain "github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

const (
	MessageRecorded = "Change recorded successfully"
	MessageFetched  = "Changes fetched successfully"

	CompletionUnavailable = "completion service unavailable"
	ChatUnavailable       = "chat service unavailable"
)

// Metrics receives pipeline counters. Nil disables them.
type Metrics interface {
	ChangeRecorded()
	DownstreamFailed(service string)
	AnalysisPersistFailed()
}

// Service implements ingest and query use-cases for code changes.
// Cache, Artifacts and Metrics are optional.
type Service struct {
	Changes    domain.Repository
	Users      domain.UserRepository
	Analyses   analysis.Repository
	Audit      audit.Repository
	Completion analysis.TestCaseGenerator
	Chat       analysis.ChangeAnalyzer
	Cache      analysis.Cache
	Artifacts  analysis.ArtifactStore
	Metrics    Metrics
	Clock      application.Clock
	Log        *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

//
// ==== USE CASES ====
//

// Submit validates and records one change, then runs both analyses. Downstream
// failures never fail the call; they are substituted with an error shape.
func (s *Service) Submit(ctx context.Context, sub domain.Submission) (*analysis.ChangeAnalysis, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	user, err := s.Users.Get(ctx, sub.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user_id %d", domain.ErrValidation, sub.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	rec := domain.Record{
		UserID:     sub.UserID,
		UserName:   user.Name,
		FilePath:   sub.FilePath,
		ChangeType: sub.ChangeType,
		PreviousV:  sub.PreviousV,
		CurrentV:   sub.CurrentV,
		CreatedAt:  application.OrSystem(s.Clock).Now(),
	}
	if err := s.Changes.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("insert change: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.ChangeRecorded()
	}
	s.audit(ctx, rec, audit.ActionChangeSubmitted, "change recorded", map[string]any{
		"file_path":   rec.FilePath,
		"change_type": rec.ChangeType,
	})

	// chat consumes the completion output, so the calls stay sequential
	aiResp := s.generate(ctx, rec)
	chatResp := s.analyze(ctx, rec, aiResp)

	result := &analysis.ChangeAnalysis{Record: &rec, AIResponse: aiResp, MistralResponse: chatResp}
	s.persist(ctx, result)
	return result, nil
}

func (s *Service) generate(ctx context.Context, rec domain.Record) *analysis.TestCaseResponse {
	resp, err := s.Completion.GenerateTestCases(ctx, rec)
	if err == nil && resp != nil {
		return resp
	}
	if err == nil {
		err = errors.New("empty response")
	}
	s.downstreamFailed(ctx, rec, "completion", audit.ActionCompletionFailed, err)
	return &analysis.TestCaseResponse{Error: CompletionUnavailable}
}

func (s *Service) analyze(ctx context.Context, rec domain.Record, aiResp *analysis.TestCaseResponse) *analysis.Response {
	resp, err := s.Chat.AnalyzeChange(ctx, rec, aiResp)
	if err == nil && resp != nil {
		return resp
	}
	if err == nil {
		err = errors.New("empty response")
	}
	s.downstreamFailed(ctx, rec, "chat", audit.ActionChatFailed, err)
	return &analysis.Response{Error: ChatUnavailable}
}

func (s *Service) downstreamFailed(ctx context.Context, rec domain.Record, service, action string, err error) {
	s.log().Warn("downstream analysis failed",
		zap.String("service", service),
		zap.Int64("change_id", rec.ID),
		zap.Error(err),
	)
	if s.Metrics != nil {
		s.Metrics.DownstreamFailed(service)
	}
	s.audit(ctx, rec, action, service+" service unavailable", map[string]any{"error": err.Error()})
}

// persist stores the analysis per change plus the best-effort archive and cache
// copies. Nothing here fails the request; the change row already exists.
func (s *Service) persist(ctx context.Context, ca *analysis.ChangeAnalysis) {
	rec := *ca.Record
	log := s.log().With(zap.Int64("change_id", rec.ID))

	stored := &analysis.Stored{
		ChangeID:        rec.ID,
		Completion:      ca.AIResponse,
		Chat:            ca.MistralResponse,
		RiskScore:       riskScore(ca.MistralResponse),
		ConfidenceScore: confidence(ca),
		CreatedAt:       rec.CreatedAt,
	}

	if s.Artifacts != nil {
		key := fmt.Sprintf("changes/%d/analysis.json", rec.ID)
		url, err := s.Artifacts.PutJSON(ctx, key, ca)
		if err != nil {
			log.Warn("archive analysis failed", zap.String("key", key), zap.Error(err))
		} else {
			stored.ArtifactURL = url
		}
	}

	if err := s.Analyses.Save(ctx, stored); err != nil {
		log.Error("persist analysis failed", zap.Error(err))
		if s.Metrics != nil {
			s.Metrics.AnalysisPersistFailed()
		}
		s.audit(ctx, rec, audit.ActionAnalysisPersistFail, "analysis not stored", map[string]any{"error": err.Error()})
		return
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, ca); err != nil {
			log.Warn("cache analysis failed", zap.Error(err))
		}
	}
}

// List returns every change (or one page of them) newest first, each with its own
// analysis. Changes without an analysis carry nil responses.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]*analysis.ChangeAnalysis, error) {
	recs, err := s.Changes.List(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}

	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	stored, err := s.Analyses.ListByChanges(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	out := make([]*analysis.ChangeAnalysis, 0, len(recs))
	for _, r := range recs {
		ca := &analysis.ChangeAnalysis{Record: r}
		if st, ok := stored[r.ID]; ok {
			ca.AIResponse = st.Completion
			ca.MistralResponse = st.Chat
		}
		out = append(out, ca)
	}
	return out, nil
}

// Get returns one change with its analysis, reading through the cache.
func (s *Service) Get(ctx context.Context, id int64) (*analysis.ChangeAnalysis, error) {
	if s.Cache != nil {
		ca, ok, err := s.Cache.Get(ctx, id)
		if err != nil {
			s.log().Warn("cache read failed", zap.Int64("change_id", id), zap.Error(err))
		}
		if ok {
			return ca, nil
		}
	}

	rec, err := s.Changes.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ca := &analysis.ChangeAnalysis{Record: rec}
	st, err := s.Analyses.GetByChange(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ca, nil
	case err != nil:
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	ca.AIResponse = st.Completion
	ca.MistralResponse = st.Chat

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, ca); err != nil {
			s.log().Warn("cache analysis failed", zap.Int64("change_id", id), zap.Error(err))
		}
	}
	return ca, nil
}

// AuditTrail lists the audit entries recorded for a change, newest first.
func (s *Service) AuditTrail(ctx context.Context, id int64, limit int) ([]*audit.Entry, error) {
	if _, err := s.Changes.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Audit.ListByChange(ctx, id, limit)
}

func (s *Service) audit(ctx context.Context, rec domain.Record, action, msg string, details map[string]any) {
	if s.Audit == nil {
		return
	}
	b, _ := json.Marshal(details)
	uid, cid := rec.UserID, rec.ID
	e := &audit.Entry{
		UserID:      &uid,
		ChangeID:    &cid,
		Action:      action,
		Message:     msg,
		DetailsJSON: string(b),
		CreatedAt:   application.OrSystem(s.Clock).Now(),
	}
	if err := s.Audit.Save(ctx, e); err != nil {
		s.log().Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func riskScore(r *analysis.Response) *float64 {
	if r.Failed() || r.AnalysisResult == nil || r.AnalysisResult.Failed() {
		return nil
	}
	v := r.AnalysisResult.RiskScore
	return &v
}

// confidence is the share of the two analyses that came back usable.
func confidence(ca *analysis.ChangeAnalysis) float64 {
	ok := 0
	if !ca.AIResponse.Failed() {
		ok++
	}
	if !ca.MistralResponse.Failed() {
		ok++
	}
	return float64(ok) / 2
}

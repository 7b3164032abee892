// Package server exposes the dashboard API over the analysis pipeline. All
// workflow state is session-scoped and in-memory; the CRM stays the system
// of record.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	ensemblex "github.com/warin-t/salesforce-next-best-action/agent/ensemble"
	enginex "github.com/warin-t/salesforce-next-best-action/agent/engine"
	executorx "github.com/warin-t/salesforce-next-best-action/agent/executor"
	formatterx "github.com/warin-t/salesforce-next-best-action/agent/formatter"
	planx "github.com/warin-t/salesforce-next-best-action/agent/plan"
	metricsx "github.com/warin-t/salesforce-next-best-action/pkg/metrics"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

// CRM is the read surface the dashboard needs. *salesforce.Client
// satisfies it.
type CRM interface {
	FetchAccountBundle(ctx context.Context, accountID string) (*salesforcex.AccountBundle, error)
}

// CRMFactory opens a dedicated CRM connection for a session that supplied
// its own credentials.
type CRMFactory func(ctx context.Context, cfg salesforcex.Config) (CRM, error)

type Server struct {
	crm      CRM
	newCRM   CRMFactory
	registry *enginex.Registry
	store    *Store
	exec     *executorx.Executor
	now      func() time.Time
}

type Option func(*Server)

// WithCRMFactory overrides how per-session CRM connections are opened.
func WithCRMFactory(f CRMFactory) Option {
	return func(s *Server) {
		s.newCRM = f
	}
}

func New(crm CRM, registry *enginex.Registry, store *Store, exec *executorx.Executor, opts ...Option) *Server {
	s := &Server{
		crm:      crm,
		registry: registry,
		store:    store,
		exec:     exec,
		now:      time.Now,
	}
	s.newCRM = func(ctx context.Context, cfg salesforcex.Config) (CRM, error) {
		client, err := salesforcex.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		if err := client.Login(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if req.Engine != "" {
		if _, err := s.registry.Get(contractx.EngineName(req.Engine)); err != nil {
			respondError(c, err)
			return
		}
	}

	var sessionCRM CRM
	if req.Credentials != nil {
		crm, err := s.newCRM(c.Request.Context(), req.Credentials.toConfig())
		if err != nil {
			c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		sessionCRM = crm
	}

	sess := s.store.Create()
	sess.Update(func(sess *Session) {
		sess.crm = sessionCRM
		sess.engine = contractx.EngineName(req.Engine)
	})

	c.JSON(http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

// sessionCRM prefers the session's own connection over the server-wide one.
func (s *Server) sessionCRM(sess *Session) CRM {
	var crm CRM
	sess.Update(func(sess *Session) { crm = sess.crm })
	if crm != nil {
		return crm
	}
	return s.crm
}

// engineFor resolves the engine: request override first, then the session
// preference, then the registry default.
func (s *Server) engineFor(sess *Session, requested string) (contractx.Engine, error) {
	name := contractx.EngineName(requested)
	if name == "" {
		sess.Update(func(sess *Session) { name = sess.engine })
	}
	return s.registry.Get(name)
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.store.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) loadAccount(c *gin.Context) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req loadAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	bundle, err := s.sessionCRM(sess).FetchAccountBundle(c.Request.Context(), req.AccountID)
	if err != nil {
		respondError(c, err)
		return
	}

	sess.Update(func(sess *Session) {
		sess.accountID = req.AccountID
		sess.bundle = bundle
		// loading a new account invalidates every downstream artifact
		sess.analyses = make(map[contractx.EngineName]contractx.Analysis)
		sess.recs = nil
		sess.selected = nil
		sess.plan = nil
		sess.report = nil
	})

	c.JSON(http.StatusOK, accountResponse{
		Account: bundle.Account,
		Summary: formatterx.Summarize(bundle),
	})
}

// sessionBundle fetches the session and its loaded bundle, writing the error
// response itself when either is missing.
func (s *Server) sessionBundle(c *gin.Context) (*Session, *salesforcex.AccountBundle, bool) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}

	var bundle *salesforcex.AccountBundle
	sess.Update(func(sess *Session) { bundle = sess.bundle })
	if bundle == nil {
		c.JSON(http.StatusConflict, errorResponse{Error: "no account loaded in this session"})
		return nil, nil, false
	}
	return sess, bundle, true
}

func (s *Server) analyze(c *gin.Context) {
	sess, bundle, ok := s.sessionBundle(c)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	eng, err := s.engineFor(sess, req.Engine)
	if err != nil {
		respondError(c, err)
		return
	}

	analysis, err := eng.Analyze(c.Request.Context(), bundle)
	metricsx.RecordPipeline(string(eng.Name()), "analyze", err)
	if err != nil {
		respondError(c, err)
		return
	}

	sess.Update(func(sess *Session) { sess.analyses[eng.Name()] = analysis })
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) compare(c *gin.Context) {
	sess, bundle, ok := s.sessionBundle(c)
	if !ok {
		return
	}

	results, err := ensemblex.Run(c.Request.Context(), s.registry.All(), bundle)
	if err != nil {
		respondError(c, err)
		return
	}

	sess.Update(func(sess *Session) {
		for _, r := range results {
			if r.Err == "" {
				sess.analyses[r.Engine] = r.Analysis
			}
		}
	})

	c.JSON(http.StatusOK, compareResponse{
		Results:   results,
		Consensus: ensemblex.Summarize(results),
	})
}

func (s *Server) recommend(c *gin.Context) {
	sess, bundle, ok := s.sessionBundle(c)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	eng, err := s.engineFor(sess, req.Engine)
	if err != nil {
		respondError(c, err)
		return
	}

	var analysis contractx.Analysis
	var analyzed bool
	sess.Update(func(sess *Session) { analysis, analyzed = sess.analyses[eng.Name()] })

	if !analyzed {
		analysis, err = eng.Analyze(c.Request.Context(), bundle)
		metricsx.RecordPipeline(string(eng.Name()), "analyze", err)
		if err != nil {
			respondError(c, err)
			return
		}
		sess.Update(func(sess *Session) { sess.analyses[eng.Name()] = analysis })
	}

	recs, err := eng.Recommend(c.Request.Context(), analysis)
	metricsx.RecordPipeline(string(eng.Name()), "recommend", err)
	if err != nil {
		respondError(c, err)
		return
	}

	sess.Update(func(sess *Session) {
		sess.recs = recs
		sess.selected = nil
		sess.plan = nil
		sess.report = nil
	})

	c.JSON(http.StatusOK, recommendationsResponse{
		Engine:          string(eng.Name()),
		Recommendations: recs,
	})
}

func (s *Server) selectRecommendation(c *gin.Context) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var selected *contractx.Recommendation
	sess.Update(func(sess *Session) {
		if req.Index < 0 || req.Index >= len(sess.recs) {
			return
		}
		rec := sess.recs[req.Index]
		sess.selected = &rec
		sess.plan = nil
		sess.report = nil
		selected = &rec
	})

	if selected == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "recommendation index out of range"})
		return
	}
	c.JSON(http.StatusOK, selected)
}

func (s *Server) buildPlan(c *gin.Context) {
	sess, bundle, ok := s.sessionBundle(c)
	if !ok {
		return
	}

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var actionPlan contractx.ActionPlan
	if req.Template != "" {
		actionPlan, ok = s.materializeTemplate(c, req.Template)
		if !ok {
			return
		}
	} else {
		actionPlan, ok = s.planFromSelection(c, sess, bundle, req.Engine)
		if !ok {
			return
		}
	}

	sess.Update(func(sess *Session) {
		sess.plan = &actionPlan
		sess.report = nil
	})
	c.JSON(http.StatusOK, actionPlan)
}

func (s *Server) materializeTemplate(c *gin.Context, name string) (contractx.ActionPlan, bool) {
	actionPlan, err := planx.Materialize(name, s.now())
	if err != nil {
		respondError(c, err)
		return contractx.ActionPlan{}, false
	}
	return actionPlan, true
}

func (s *Server) planFromSelection(c *gin.Context, sess *Session, bundle *salesforcex.AccountBundle, engine string) (contractx.ActionPlan, bool) {
	eng, err := s.engineFor(sess, engine)
	if err != nil {
		respondError(c, err)
		return contractx.ActionPlan{}, false
	}

	var analysis contractx.Analysis
	var analyzed bool
	var selected *contractx.Recommendation
	sess.Update(func(sess *Session) {
		analysis, analyzed = sess.analyses[eng.Name()]
		selected = sess.selected
	})

	if selected == nil {
		respondError(c, contractx.ErrNoRecommendation)
		return contractx.ActionPlan{}, false
	}
	if !analyzed {
		analysis, err = eng.Analyze(c.Request.Context(), bundle)
		metricsx.RecordPipeline(string(eng.Name()), "analyze", err)
		if err != nil {
			respondError(c, err)
			return contractx.ActionPlan{}, false
		}
		sess.Update(func(sess *Session) { sess.analyses[eng.Name()] = analysis })
	}

	actionPlan, err := eng.Plan(c.Request.Context(), analysis, *selected)
	metricsx.RecordPipeline(string(eng.Name()), "plan", err)
	if err != nil {
		respondError(c, err)
		return contractx.ActionPlan{}, false
	}
	return actionPlan, true
}

func (s *Server) execute(c *gin.Context) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var actionPlan *contractx.ActionPlan
	var accountID string
	sess.Update(func(sess *Session) {
		actionPlan = sess.plan
		accountID = sess.accountID
	})

	if actionPlan == nil {
		c.JSON(http.StatusConflict, errorResponse{Error: "no plan built in this session"})
		return
	}

	report, err := s.exec.Execute(c.Request.Context(), *actionPlan, executorx.Target{
		AccountID:    accountID,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	sess.Update(func(sess *Session) { sess.report = &report })
	c.JSON(http.StatusOK, report)
}

func (s *Server) report(c *gin.Context) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var report *contractx.ExecutionReport
	sess.Update(func(sess *Session) { report = sess.report })

	if report == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no execution report in this session"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=execution-report-%s.json", report.ID))
	c.JSON(http.StatusOK, report)
}

// batchAnalyze runs the chosen engine over several accounts sequentially.
// Sessions are not involved; this is the bulk read path for the dashboard
// portfolio view.
func (s *Server) batchAnalyze(c *gin.Context) {
	var req batchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	eng, err := s.registry.Get(contractx.EngineName(req.Engine))
	if err != nil {
		respondError(c, err)
		return
	}

	results := make([]batchAnalyzeResult, 0, len(req.AccountIDs))
	for _, accountID := range req.AccountIDs {
		res := batchAnalyzeResult{AccountID: accountID}

		bundle, err := s.crm.FetchAccountBundle(c.Request.Context(), accountID)
		if err == nil {
			res.AccountName = bundle.Account.Name
			var analysis contractx.Analysis
			analysis, err = eng.Analyze(c.Request.Context(), bundle)
			metricsx.RecordPipeline(string(eng.Name()), "analyze", err)
			if err == nil {
				res.Analysis = &analysis
				if len(analysis.NextActions) > 0 {
					res.TopAction = analysis.NextActions[0].Title
				}
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("account_id", accountID).Msg("batch analyze entry failed")
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	c.JSON(http.StatusOK, results)
}

func (s *Server) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": planx.Names()})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, salesforcex.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, contractx.ErrUnknownEngine),
		errors.Is(err, contractx.ErrValidation),
		errors.Is(err, contractx.ErrNoRecommendation),
		errors.Is(err, salesforcex.ErrInvalidRecordID):
		status = http.StatusBadRequest
	case errors.Is(err, contractx.ErrModelInvoke),
		errors.Is(err, contractx.ErrSchemaViolation):
		status = http.StatusBadGateway
	}

	c.JSON(status, errorResponse{Error: err.Error()})
}

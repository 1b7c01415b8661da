package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/domain/detection"
	"github.com/scamshield/scam-detector/internal/domain/scoring"
	"github.com/scamshield/scam-detector/internal/observability"
	"github.com/scamshield/scam-detector/internal/ports"
)

var (
	// ErrSessionBusy is returned when a tab already has a pipeline run in flight
	ErrSessionBusy = errors.New("analysis already in progress for this tab")

	// ErrSessionNotFound is returned for tabs with no session or no assessment yet
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionSuperseded is returned when the tab navigated away before the run finished
	ErrSessionSuperseded = errors.New("session superseded before analysis completed")

	// ErrLookupUnavailable is returned by domain lookups that were not configured
	ErrLookupUnavailable = errors.New("lookup not configured")
)

const (
	DefaultDetectorTimeout = 2 * time.Second
	DefaultDetectorGrace   = 2 * time.Second
	DefaultDebounce        = time.Second

	publishTimeout = 5 * time.Second
)

// Stage is the pipeline position of a tab's current session
type Stage string

const (
	StageIdle      Stage = "idle"
	StageBaseline  Stage = "collecting-baseline"
	StageFinancial Stage = "collecting-financial"
	StageScoring   Stage = "scoring"
	StageDone      Stage = "done"
)

// Options configures optional collaborators of the orchestrator.
// Zero values disable the collaborator or select the default.
type Options struct {
	DetectorTimeout time.Duration
	// DetectorGrace bounds how long a timed-out detector that ignores its
	// context may keep running before the next detector starts
	DetectorGrace   time.Duration
	Debounce        time.Duration
	Remote          ports.RemoteRiskScorer
	DomainAges      ports.DomainAgeChecker
	DNS             ports.DNSChecker
	Store           ports.AssessmentStore
	Publishers      []ports.AlertPublisher
	Metrics         *observability.Metrics
	Logger          *slog.Logger
}

// Orchestrator runs the detection pipeline for each browser tab
//
// Per tab it enforces:
//   - At most one pipeline run at a time (the busy flag)
//   - Baseline detectors complete, in order, before any financial-stage detector
//   - Results of a run that was overtaken by navigation are discarded
//
// Different tabs are independent and may be analysed concurrently.
type Orchestrator struct {
	suite      *detection.Suite
	aggregator *scoring.Aggregator
	remote     ports.RemoteRiskScorer
	domainAges ports.DomainAgeChecker
	dns        ports.DNSChecker
	classifier *detection.WebpageClassifier
	store      ports.AssessmentStore
	publishers []ports.AlertPublisher
	metrics    *observability.Metrics
	logger     *slog.Logger

	detectorTimeout time.Duration
	detectorGrace   time.Duration
	debounce        time.Duration

	// root is cancelled by Close and parents debounced re-runs
	root   context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	tabs map[string]*tab
}

// tab is the orchestrator's private state for one browser tab
type tab struct {
	session    domain.AnalysisSession
	stage      Stage
	assessment *domain.RiskAssessment
	generation uint64
	debouncer  *Debouncer
}

// TabStatus is a point-in-time view of a tab
type TabStatus struct {
	Session    domain.AnalysisSession `json:"session"`
	Stage      Stage                  `json:"stage"`
	Assessment *domain.RiskAssessment `json:"assessment,omitempty"`
}

// NewOrchestrator creates an orchestrator with dependency injection
func NewOrchestrator(suite *detection.Suite, aggregator *scoring.Aggregator, opts Options) *Orchestrator {
	if opts.DetectorTimeout <= 0 {
		opts.DetectorTimeout = DefaultDetectorTimeout
	}
	if opts.DetectorGrace <= 0 {
		opts.DetectorGrace = DefaultDetectorGrace
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}

	root, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		suite:           suite,
		aggregator:      aggregator,
		remote:          opts.Remote,
		domainAges:      opts.DomainAges,
		dns:             opts.DNS,
		classifier:      detection.NewWebpageClassifier(),
		store:           opts.Store,
		publishers:      opts.Publishers,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		detectorTimeout: opts.DetectorTimeout,
		detectorGrace:   opts.DetectorGrace,
		debounce:        opts.Debounce,
		root:            root,
		cancel:          cancel,
		tabs:            make(map[string]*tab),
	}
}

// PageReady starts a full pipeline run for a freshly loaded page
//
// A new session replaces the tab's previous one. The call is rejected with
// ErrSessionBusy while the tab already has a run in flight.
func (o *Orchestrator) PageReady(ctx context.Context, tabID string, page domain.PageContext) (*domain.RiskAssessment, error) {
	o.mu.Lock()
	t, ok := o.tabs[tabID]
	if !ok {
		t = &tab{stage: StageIdle, debouncer: NewDebouncer(o.debounce)}
		o.tabs[tabID] = t
	}
	if t.session.Busy {
		o.mu.Unlock()
		return nil, ErrSessionBusy
	}
	t.generation++
	gen := t.generation
	session := domain.NewAnalysisSession(tabID, page).WithBusy(true)
	t.session = session
	t.stage = StageBaseline
	o.mu.Unlock()

	o.logger.Debug("Analysis started", "tab_id", tabID, "session_id", session.ID, "url", page.URL)
	started := time.Now()

	// A run is abandoned on navigation, never cancelled by the caller going away
	ctx = context.WithoutCancel(ctx)
	session, assessment := o.run(ctx, t, gen, session, page)

	o.mu.Lock()
	if o.tabs[tabID] != t || t.generation != gen {
		o.mu.Unlock()
		o.logger.Debug("Discarding result of superseded session", "tab_id", tabID, "session_id", session.ID)
		return nil, ErrSessionSuperseded
	}
	t.session = session
	t.stage = StageDone
	t.assessment = &assessment
	o.mu.Unlock()

	o.metrics.AnalysisCompleted(string(assessment.RiskLevel), time.Since(started))
	o.logger.Info("Analysis completed",
		"tab_id", tabID,
		"session_id", session.ID,
		"risk_score", assessment.RiskScore,
		"risk_level", assessment.RiskLevel,
		"remote_blended", assessment.Blended,
	)

	o.persist(ctx, session, &assessment)
	if assessment.RiskLevel.AlertWorthy() {
		o.publish(ctx, domain.NewAlert(session, assessment))
	}

	out := assessment
	return &out, nil
}

// run executes the staged pipeline and returns the final session and its assessment
func (o *Orchestrator) run(ctx context.Context, t *tab, gen uint64, session domain.AnalysisSession, page domain.PageContext) (domain.AnalysisSession, domain.RiskAssessment) {
	session = session.WithSignals(o.runStage(ctx, session, page, o.suite.Baseline()))

	financial := session.FinancialIntent()
	if financial {
		o.advance(t, gen, session, StageFinancial)
		session = session.WithSignals(o.runStage(ctx, session, page, o.suite.Financial()))
	}

	o.advance(t, gen, session, StageScoring)
	assessment := o.aggregator.Aggregate(session.Signals, financial)

	if o.remote != nil && !assessment.Incomplete {
		remote := o.remote.Score(ctx, scoring.RemoteSignals(session.Signals))
		if !remote.OK() {
			o.metrics.RemoteFailed()
			o.logger.Warn("Remote scorer unavailable, keeping local score",
				"session_id", session.ID,
				"error", remote.Err,
			)
		}
		assessment = o.aggregator.Blend(assessment, session.Signals, financial, remote)
	}

	assessment.SessionID = session.ID
	assessment.URL = session.URL
	return session.WithRiskLevel(assessment.RiskLevel).WithBusy(false), assessment
}

// advance publishes an intermediate session so status queries see the current stage
func (o *Orchestrator) advance(t *tab, gen uint64, session domain.AnalysisSession, stage Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t.generation == gen {
		t.session = session
		t.stage = stage
	}
}

// runStage runs detectors one after another; a stage never runs detectors concurrently
func (o *Orchestrator) runStage(ctx context.Context, session domain.AnalysisSession, page domain.PageContext, detectors []detection.Detector) map[domain.SignalName]domain.SignalResult {
	results := make(map[domain.SignalName]domain.SignalResult, len(detectors))
	for _, d := range detectors {
		results[d.Name()] = o.runDetector(ctx, session, page, d)
	}
	return results
}

// runDetector invokes one detector, substituting the default result if it errors,
// panics, times out or returns an out-of-range score
func (o *Orchestrator) runDetector(ctx context.Context, session domain.AnalysisSession, page domain.PageContext, d detection.Detector) domain.SignalResult {
	ctx, cancel := context.WithTimeout(ctx, o.detectorTimeout)
	defer cancel()

	type outcome struct {
		result domain.SignalResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("detector panicked: %v", r)}
			}
		}()
		result, err := d.Detect(ctx, page, o.suite.Context())
		done <- outcome{result: result, err: err}
	}()

	var err error
	select {
	case out := <-done:
		err = out.err
		if err == nil && !validSignal(out.result) {
			err = fmt.Errorf("malformed result: score %v outside [0,1]", out.result.Score)
		}
		if err == nil {
			if out.result.Reasons == nil {
				out.result.Reasons = []string{}
			}
			return out.result
		}
	case <-ctx.Done():
		err = fmt.Errorf("detector did not finish: %w", ctx.Err())

		// Wait for it to return so two detectors of a session never overlap
		grace := time.NewTimer(o.detectorGrace)
		select {
		case <-done:
		case <-grace.C:
			o.logger.Error("Detector ignored cancellation and is still running",
				"session_id", session.ID,
				"detector", d.Name(),
				"grace", o.detectorGrace,
			)
		}
		grace.Stop()
	}

	o.metrics.DetectorFailed(string(d.Name()))
	o.logger.Warn("Detector failed, using default result",
		"session_id", session.ID,
		"detector", d.Name(),
		"error", err,
	)
	return domain.FailedSignal()
}

func validSignal(r domain.SignalResult) bool {
	return !math.IsNaN(r.Score) && r.Score >= 0 && r.Score <= 1
}

// DOMChanged reports a DOM mutation on a tab's current page
//
// Significant mutations schedule a debounced re-check of financial intent. Only a
// flip from not-financial to financial starts a fresh session. Returns whether a
// re-check was scheduled.
func (o *Orchestrator) DOMChanged(tabID string, page domain.PageContext, mutation domain.Mutation) (bool, error) {
	o.mu.Lock()
	t, ok := o.tabs[tabID]
	o.mu.Unlock()
	if !ok {
		return false, ErrSessionNotFound
	}
	if !mutation.Significant() {
		return false, nil
	}

	var rerun func()
	rerun = func() { o.reanalyze(tabID, t, page, rerun) }
	t.debouncer.Trigger(rerun)
	return true, nil
}

func (o *Orchestrator) reanalyze(tabID string, t *tab, page domain.PageContext, rerun func()) {
	if o.root.Err() != nil {
		return
	}

	o.mu.Lock()
	if o.tabs[tabID] != t {
		o.mu.Unlock()
		return
	}
	if t.session.Busy {
		// try again once the in-flight run has finished
		t.debouncer.Trigger(rerun)
		o.mu.Unlock()
		return
	}
	session := t.session
	gen := t.generation
	o.mu.Unlock()

	d, ok := o.suite.Lookup(domain.SignalFinancialIntent)
	if !ok {
		return
	}
	result := o.runDetector(o.root, session, page, d)
	nowFinancial := !result.Failed && result.Detected
	if session.FinancialIntent() || !nowFinancial {
		o.logger.Debug("DOM change did not alter financial intent", "tab_id", tabID, "session_id", session.ID)
		return
	}

	o.mu.Lock()
	stale := o.tabs[tabID] != t || t.generation != gen
	o.mu.Unlock()
	if stale {
		return
	}

	o.logger.Info("Financial intent appeared after page load, re-analysing", "tab_id", tabID, "intent", result.Intent())
	if _, err := o.PageReady(o.root, tabID, page); err != nil {
		if errors.Is(err, ErrSessionBusy) {
			t.debouncer.Trigger(rerun)
			return
		}
		o.logger.Warn("Re-analysis failed", "tab_id", tabID, "error", err)
	}
}

// Discard abandons a tab's session on navigation away; in-flight results are dropped
func (o *Orchestrator) Discard(tabID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tabs[tabID]
	if !ok {
		return false
	}
	t.debouncer.Cancel()
	t.generation++
	delete(o.tabs, tabID)
	return true
}

// Assessment returns the latest assessment of a tab regardless of its level
func (o *Orchestrator) Assessment(tabID string) (*domain.RiskAssessment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tabs[tabID]
	if !ok || t.assessment == nil {
		return nil, ErrSessionNotFound
	}
	out := *t.assessment
	return &out, nil
}

// Status returns the tab's current session and pipeline stage
func (o *Orchestrator) Status(tabID string) (TabStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tabs[tabID]
	if !ok {
		return TabStatus{}, ErrSessionNotFound
	}
	status := TabStatus{Session: t.session, Stage: t.stage}
	if t.assessment != nil {
		a := *t.assessment
		status.Assessment = &a
	}
	return status, nil
}

// Close cancels pending re-analyses. Collaborators are closed by their owner.
func (o *Orchestrator) Close() {
	o.cancel()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range o.tabs {
		t.debouncer.Cancel()
	}
}

// persist stores the assessment best-effort; history is never required for a verdict
func (o *Orchestrator) persist(ctx context.Context, session domain.AnalysisSession, assessment *domain.RiskAssessment) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveAssessment(ctx, session, assessment); err != nil {
		o.logger.Warn("Failed to store assessment", "session_id", session.ID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, alert domain.Alert) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for _, p := range o.publishers {
		err := p.Publish(ctx, alert)
		o.metrics.AlertPublished(err == nil)
		if err != nil {
			o.logger.Warn("Failed to publish alert", "session_id", alert.SessionID, "error", err)
		}
	}
}

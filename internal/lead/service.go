// Package lead accepts lead submissions and forwards them to the CRM and the
// CMS. Forwarding is best effort: once the required fields are present the
// submitter is told the lead was received, whatever the upstreams answered.
package lead

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/directory"
	"github.com/moveis-planejados/lead-api/internal/journal"
	"github.com/moveis-planejados/lead-api/internal/metrics"
	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/internal/resilience"
	"github.com/moveis-planejados/lead-api/pkg/pipefy"
	"github.com/moveis-planejados/lead-api/pkg/wordpress"
)

// Upstream names used for breakers, logs and metrics.
const (
	UpstreamDirectory = "directory"
	UpstreamCRM       = "pipefy"
	UpstreamCMS       = "wordpress"
)

// DefaultUpstreamTimeout bounds each upstream call.
const DefaultUpstreamTimeout = 8 * time.Second

const journalTimeout = 3 * time.Second

// MaxSubmitDuration is the longest Submit can take with the given per-call
// timeout: three upstream calls and two journal writes.
func MaxSubmitDuration(upstreamTimeout time.Duration) time.Duration {
	if upstreamTimeout <= 0 {
		upstreamTimeout = DefaultUpstreamTimeout
	}
	return 3*upstreamTimeout + 2*journalTimeout
}

// LeadWriter is the part of the CMS client the service needs.
type LeadWriter interface {
	CreateLead(ctx context.Context, lead wordpress.LeadRecord) (*wordpress.CreateLeadResponse, error)
}

// Recorder persists failed deliveries.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Config holds the service settings.
type Config struct {
	PipeID          string
	UpstreamTimeout time.Duration
}

// Option configures optional collaborators.
type Option func(*Service)

// WithJournal records every failed CRM or CMS delivery.
func WithJournal(r Recorder) Option {
	return func(s *Service) { s.journal = r }
}

// WithMetrics counts submissions and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBreakers shares a breaker registry, e.g. one whose state changes are exported.
func WithBreakers(b *resilience.Breakers) Option {
	return func(s *Service) { s.breakers = b }
}

// Service orchestrates one submission through store validation, the CRM and the CMS.
type Service struct {
	cfg       Config
	directory directory.Directory
	crm       pipefy.Client
	cms       LeadWriter
	journal   Recorder
	breakers  *resilience.Breakers
	metrics   *metrics.Metrics
	newID     func() string
}

// New creates a Service. dir, crm and cms may be nil; the matching step is
// then skipped.
func New(cfg Config, dir directory.Directory, crm pipefy.Client, cms LeadWriter, opts ...Option) *Service {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	s := &Service{
		cfg:       cfg,
		directory: dir,
		crm:       crm,
		cms:       cms,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.breakers == nil {
		s.breakers = resilience.NewBreakers(resilience.DefaultBreakerConfig())
	}
	return s
}

// Submit validates and forwards a lead. The only error it returns is a
// *ValidationError; upstream failures are logged, counted and journaled.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (*model.Result, error) {
	submissionID := s.newID()
	log := zap.L().With(zap.String("submission_id", submissionID))
	stage := func(st Stage) {
		log.Debug("lead: stage", zap.String("stage", string(st)))
	}
	stage(StageReceived)

	if err := Validate(sub); err != nil {
		stage(StageRejected)
		s.metrics.Submission("rejected")
		return nil, err
	}
	stage(StageValidated)

	store := s.checkStore(ctx, sub)
	if !store.Skipped {
		stage(StageStoreChecked)
	}
	s.reportFailure(log, store.Err)
	storeID := store.Value

	card := s.createCard(ctx, sub, storeID)
	var cardID *string
	if card.OK() {
		id := card.Value
		cardID = &id
		stage(StageCRMWritten)
	}
	s.reportFailure(log, card.Err)
	s.journalFailure(ctx, log, submissionID, card.Err, sub, storeID, nil)

	cms := s.createLead(ctx, sub, storeID, cardID)
	if cms.OK() {
		stage(StageCMSWritten)
	}
	s.reportFailure(log, cms.Err)
	s.journalFailure(ctx, log, submissionID, cms.Err, sub, storeID, cardID)

	// Undelivered when a leg was attempted and none succeeded.
	if (card.Failed() || cms.Failed()) && !card.OK() && !cms.OK() {
		log.Error("lead: lead undelivered",
			zap.String("email", sub.Email),
			zap.NamedError("crm_error", card.Err),
			zap.NamedError("cms_error", cms.Err),
		)
		s.metrics.Undelivered()
	}

	s.metrics.Submission("accepted")
	stage(StageResponded)
	return &model.Result{
		Success:          true,
		CRMCardID:        cardID,
		ValidatedStoreID: storeID,
	}, nil
}

// checkStore looks the submitted store id up in the directory. A missing or
// non-numeric match yields a nil value, not a failure.
func (s *Service) checkStore(ctx context.Context, sub model.Submission) resilience.Outcome[*int] {
	if s.directory == nil || !sub.HasStoreID() {
		return resilience.Skip[*int]()
	}
	want := *sub.StoreID
	return resilience.Call(ctx, s.breakers.Get(UpstreamDirectory), "list_stores", s.cfg.UpstreamTimeout,
		func(ctx context.Context) (*int, error) {
			stores, err := s.directory.Stores(ctx)
			if err != nil {
				return nil, err
			}
			found := directory.Find(stores, want)
			if found == nil {
				return nil, nil
			}
			n, ok := found.ID.Int()
			if !ok {
				zap.L().Debug("lead: matched store has a non-numeric id", zap.String("store_id", found.ID.String()))
				return nil, nil
			}
			return &n, nil
		})
}

func (s *Service) createCard(ctx context.Context, sub model.Submission, storeID *int) resilience.Outcome[string] {
	if s.crm == nil {
		return resilience.Skip[string]()
	}
	input := CardInput(s.cfg.PipeID, sub, storeID)
	return resilience.Call(ctx, s.breakers.Get(UpstreamCRM), "create_card", s.cfg.UpstreamTimeout,
		func(ctx context.Context) (string, error) {
			return s.crm.CreateCard(ctx, input)
		})
}

func (s *Service) createLead(ctx context.Context, sub model.Submission, storeID *int, cardID *string) resilience.Outcome[*wordpress.CreateLeadResponse] {
	if s.cms == nil {
		return resilience.Skip[*wordpress.CreateLeadResponse]()
	}
	record := LeadRecord(sub, storeID, cardID)
	return resilience.Call(ctx, s.breakers.Get(UpstreamCMS), "create_lead", s.cfg.UpstreamTimeout,
		func(ctx context.Context) (*wordpress.CreateLeadResponse, error) {
			return s.cms.CreateLead(ctx, record)
		})
}

func (s *Service) reportFailure(log *zap.Logger, ue *resilience.UpstreamError) {
	if ue == nil {
		return
	}
	log.Warn("lead: upstream call failed",
		zap.String("upstream", ue.Upstream),
		zap.String("op", ue.Op),
		zap.String("error_kind", ue.Kind()),
		zap.Error(ue.Err),
	)
	s.metrics.UpstreamFailure(ue.Upstream)
}

// journalFailure records a failed delivery. It runs detached from the request
// so a client hanging up does not lose the record.
func (s *Service) journalFailure(ctx context.Context, log *zap.Logger, submissionID string, ue *resilience.UpstreamError, sub model.Submission, storeID *int, cardID *string) {
	if ue == nil || s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	err := s.journal.Record(ctx, journal.Entry{
		SubmissionID: submissionID,
		Upstream:     ue.Upstream,
		Op:           ue.Op,
		ErrorKind:    ue.Kind(),
		Error:        ue.Err.Error(),
		Lead:         sub,
		StoreID:      storeID,
		CRMCardID:    cardID,
	})
	if err != nil {
		log.Warn("lead: journal write failed", zap.String("upstream", ue.Upstream), zap.Error(err))
	}
}

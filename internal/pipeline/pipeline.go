package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aleister1102/tariffwatch/internal/changestore"
	"github.com/aleister1102/tariffwatch/internal/classifier"
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/extractor"
	"github.com/aleister1102/tariffwatch/internal/fetcher"
	"github.com/aleister1102/tariffwatch/internal/models"
	"github.com/aleister1102/tariffwatch/internal/notifier"
	"github.com/aleister1102/tariffwatch/internal/rslimiter"
	"github.com/rs/zerolog"
)

// TargetPlanner expands provider configuration into targets and strategies.
// *fetcher.Planner is the production implementation.
type TargetPlanner interface {
	Targets(provider *config.ProviderConfig) ([]fetcher.Target, error)
	StrategiesFor(target fetcher.Target) []fetcher.Strategy
}

// Deps are the collaborators of a pipeline. Notifier, Limiter and Sinks are
// optional.
type Deps struct {
	Planner    TargetPlanner
	Fetcher    *fetcher.Fetcher
	Store      *changestore.Store
	Extractor  *extractor.Extractor
	Classifier *classifier.Classifier
	Notifier   *notifier.NotificationHelper
	Limiter    *rslimiter.ResourceLimiter
	Sinks      []models.RecordSink
}

// RunOptions select what a run checks.
type RunOptions struct {
	RunID string
	// Providers restricts the run to these names; empty means all.
	Providers []string
}

// RunResult is everything a run produced.
type RunResult struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Outcomes       []models.Outcome
	Events         []models.ChangeEvent
	Records        []models.TariffRecord
	ProviderStatus map[string]models.OutcomeStatus
	Payload        models.NotificationPayload
	PayloadPath    string
	// Aborted is set when the run deadline or the caller cancelled the run.
	Aborted bool
	// StateError is set when the state file could not be saved.
	StateError error
}

// Pipeline checks every configured resource once per Run.
type Pipeline struct {
	cfg    *config.GlobalConfig
	deps   Deps
	logger zerolog.Logger
}

// New creates a pipeline.
func New(cfg *config.GlobalConfig, deps Deps, logger zerolog.Logger) (*Pipeline, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("pipeline: configuration is required")
	case deps.Planner == nil, deps.Fetcher == nil, deps.Store == nil, deps.Extractor == nil, deps.Classifier == nil:
		return nil, errors.New("pipeline: planner, fetcher, store, extractor and classifier are required")
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "Pipeline").Logger(),
	}, nil
}

// extractJob carries a new or changed resource to the extraction pool.
type extractJob struct {
	target fetcher.Target
	result *models.FetchResult
	eval   *changestore.Evaluation
}

// collector gathers the per-resource results of concurrent workers.
type collector struct {
	mu       sync.Mutex
	outcomes []models.Outcome
	events   []models.ChangeEvent
	records  []models.TariffRecord
	// planned holds the identities each provider resolved to this run.
	// Providers whose planning failed have no entry.
	planned map[string][]models.ResourceIdentity
	gone    map[string]struct{}
}

func (c *collector) outcome(o models.Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

func (c *collector) vanished(id models.ResourceIdentity) {
	c.mu.Lock()
	c.gone[id.Key()] = struct{}{}
	c.mu.Unlock()
}

// present returns the planned identities of provider that still exist.
func (c *collector) present(provider string) ([]models.ResourceIdentity, bool) {
	planned, ok := c.planned[provider]
	if !ok {
		return nil, false
	}
	out := make([]models.ResourceIdentity, 0, len(planned))
	for _, id := range planned {
		if _, gone := c.gone[id.Key()]; !gone {
			out = append(out, id)
		}
	}
	return out, true
}

func (c *collector) produced(event *models.ChangeEvent, records []models.TariffRecord) {
	c.mu.Lock()
	if event != nil {
		c.events = append(c.events, *event)
	}
	c.records = append(c.records, records...)
	c.mu.Unlock()
}

// Run checks the selected providers. Per-resource failures never fail the
// run; the returned error is only set for an unusable request.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	providers, err := p.selectProviders(opts.Providers)
	if err != nil {
		return nil, err
	}

	result := &RunResult{RunID: opts.RunID, StartedAt: time.Now().UTC()}
	col := &collector{
		planned: make(map[string][]models.ResourceIdentity),
		gone:    make(map[string]struct{}),
	}

	var targets []fetcher.Target
	for _, provider := range providers {
		planned, err := p.deps.Planner.Targets(provider)
		if err != nil {
			p.logger.Error().Err(err).Str("provider", provider.Name).Msg("Could not plan provider targets")
			col.outcome(models.Outcome{
				Identity: models.NewResourceIdentity(provider.Name, "planning", models.KindLocalFile),
				Status:   models.OutcomeFetchFailed,
				Error:    err.Error(),
			})
			continue
		}
		ids := make([]models.ResourceIdentity, 0, len(planned))
		for _, t := range planned {
			ids = append(ids, t.Identity)
		}
		col.planned[provider.Name] = ids
		targets = append(targets, planned...)
	}

	p.logger.Info().
		Str("run_id", opts.RunID).
		Int("providers", len(providers)).
		Int("targets", len(targets)).
		Msg("Run started")
	p.recordRunStart(ctx, result.RunID, result.StartedAt, len(targets))

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.SchedulerConfig.RunTimeout())
	defer cancel()

	p.process(runCtx, targets, col)

	result.Aborted = runCtx.Err() != nil
	if result.Aborted {
		p.logger.Warn().Err(runCtx.Err()).Msg("Run aborted before every resource was checked")
	} else {
		p.markMissing(providers, col)
	}

	if err := p.deps.Store.Save(); err != nil {
		p.logger.Error().Err(err).Msg("State file not saved")
		result.StateError = err
	}

	sortOutcomes(col.outcomes)
	sortRecords(col.records)
	result.Outcomes = col.outcomes
	result.Events = col.events
	result.Records = col.records
	result.ProviderStatus = providerStatuses(col.outcomes)
	result.FinishedAt = time.Now().UTC()

	p.handOff(ctx, result)
	p.notify(result)

	if p.deps.Limiter != nil {
		p.deps.Limiter.LogUsage("run_end")
	}
	p.logger.Info().
		Str("run_id", result.RunID).
		Int("outcomes", len(result.Outcomes)).
		Int("events", len(result.Events)).
		Int("records", len(result.Records)).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Run finished")
	return result, nil
}

func (p *Pipeline) selectProviders(names []string) ([]*config.ProviderConfig, error) {
	if len(names) == 0 {
		out := make([]*config.ProviderConfig, 0, len(p.cfg.Providers))
		for i := range p.cfg.Providers {
			out = append(out, &p.cfg.Providers[i])
		}
		return out, nil
	}

	var out []*config.ProviderConfig
	var unknown []string
	for _, name := range names {
		provider := p.cfg.Provider(strings.TrimSpace(name))
		if provider == nil {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, provider)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown provider(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// process runs the fetch pool and the extraction pool until every target
// has an outcome.
func (p *Pipeline) process(ctx context.Context, targets []fetcher.Target, col *collector) {
	fetchWorkers := p.cfg.SchedulerConfig.FetchWorkers
	if fetchWorkers <= 0 {
		fetchWorkers = config.DefaultFetchWorkers
	}
	extractWorkers := p.cfg.SchedulerConfig.ExtractWorkers
	if p.deps.Limiter != nil {
		extractWorkers = p.deps.Limiter.ExtractionWorkers(extractWorkers)
	}
	if extractWorkers <= 0 {
		extractWorkers = 1
	}

	targetCh := make(chan fetcher.Target, len(targets))
	for _, t := range targets {
		targetCh <- t
	}
	close(targetCh)

	extractCh := make(chan extractJob, fetchWorkers)

	var fetchWG sync.WaitGroup
	for i := 0; i < fetchWorkers; i++ {
		fetchWG.Add(1)
		go func() {
			defer fetchWG.Done()
			for target := range targetCh {
				p.fetchOne(ctx, target, col, extractCh)
			}
		}()
	}

	var extractWG sync.WaitGroup
	for i := 0; i < extractWorkers; i++ {
		extractWG.Add(1)
		go func() {
			defer extractWG.Done()
			for job := range extractCh {
				p.extractOne(ctx, job, col)
			}
		}()
	}

	fetchWG.Wait()
	close(extractCh)
	extractWG.Wait()
}

func (p *Pipeline) fetchOne(ctx context.Context, target fetcher.Target, col *collector, extractCh chan<- extractJob) {
	identity := target.Identity
	logger := p.logger.With().Str("identity", identity.Key()).Logger()

	res, err := p.deps.Fetcher.Fetch(ctx, identity, p.deps.Planner.StrategiesFor(target))
	if err != nil {
		logger.Warn().Err(err).Msg("Resource could not be retrieved, state left untouched")
		col.outcome(models.Outcome{Identity: identity, Status: models.OutcomeFetchFailed, Error: err.Error()})
		if identity.Kind == models.KindLocalFile && errors.Is(err, fs.ErrNotExist) {
			col.vanished(identity)
		}
		return
	}

	var modTime *time.Time
	if identity.Kind == models.KindLocalFile && !res.ModTime.IsZero() {
		mt := res.ModTime
		modTime = &mt
	}

	eval, err := p.deps.Store.Evaluate(identity, res.Content, modTime)
	if err != nil {
		logger.Error().Err(err).Msg("Resource could not be evaluated")
		col.outcome(models.Outcome{Identity: identity, Status: models.OutcomeFetchFailed, Strategy: res.Strategy, Error: err.Error()})
		return
	}

	if eval.Status == changestore.StatusUnchanged {
		p.deps.Store.Persist(eval, res.Content)
		logger.Debug().Str("strategy", res.Strategy).Msg("Resource unchanged")
		col.outcome(models.Outcome{Identity: identity, Status: models.OutcomeUnchanged, Strategy: res.Strategy})
		return
	}

	extractCh <- extractJob{target: target, result: res, eval: eval}
}

// extractOne extracts and classifies a new or changed resource. The state
// entry is only updated once extraction completed, so an aborted resource is
// detected again next run.
func (p *Pipeline) extractOne(ctx context.Context, job extractJob, col *collector) {
	identity := job.target.Identity
	logger := p.logger.With().Str("identity", identity.Key()).Logger()
	outcome := models.Outcome{Identity: identity, Strategy: job.result.Strategy}

	opts := extractor.Options{}
	if job.target.Provider != nil {
		opts.OCRLanguage = job.target.Provider.OCRLanguage
	}

	tokens, report, err := p.deps.Extractor.Extract(ctx, job.result.Content, job.result.ContentKind(), opts)
	if err != nil {
		logger.Warn().Err(err).Msg("Extraction aborted, state left untouched")
		outcome.Status = models.OutcomeFetchFailed
		outcome.Error = err.Error()
		col.outcome(outcome)
		return
	}

	event := p.deps.Store.Persist(job.eval, job.result.Content)

	if len(tokens) == 0 {
		logger.Info().Str("path", report.Path).Str("text_error", report.TextError).
			Str("ocr_error", report.OCRError).Msg("No numeric token found")
		outcome.Status = models.OutcomeExtractionEmpty
		outcome.Error = models.ErrExtractionEmpty.Error()
		col.produced(event, nil)
		col.outcome(outcome)
		return
	}

	pc := classifier.NewProviderContext(providerOrDefault(job.target), job.target.Resource, identity)
	classified := p.deps.Classifier.Normalize(tokens, pc)
	if classified.Empty() {
		logger.Info().Int("tokens", len(tokens)).Int("dropped", len(classified.Dropped)).
			Msg("No coherent data found")
		outcome.Status = models.OutcomeClassificationEmpty
		outcome.Error = models.ErrClassificationEmpty.Error()
		col.produced(event, nil)
		col.outcome(outcome)
		return
	}

	outcome.Status = models.OutcomeUpdated
	if job.eval.Status == changestore.StatusFirstObservation {
		outcome.Status = models.OutcomeFirstObservation
	}
	outcome.RecordCount = len(classified.Records)

	logger.Info().
		Str("status", string(outcome.Status)).
		Str("path", report.Path).
		Int("tokens", len(tokens)).
		Int("records", outcome.RecordCount).
		Int("dropped", len(classified.Dropped)).
		Msg("Resource extracted")
	col.produced(event, classified.Records)
	col.outcome(outcome)
}

// markMissing flags tracked local files that were neither planned this run
// nor readable because they no longer exist. Providers whose planning failed
// are skipped.
func (p *Pipeline) markMissing(providers []*config.ProviderConfig, col *collector) {
	byKey := make(map[string]int, len(col.outcomes))
	for i, o := range col.outcomes {
		byKey[o.Identity.Key()] = i
	}

	for _, provider := range providers {
		present, ok := col.present(provider.Name)
		if !ok {
			continue
		}
		for _, id := range p.deps.Store.MarkMissing(provider.Name, present) {
			if i, ok := byKey[id.Key()]; ok {
				col.outcomes[i].Status = models.OutcomeMissing
				continue
			}
			col.outcomes = append(col.outcomes, models.Outcome{
				Identity: id,
				Status:   models.OutcomeMissing,
				Error:    "local file no longer present",
			})
		}
	}
}

func (p *Pipeline) recordRunStart(ctx context.Context, runID string, startedAt time.Time, resources int) {
	if runID == "" {
		return
	}
	for _, sink := range p.deps.Sinks {
		if history, ok := sink.(models.RunHistory); ok {
			if err := history.RecordRunStart(ctx, runID, startedAt, resources); err != nil {
				p.logger.Error().Err(err).Msg("Run start not recorded")
			}
		}
	}
}

// handOff gives the records and outcomes to the storage collaborators. It
// uses the caller context since the run deadline may already have passed.
func (p *Pipeline) handOff(ctx context.Context, result *RunResult) {
	for _, sink := range p.deps.Sinks {
		if err := sink.StoreRecords(ctx, result.RunID, result.Records); err != nil {
			p.logger.Error().Err(err).Msg("Records not handed off to storage")
		}
		if history, ok := sink.(models.RunHistory); ok && result.RunID != "" {
			if err := history.RecordRunCompletion(ctx, result.RunID, result.FinishedAt, result.Outcomes); err != nil {
				p.logger.Error().Err(err).Msg("Run completion not recorded")
			}
		}
	}
}

func (p *Pipeline) notify(result *RunResult) {
	payload := notifier.Summarize(result.Events, result.Records, result.Outcomes)
	if p.deps.Notifier == nil {
		payload.RunID = result.RunID
		result.Payload = payload
		return
	}
	result.Payload = p.deps.Notifier.Prepare(result.RunID, payload)
	path, err := p.deps.Notifier.Publish(result.Payload)
	if err != nil {
		p.logger.Error().Err(err).Msg("Notification payload not written")
		return
	}
	result.PayloadPath = path
}

func providerOrDefault(target fetcher.Target) *config.ProviderConfig {
	if target.Provider != nil {
		return target.Provider
	}
	return &config.ProviderConfig{Name: target.Identity.Provider}
}

func providerStatuses(outcomes []models.Outcome) map[string]models.OutcomeStatus {
	grouped := make(map[string][]models.Outcome)
	for _, o := range outcomes {
		grouped[o.Identity.Provider] = append(grouped[o.Identity.Provider], o)
	}
	statuses := make(map[string]models.OutcomeStatus, len(grouped))
	for provider, list := range grouped {
		statuses[provider] = models.ProviderStatus(list)
	}
	return statuses
}

func sortOutcomes(outcomes []models.Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Identity.Key() < outcomes[j].Identity.Key()
	})
}

func sortRecords(records []models.TariffRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Provider != records[j].Provider {
			return records[i].Provider < records[j].Provider
		}
		return records[i].Source.Key() < records[j].Source.Key()
	})
}

package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"imgharvest/internal/downloader"
	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/extract"
	"imgharvest/pkg/fetcher"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/storage"
	"imgharvest/pkg/throttle"
)

// Pipeline fetches a listing page, extracts its image records and downloads
// them one by one. A Pipeline may run many times; runs share no state
// beyond the collaborators passed to New.
type Pipeline struct {
	cfg       config.PipelineConfig
	fetcher   Fetcher
	extractor Extractor
	store     Store
	throttle  Throttle
	logger    logger.Logger
	onState   func(Transition)
	onOutcome func(Outcome)
	newRunID  func() string

	mu    sync.Mutex
	state State
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithStateHook registers a function called on every state transition.
// It is always called from a single goroutine per run.
func WithStateHook(fn func(Transition)) Option {
	return func(p *Pipeline) {
		p.onState = fn
	}
}

// WithOutcomeHook registers a function called once per record as soon as
// its outcome is known, including records canceled before they started.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(p *Pipeline) {
		p.onOutcome = fn
	}
}

// WithRunID overrides run ID generation
func WithRunID(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newRunID = fn
		}
	}
}

// New creates a pipeline from explicit collaborators
func New(cfg config.PipelineConfig, f Fetcher, e Extractor, s Store, t Throttle, opts ...Option) *Pipeline {
	if t == nil {
		t = throttle.New()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	p := &Pipeline{
		cfg:       cfg,
		fetcher:   f,
		extractor: e,
		store:     s,
		throttle:  t,
		logger:    logger.GetLogger(),
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig wires the HTTP fetcher, goquery extractor, file store and
// throttle described by cfg.
func NewFromConfig(cfg *config.Config, log logger.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	pc := cfg.PipelineConfig()

	client := fetcher.NewClientFromConfig(cfg.HTTP, log)

	ex := extract.New(cfg.Extract, extract.WithBaseURL(pc.BaseURL), extract.WithLogger(log))
	th := throttle.New(throttle.WithLimiter(throttle.PerMinute(pc.RequestsPerMinute)))

	opts = append([]Option{WithLogger(log)}, opts...)
	return New(pc, client, ex, storage.NewStore(), th, opts...)
}

// State returns the state of the most recent run
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run executes FetchingListing, Extracting and Downloading against BaseURL.
// The returned error is the run-level error and is also stored in the
// report; per-record failures never abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := p.newReport()
	log := p.logger.WithFields(map[string]interface{}{
		"run_id":   report.RunID,
		"base_url": p.cfg.BaseURL,
	})

	p.transition(report, StateFetchingListing, -1)
	log.Info("Fetching listing")

	html, err := p.fetcher.FetchText(ctx, p.cfg.BaseURL)
	if err != nil {
		return p.fail(report, log, errs.Fetch(p.cfg.BaseURL, err))
	}

	p.transition(report, StateExtracting, -1)
	records, err := p.extractor.Extract(html)
	if err != nil {
		return p.fail(report, log, err)
	}
	log.InfoWithFields("Extracted records", map[string]interface{}{
		"records": len(records),
	})

	report.Records = records
	p.download(ctx, report, log)
	return p.complete(report, log), nil
}

// RunRecords downloads records without fetching a listing. It is the
// entry point for retrying the failed records of an earlier report.
func (p *Pipeline) RunRecords(ctx context.Context, records []ImageRecord) (*Report, error) {
	report := p.newReport()
	report.Records = append([]ImageRecord(nil), records...)
	log := p.logger.WithField("run_id", report.RunID)

	p.download(ctx, report, log)
	return p.complete(report, log), nil
}

func (p *Pipeline) newReport() *Report {
	return &Report{
		RunID:     p.newRunID(),
		BaseURL:   p.cfg.BaseURL,
		Records:   []ImageRecord{},
		Outcomes:  []Outcome{},
		StartedAt: time.Now(),
	}
}

func (p *Pipeline) fail(report *Report, log logger.Logger, err error) (*Report, error) {
	report.Err = err
	log.WithError(err).Error("Harvest run failed")
	p.complete(report, log)
	return report, err
}

func (p *Pipeline) complete(report *Report, log logger.Logger) *Report {
	report.FinishedAt = time.Now()
	p.transition(report, StateCompleted, -1)
	logger.LogRunSummary(log, report.RunID, len(report.Records), report.Succeeded(), report.Failed(), report.Elapsed())
	return report
}

func (p *Pipeline) transition(report *Report, s State, index int) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()

	t := Transition{RunID: report.RunID, State: s, Index: index, Total: len(report.Records)}
	p.logger.DebugWithFields("Pipeline state changed", map[string]interface{}{
		"run_id": report.RunID,
		"state":  t.String(),
	})
	if p.onState != nil {
		p.onState(t)
	}
}

// download fills report.Outcomes with exactly one outcome per record
func (p *Pipeline) download(ctx context.Context, report *Report, log logger.Logger) {
	report.Outcomes = make([]Outcome, len(report.Records))
	if len(report.Records) == 0 {
		return
	}

	if p.cfg.Concurrency > 1 {
		p.downloadConcurrent(ctx, report, log)
		return
	}

	for i, record := range report.Records {
		if i > 0 {
			if err := p.throttle.Wait(ctx, p.cfg.MaxDelay); err != nil {
				p.cancelRemaining(report, i, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			p.cancelRemaining(report, i, err)
			break
		}

		p.transition(report, StateDownloading, i)
		job := downloader.Job{Index: i, URL: record.SourceURL}
		// The in-flight item is never cut short by cancellation
		result := downloader.Download(context.WithoutCancel(ctx), p.fetcher, p.store, p.cfg.OutputDir, job)
		report.Outcomes[i] = p.record(log, record, result)
	}
}

// downloadConcurrent runs the batch through the worker pool. Each result
// lands in its record's slot, so the report keeps batch order.
func (p *Pipeline) downloadConcurrent(ctx context.Context, report *Report, log logger.Logger) {
	pool := downloader.NewWorkerPool(ctx, downloader.Config{
		Workers:   p.cfg.Concurrency,
		Client:    p.fetcher,
		Store:     p.store,
		OutputDir: p.cfg.OutputDir,
		Throttle:  p.throttle,
		MaxDelay:  p.cfg.MaxDelay,
		Logger:    p.logger,
	})
	pool.Start()

	go func() {
		for i, record := range report.Records {
			if err := pool.Submit(downloader.Job{Index: i, URL: record.SourceURL}); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	filled := make([]bool, len(report.Records))
	for result := range pool.Results() {
		i := result.Job.Index
		p.transition(report, StateDownloading, i)
		report.Outcomes[i] = p.record(log, report.Records[i], result)
		filled[i] = true
	}

	for i, ok := range filled {
		if !ok {
			report.Outcomes[i] = canceledOutcome(i, report.Records[i], ctx.Err())
			p.emit(report.Outcomes[i])
		}
	}
}

func (p *Pipeline) record(log logger.Logger, record ImageRecord, result downloader.Result) Outcome {
	outcome := Outcome{
		Index:    result.Job.Index,
		Record:   record,
		Path:     result.Path,
		Err:      result.Err,
		Bytes:    result.Bytes,
		Duration: result.Duration,
		Status:   StatusSuccess,
	}
	if result.Err != nil {
		outcome.Status = StatusFailure
	}

	logger.LogDownload(log, outcome.Index, record.SourceURL, outcome.Path, outcome.Err)
	p.emit(outcome)
	return outcome
}

func (p *Pipeline) emit(o Outcome) {
	if p.onOutcome != nil {
		p.onOutcome(o)
	}
}

func (p *Pipeline) cancelRemaining(report *Report, from int, err error) {
	for i := from; i < len(report.Records); i++ {
		report.Outcomes[i] = canceledOutcome(i, report.Records[i], err)
		p.emit(report.Outcomes[i])
	}
	p.logger.WarnWithFields("Run canceled before all records were attempted", map[string]interface{}{
		"run_id":  report.RunID,
		"skipped": len(report.Records) - from,
	})
}

func canceledOutcome(i int, record ImageRecord, err error) Outcome {
	return Outcome{
		Index:  i,
		Record: record,
		Status: StatusFailure,
		Err:    errs.Canceled(err),
	}
}

package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/fetcher"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/storage"
)

// Job is one image to download. Index is the record's slot in the batch.
type Job struct {
	Index int
	URL   string
}

// Result represents the result of a download job
type Result struct {
	Job      Job
	Path     string
	Err      error
	Bytes    int64
	Duration time.Duration
	Worker   int
}

// Success reports whether the image was stored
func (r Result) Success() bool {
	return r.Err == nil
}

// StreamFetcher opens an image body
type StreamFetcher interface {
	FetchStream(ctx context.Context, url string) (*fetcher.Stream, error)
}

// ImageStore persists an image body
type ImageStore interface {
	Save(r io.Reader, dir, ext string) (string, error)
}

// Waiter delays the next request
type Waiter interface {
	Wait(ctx context.Context, max time.Duration) error
}

// Download fetches job.URL and saves it under dir. Failures are returned in
// Result.Err, never as a panic or a partial file.
func Download(ctx context.Context, f StreamFetcher, s ImageStore, dir string, job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := ctx.Err(); err != nil {
		result.Err = errs.Canceled(err)
		return result
	}

	stream, err := f.FetchStream(ctx, job.URL)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}
	defer stream.Close()

	counter := &countingReader{r: stream}
	path, err := s.Save(counter, dir, storage.ExtensionFor(job.URL, stream.ContentType))
	result.Bytes = counter.n
	result.Duration = time.Since(start)
	if counter.err != nil {
		// The body broke off mid-transfer; the store only saw the symptom
		result.Err = errs.Network("fetch stream", job.URL, 0, counter.err)
		return result
	}
	if err != nil {
		result.Err = err
		return result
	}

	result.Path = path
	return result
}

// countingReader counts bytes and keeps the first read error other than EOF
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	return n, err
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      StreamFetcher
	store       ImageStore
	outputDir   string
	throttle    Waiter
	maxDelay    time.Duration
	logger      logger.Logger
}

// Config groups the collaborators shared by all workers
type Config struct {
	Workers   int
	Client    StreamFetcher
	Store     ImageStore
	OutputDir string
	Throttle  Waiter
	MaxDelay  time.Duration
	Logger    logger.Logger
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(ctx context.Context, cfg Config) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &WorkerPool{
		numWorkers:  workers,
		jobQueue:    make(chan Job, workers*2), // Buffer size = 2x workers
		resultQueue: make(chan Result, workers),
		ctx:         ctx,
		cancel:      cancel,
		client:      cfg.Client,
		store:       cfg.Store,
		outputDir:   cfg.OutputDir,
		throttle:    cfg.Throttle,
		maxDelay:    cfg.MaxDelay,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish, then closes Results.
// Every submitted job produces exactly one result before Results is closed.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It must be drained until closed.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	first := true
	for job := range wp.jobQueue {
		result := wp.processJob(job, id, first)
		first = false
		wp.resultQueue <- result
	}
}

// processJob throttles (except before a worker's first job) and downloads
func (wp *WorkerPool) processJob(job Job, workerID int, first bool) Result {
	if !first && wp.throttle != nil {
		if err := wp.throttle.Wait(wp.ctx, wp.maxDelay); err != nil {
			return Result{Job: job, Err: errs.Canceled(err), Worker: workerID}
		}
	}

	if err := wp.ctx.Err(); err != nil {
		return Result{Job: job, Err: errs.Canceled(err), Worker: workerID}
	}

	// Cancellation stops the queue, not a download already in progress
	result := Download(context.WithoutCancel(wp.ctx), wp.client, wp.store, wp.outputDir, job)
	result.Worker = workerID

	fields := map[string]interface{}{
		"worker_id": workerID,
		"index":     job.Index,
		"duration":  result.Duration,
	}
	if result.Err != nil {
		fields["error"] = result.Err.Error()
		wp.logger.DebugWithFields("Worker finished job with error", fields)
	} else {
		fields["bytes"] = result.Bytes
		wp.logger.DebugWithFields("Worker completed job", fields)
	}

	return result
}

// NumWorkers returns the number of workers
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/extract"
	"imgharvest/pkg/fetcher"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/retry"
	"imgharvest/pkg/storage"
)

// recordingThrottle counts waits and optionally runs a hook on each one
type recordingThrottle struct {
	mu     sync.Mutex
	maxes  []time.Duration
	onWait func()
}

func (r *recordingThrottle) Wait(ctx context.Context, max time.Duration) error {
	r.mu.Lock()
	r.maxes = append(r.maxes, max)
	hook := r.onWait
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (r *recordingThrottle) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.maxes)
}

// site serves a listing at / and images under /img/
type site struct {
	listing string
	missing map[string]bool
}

func (s *site) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, s.listing)
	case strings.HasPrefix(r.URL.Path, "/img/"):
		if s.missing[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprintf(w, "jpeg bytes of %s", r.URL.Path)
	default:
		http.NotFound(w, r)
	}
}

func imageCard(title, img string) string {
	if img == "" {
		return fmt.Sprintf(`<div class="mmComponent_images_1"><p class="newsintroduction">%s</p></div>`, title)
	}
	return fmt.Sprintf(`<div class="mmComponent_images_1"><p class="newsintroduction">%s</p><img src="%s"></div>`, title, img)
}

func listing(cards ...string) string {
	return "<html><body>" + strings.Join(cards, "") + "</body></html>"
}

type harness struct {
	server   *httptest.Server
	pipeline *Pipeline
	throttle *recordingThrottle
	outDir   string
	log      *logger.TestLogger
	states   []Transition
}

func newHarness(t *testing.T, s *site, concurrency int) *harness {
	t.Helper()

	h := &harness{
		server:   httptest.NewServer(http.HandlerFunc(s.handler)),
		throttle: &recordingThrottle{},
		outDir:   t.TempDir(),
		log:      logger.NewTestLogger(),
	}
	t.Cleanup(h.server.Close)

	cfg := config.PipelineConfig{
		BaseURL:     h.server.URL + "/",
		OutputDir:   h.outDir,
		MaxDelay:    250 * time.Millisecond,
		Concurrency: concurrency,
	}
	ex := extract.New(config.DefaultConfig().Extract, extract.WithBaseURL(cfg.BaseURL), extract.WithLogger(h.log))

	h.pipeline = New(cfg, fetcher.NewClient(5*time.Second, h.log), ex, storage.NewStore(), h.throttle,
		WithLogger(h.log),
		WithRunID(func() string { return "run-test" }),
		WithStateHook(func(tr Transition) { h.states = append(h.states, tr) }),
	)
	return h
}

func assertInvariant(t *testing.T, report *Report) {
	t.Helper()
	require.Len(t, report.Outcomes, len(report.Records))
	for i, o := range report.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, report.Records[i], o.Record)
	}
}

func TestRunListingFetchFails(t *testing.T) {
	h := newHarness(t, &site{}, 1)
	h.server.Close()

	report, err := h.pipeline.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)

	assert.True(t, errs.Is(err, errs.KindFetch))
	assert.True(t, errs.Is(err, errs.KindNetwork))
	assert.Equal(t, err, report.Err)
	assert.Empty(t, report.Records)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, StateCompleted, h.pipeline.State())
	assert.Equal(t, []State{StateFetchingListing, StateCompleted}, statesOf(h.states))
}

func TestRunListingNon2xx(t *testing.T) {
	h := newHarness(t, &site{}, 1)
	h.pipeline.cfg.BaseURL = h.server.URL + "/nope"

	report, err := h.pipeline.Run(context.Background())
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindFetch, e.Kind)
	assert.Empty(t, report.Outcomes)
}

func TestRunSkipsCardWithoutImage(t *testing.T) {
	h := newHarness(t, &site{listing: listing(
		imageCard("one", "/img/1.jpg!small"),
		imageCard("broken", ""),
		imageCard("two", "/img/2.jpg"),
	)}, 1)

	report, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assertInvariant(t, report)

	require.Len(t, report.Records, 2)
	assert.Equal(t, h.server.URL+"/img/1.jpg", report.Records[0].SourceURL)
	assert.Equal(t, 2, report.Succeeded())
	assert.Zero(t, report.Failed())

	first, second := report.Outcomes[0], report.Outcomes[1]
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, StatusSuccess, second.Status)
	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, ".jpg", first.Path[len(first.Path)-4:])

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes of /img/1.jpg", string(data))
	assert.Equal(t, int64(len(data)), first.Bytes)

	// One delay between two downloads, none after the last
	assert.Equal(t, 1, h.throttle.Calls())
	assert.Equal(t, 250*time.Millisecond, h.throttle.maxes[0])
}

func TestRunContinuesAfterFailure(t *testing.T) {
	h := newHarness(t, &site{
		listing: listing(imageCard("gone", "/img/gone.jpg"), imageCard("ok", "/img/ok.jpg")),
		missing: map[string]bool{"/img/gone.jpg": true},
	}, 1)

	report, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assertInvariant(t, report)

	require.Len(t, report.Outcomes, 2)
	failed := report.Outcomes[0]
	assert.Equal(t, StatusFailure, failed.Status)
	assert.Empty(t, failed.Path)
	assert.Equal(t, errs.KindNetwork, failed.Kind())
	assert.Contains(t, failed.Reason(), "404")

	assert.Equal(t, StatusSuccess, report.Outcomes[1].Status)
	assert.FileExists(t, report.Outcomes[1].Path)

	assert.Equal(t, []ImageRecord{report.Records[0]}, report.FailedRecords())
	assert.Len(t, h.log.GetMessagesByLevel("WARN"), 2, "404 request and failed download are logged")
}

func TestRunEmptyListing(t *testing.T) {
	h := newHarness(t, &site{listing: "<html><body><p>nothing here</p></body></html>"}, 1)

	report, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Records)
	assert.Empty(t, report.Outcomes)
	assert.Nil(t, report.Err)
	assert.Equal(t, []State{StateFetchingListing, StateExtracting, StateCompleted}, statesOf(h.states))
}

func TestRunStateTransitions(t *testing.T) {
	h := newHarness(t, &site{listing: listing(
		imageCard("a", "/img/a.jpg"),
		imageCard("b", "/img/b.jpg"),
		imageCard("c", "/img/c.jpg"),
	)}, 1)

	_, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)

	var got []string
	for _, tr := range h.states {
		assert.Equal(t, "run-test", tr.RunID)
		got = append(got, tr.String())
	}
	assert.Equal(t, []string{
		"fetching_listing",
		"extracting",
		"downloading(0)",
		"downloading(1)",
		"downloading(2)",
		"completed",
	}, got)
	assert.True(t, h.log.HasMessage("Harvest run completed"))
}

func TestRunCanceledBetweenItems(t *testing.T) {
	h := newHarness(t, &site{listing: listing(
		imageCard("a", "/img/a.jpg"),
		imageCard("b", "/img/b.jpg"),
		imageCard("c", "/img/c.jpg"),
	)}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.throttle.onWait = cancel

	report, err := h.pipeline.Run(ctx)
	require.NoError(t, err)
	assertInvariant(t, report)

	assert.Equal(t, StatusSuccess, report.Outcomes[0].Status)
	for _, o := range report.Outcomes[1:] {
		assert.Equal(t, StatusFailure, o.Status)
		assert.Equal(t, errs.KindCanceled, o.Kind())
		assert.ErrorIs(t, o.Err, context.Canceled)
	}

	entries, err := os.ReadDir(h.outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial files are left behind")
}

func TestRunRecords(t *testing.T) {
	h := newHarness(t, &site{missing: map[string]bool{"/img/bad.jpg": true}}, 1)

	records := []ImageRecord{
		{Title: "bad", SourceURL: h.server.URL + "/img/bad.jpg"},
		{Title: "good", SourceURL: h.server.URL + "/img/good.jpg"},
	}

	report, err := h.pipeline.RunRecords(context.Background(), records)
	require.NoError(t, err)
	assertInvariant(t, report)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, records[:1], report.FailedRecords())
	assert.NotContains(t, statesOf(h.states), StateFetchingListing)

	records[0].Title = "mutated"
	assert.Equal(t, "bad", report.Records[0].Title, "report keeps its own copy")
}

func TestRunConcurrentKeepsSlots(t *testing.T) {
	var cards []string
	missing := map[string]bool{}
	for i := 0; i < 8; i++ {
		cards = append(cards, imageCard(fmt.Sprintf("t%d", i), fmt.Sprintf("/img/%d.jpg", i)))
		if i%3 == 0 {
			missing[fmt.Sprintf("/img/%d.jpg", i)] = true
		}
	}
	h := newHarness(t, &site{listing: listing(cards...), missing: missing}, 3)

	report, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	assertInvariant(t, report)

	paths := map[string]bool{}
	for i, o := range report.Outcomes {
		if i%3 == 0 {
			assert.Equal(t, StatusFailure, o.Status, "record %d", i)
			continue
		}
		require.Equal(t, StatusSuccess, o.Status, "record %d: %v", i, o.Err)
		data, err := os.ReadFile(o.Path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("jpeg bytes of /img/%d.jpg", i), string(data))
		assert.False(t, paths[o.Path])
		paths[o.Path] = true
	}
	assert.Equal(t, 5, report.Succeeded())
	assert.Equal(t, 3, report.Failed())
}

func TestRunConcurrentCanceled(t *testing.T) {
	h := newHarness(t, &site{listing: listing(
		imageCard("a", "/img/a.jpg"),
		imageCard("b", "/img/b.jpg"),
		imageCard("c", "/img/c.jpg"),
		imageCard("d", "/img/d.jpg"),
	)}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.throttle.onWait = cancel

	report, err := h.pipeline.Run(ctx)
	require.NoError(t, err)
	assertInvariant(t, report)

	for _, o := range report.Outcomes {
		if o.Status == StatusFailure {
			assert.Equal(t, errs.KindCanceled, o.Kind())
		}
	}
	assert.GreaterOrEqual(t, report.Failed(), 1)
}

func TestNewFromConfig(t *testing.T) {
	s := &site{listing: listing(imageCard("a", "/img/a.jpg"))}
	server := httptest.NewServer(http.HandlerFunc(s.handler))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Pipeline.BaseURL = server.URL + "/"
	cfg.Pipeline.OutputDir = t.TempDir()
	cfg.Pipeline.MaxDelay = 0
	cfg.Pipeline.RequestsPerMinute = 60

	report, err := NewFromConfig(cfg, logger.NewTestLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func statesOf(ts []Transition) []State {
	out := make([]State, 0, len(ts))
	for _, tr := range ts {
		out = append(out, tr.State)
	}
	return out
}

func TestRunOutcomeHook(t *testing.T) {
	h := newHarness(t, &site{listing: listing(
		imageCard("a", "/img/a.jpg"),
		imageCard("b", "/img/b.jpg"),
		imageCard("c", "/img/c.jpg"),
	)}, 1)

	var seen []Outcome
	h.pipeline.onOutcome = func(o Outcome) { seen = append(seen, o) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.throttle.onWait = cancel

	report, err := h.pipeline.Run(ctx)
	require.NoError(t, err)

	require.Len(t, seen, 3, "canceled records are reported too")
	assert.Equal(t, report.Outcomes, seen)

	for _, tr := range h.states {
		if tr.State == StateDownloading {
			assert.Equal(t, 3, tr.Total)
		}
	}
}

func TestRunListingParseErrorEndsRun(t *testing.T) {
	h := newHarness(t, &site{listing: listing(imageCard("a", "/img/a.jpg"))}, 1)

	cfg := config.DefaultConfig().Extract
	cfg.CardSelector = "div["
	h.pipeline.extractor = extract.New(cfg, extract.WithLogger(h.log))

	report, err := h.pipeline.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)

	assert.True(t, errs.Is(err, errs.KindParse))
	assert.Equal(t, err, report.Err)
	assert.Empty(t, report.Records)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, h.throttle.Calls())
	assert.Equal(t, []State{StateFetchingListing, StateExtracting, StateCompleted}, statesOf(h.states))

	entries, err := os.ReadDir(h.outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is downloaded")
}

func TestRunStalledImageBodyIsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	log := logger.NewTestLogger()
	outDir := t.TempDir()
	cfg := config.PipelineConfig{BaseURL: server.URL + "/", OutputDir: outDir}
	p := New(cfg, fetcher.NewClient(200*time.Millisecond, log), extract.New(config.DefaultConfig().Extract),
		storage.NewStore(), &recordingThrottle{}, WithLogger(log))

	report, err := p.RunRecords(context.Background(), []ImageRecord{
		{Title: "slow", SourceURL: server.URL + "/img/slow.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)

	o := report.Outcomes[0]
	assert.Equal(t, StatusFailure, o.Status)
	assert.Equal(t, errs.KindNetwork, o.Kind())
	assert.False(t, errs.Is(o.Err, errs.KindStorage))
	assert.True(t, retry.DefaultRetryIf(o.Err), "timed out downloads can be retried")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file is removed")
}

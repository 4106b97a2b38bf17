package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

func newRetryPipeline(t *testing.T, handler http.HandlerFunc) (*Pipeline, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewTestLogger()
	cfg := config.PipelineConfig{BaseURL: server.URL + "/", OutputDir: t.TempDir()}
	p := New(cfg, fetcher.NewClient(5*time.Second, log), extract.New(config.DefaultConfig().Extract),
		storage.NewStore(), &recordingThrottle{}, WithLogger(log))
	return p, server.URL
}

func fastRetry(attempts int) *retry.Config {
	return &retry.Config{
		MaxAttempts: attempts,
		Schedule:    retry.Fixed{Interval: time.Millisecond},
	}
}

func TestRetryFailedRecovers(t *testing.T) {
	var flaky int32
	p, base := newRetryPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/flaky.png" && atomic.AddInt32(&flaky, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "png")
	})

	records := []ImageRecord{
		{Title: "stable", SourceURL: base + "/stable.png"},
		{Title: "flaky", SourceURL: base + "/flaky.png"},
	}
	report, err := p.RunRecords(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed())

	retried, err := p.RetryFailed(context.Background(), report, fastRetry(5))
	require.NoError(t, err)
	assert.Equal(t, 2, retried.Succeeded())
	assert.Equal(t, 1, retried.Outcomes[1].Index)
	assert.Equal(t, report.Outcomes[0], retried.Outcomes[0], "successful outcomes are kept")

	assert.Equal(t, StatusFailure, report.Outcomes[1].Status, "original report is untouched")
}

func TestRetryFailedSkipsPermanentFailures(t *testing.T) {
	var hits int32
	p, base := newRetryPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	})

	report, err := p.RunRecords(context.Background(), []ImageRecord{{SourceURL: base + "/gone.png"}})
	require.NoError(t, err)

	retried, err := p.RetryFailed(context.Background(), report, fastRetry(5))
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Failed())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "404 is never retried")
}

func TestRetryFailedGivesUp(t *testing.T) {
	p, base := newRetryPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	report, err := p.RunRecords(context.Background(), []ImageRecord{{SourceURL: base + "/a.png"}, {SourceURL: base + "/b.png"}})
	require.NoError(t, err)

	retried, err := p.RetryFailed(context.Background(), report, fastRetry(2))
	require.Error(t, err)

	var pending *PendingError
	require.True(t, errors.As(err, &pending))
	assert.Equal(t, 2, pending.Remaining)
	assert.True(t, errs.Is(err, errs.KindNetwork))
	assert.Len(t, retried.Outcomes, 2)
}

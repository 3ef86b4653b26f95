package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAcquisitionMetrics(t *testing.T) {
	completed := testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("completed"))
	failed := testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("failed"))
	bytes := testutil.ToFloat64(DownloadBytesTotal)

	RecordAcquisitionComplete(3*time.Second, 2048)
	RecordAcquisitionFailed("resolution")

	if got := testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("completed")); got != completed+1 {
		t.Errorf("completed = %v, want %v", got, completed+1)
	}
	if got := testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("failed")); got != failed+1 {
		t.Errorf("failed = %v, want %v", got, failed+1)
	}
	if got := testutil.ToFloat64(DownloadBytesTotal); got != bytes+2048 {
		t.Errorf("bytes = %v, want %v", got, bytes+2048)
	}
}

func TestSetActiveJobs(t *testing.T) {
	SetActiveJobs(4)
	if got := testutil.ToFloat64(ActiveJobs); got != 4 {
		t.Errorf("ActiveJobs = %v, want 4", got)
	}
	SetActiveJobs(0)
	if got := testutil.ToFloat64(ActiveJobs); got != 0 {
		t.Errorf("ActiveJobs = %v, want 0", got)
	}
}

func TestRecordCounters(t *testing.T) {
	attempts := testutil.ToFloat64(DownloadAttemptsTotal.WithLabelValues("retry"))
	plays := testutil.ToFloat64(PlaybackEventsTotal.WithLabelValues("play"))
	errs := testutil.ToFloat64(ErrorsTotal.WithLabelValues("transfer"))

	RecordAttempt("retry")
	RecordPlaybackEvent("play")
	RecordError("transfer")

	if got := testutil.ToFloat64(DownloadAttemptsTotal.WithLabelValues("retry")); got != attempts+1 {
		t.Errorf("attempts = %v, want %v", got, attempts+1)
	}
	if got := testutil.ToFloat64(PlaybackEventsTotal.WithLabelValues("play")); got != plays+1 {
		t.Errorf("play events = %v, want %v", got, plays+1)
	}
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("transfer")); got != errs+1 {
		t.Errorf("errors = %v, want %v", got, errs+1)
	}
}

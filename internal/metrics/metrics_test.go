package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if runsTotal == nil || stageDurationSeconds == nil || services == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveRunAndSuccess(t *testing.T) {
	Init()

	before := testutil.ToFloat64(runsTotal.WithLabelValues("success"))
	ObserveRun("success")
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("runs_total{status=success} = %f, want %f", got, before+1)
	}

	at := time.Unix(1715600000, 0)
	ObserveSuccess(3, 2048, 42, at)
	if got := testutil.ToFloat64(services); got != 3 {
		t.Errorf("services = %f, want 3", got)
	}
	if got := testutil.ToFloat64(downloadBytes); got != 2048 {
		t.Errorf("download_bytes = %f, want 2048", got)
	}
	if got := testutil.ToFloat64(changeNumber); got != 42 {
		t.Errorf("change_number = %f, want 42", got)
	}
	if got := testutil.ToFloat64(lastSuccessTimestamp); got != 1715600000 {
		t.Errorf("last_success_timestamp = %f, want 1715600000", got)
	}
}

func TestObserveStage(t *testing.T) {
	Init()

	ObserveStage("LOCATED", 150*time.Millisecond)
	if val := testutil.CollectAndCount(stageDurationSeconds); val <= 0 {
		t.Errorf("Expected stageDurationSeconds to be observed, got %d", val)
	}
}

func TestWriteTextfile(t *testing.T) {
	Init()
	ObserveRun("failure")

	path := filepath.Join(t.TempDir(), "servicetags.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `servicetags_runs_total{status="failure"}`) {
		t.Errorf("textfile missing runs_total sample:\n%s", data)
	}
}

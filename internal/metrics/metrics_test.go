package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetIsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Error("expected the same instance")
	}
}

func TestSnapshotCopiesCounters(t *testing.T) {
	m := Get()
	before := m.Snapshot()

	m.RecordRow()
	m.RecordRow()
	m.RecordFatalRow()
	m.RecordCategory("plain")
	m.RecordAnomaly("unknown_special_type")
	m.RecordRun(250*time.Millisecond, 2)

	after := m.Snapshot()
	if after.RowsRead-before.RowsRead != 2 {
		t.Errorf("expected 2 more rows, got %d", after.RowsRead-before.RowsRead)
	}
	if after.FatalRows-before.FatalRows != 1 {
		t.Errorf("expected 1 more fatal row, got %d", after.FatalRows-before.FatalRows)
	}
	if after.Events["plain"]-before.Events["plain"] != 1 {
		t.Error("expected the plain category to grow by 1")
	}
	if after.LastRunRows != 2 || after.LastRunDuration != 250*time.Millisecond {
		t.Errorf("unexpected last run: %d rows in %v", after.LastRunRows, after.LastRunDuration)
	}

	// The snapshot must not alias the live maps
	after.Events["plain"] = -1
	if m.CategoryCount("plain") < 0 {
		t.Error("expected the snapshot to be a copy")
	}
}

func TestHandlerExposition(t *testing.T) {
	m := Get()
	m.RecordAnomaly("unhandled_redirect")
	m.RecordHTTPRequest("/api/report", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("unexpected Content-Type %s", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"cdrstats_rows_read_total ",
		`cdrstats_anomalies_total{kind="unhandled_redirect"} `,
		`cdrstats_http_requests_total{endpoint="/api/report",status="200"} `,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition:\n%s", want, body)
		}
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

const sampleLogs = `{"level":"info","msg":"observability.event","event.name":"kanban.board.request","event.domain":"kanban.api","severity_text":"INFO","severity_number":9,"attributes":{"http.route":"/api/board/tasks","http.status_code":200,"kanban.board.total_ms":12.5,"kanban.board.auth_ms":1.5,"kanban.board.session_ms":4,"kanban.board.tasks":3,"kanban.board.changed":true}}
api-1  | {"level":"warning","msg":"observability.event","event.name":"kanban.board.request","event.domain":"kanban.api","severity_text":"WARN","severity_number":13,"attributes":{"http.route":"/api/board","http.status_code":401,"kanban.board.total_ms":2.5,"kanban.board.changed":false,"kanban.board.error_stage":"auth"}}
not json at all
{"level":"info","msg":"session started","user":"u1"}
{"event.name":"kanban.board.request","event.domain":"other","severity_text":"INFO"}
`

func TestCollectorAggregatesBoardEvents(t *testing.T) {
	c := newCollector(boardEventName, boardEventDomain)
	if err := c.readFrom(strings.NewReader(sampleLogs)); err != nil {
		t.Fatalf("readFrom: %v", err)
	}
	s := c.summary()

	if s.TotalEvents != 2 {
		t.Fatalf("expected 2 events, got %d", s.TotalEvents)
	}
	if s.SkippedLines != 1 {
		t.Fatalf("expected 1 skipped line, got %d", s.SkippedLines)
	}
	if s.SeverityCounts["INFO"] != 1 || s.SeverityCounts["WARN"] != 1 {
		t.Fatalf("unexpected severity counts: %#v", s.SeverityCounts)
	}
	if s.StatusCounts["200"] != 1 || s.StatusCounts["401"] != 1 {
		t.Fatalf("unexpected status counts: %#v", s.StatusCounts)
	}
	if s.RouteCounts["/api/board/tasks"] != 1 || s.RouteCounts["/api/board"] != 1 {
		t.Fatalf("unexpected route counts: %#v", s.RouteCounts)
	}
	total := s.DurationMs["total"]
	if total.Count != 2 || total.Min != 2.5 || total.Max != 12.5 || total.Avg != 7.5 {
		t.Fatalf("unexpected total durations: %#v", total)
	}
	if s.DurationMs["session"].Count != 1 {
		t.Fatalf("expected one session duration, got %#v", s.DurationMs["session"])
	}
	if s.BoardTasks.Count != 1 || s.BoardTasks.Max != 3 {
		t.Fatalf("unexpected task stats: %#v", s.BoardTasks)
	}
	if s.Changed != 1 || s.Unchanged != 1 {
		t.Fatalf("unexpected change counts: %d/%d", s.Changed, s.Unchanged)
	}
	if s.ErrorStages["auth"] != 1 {
		t.Fatalf("expected auth error stage, got %#v", s.ErrorStages)
	}
	if short := s.ShortString(); !strings.Contains(short, "total=2") || !strings.Contains(short, "routes=/api/board,/api/board/tasks") {
		t.Fatalf("unexpected short summary: %s", short)
	}
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.json")
	c := newCollector(boardEventName, boardEventDomain)
	if err := writeSummary(path, c.summary()); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got summaryOutput
	if err := sonic.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid summary json: %v", err)
	}
	if got.EventName != boardEventName || got.TotalEvents != 0 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

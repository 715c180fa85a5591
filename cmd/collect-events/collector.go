package main

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	boardEventName   = "kanban.board.request"
	boardEventDomain = "kanban.api"

	attrRoute       = "http.route"
	attrStatusCode  = "http.status_code"
	attrPrefix      = "kanban.board."
	attrTotalMillis = attrPrefix + "total_ms"
	attrAuthMillis  = attrPrefix + "auth_ms"
	attrSessMillis  = attrPrefix + "session_ms"
	attrTasks       = attrPrefix + "tasks"
	attrChanged     = attrPrefix + "changed"
	attrErrorStage  = attrPrefix + "error_stage"
)

var recordDecoder = sonic.Config{UseNumber: true}.Froze()

type logRecord struct {
	EventName    string         `json:"event.name"`
	EventDomain  string         `json:"event.domain"`
	SeverityText string         `json:"severity_text"`
	Attributes   map[string]any `json:"attributes"`
}

type stats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

func newStats() *stats { return &stats{Min: math.MaxFloat64} }

func (s *stats) add(v float64) {
	s.Count++
	s.Sum += v
	s.Min = math.Min(s.Min, v)
	s.Max = math.Max(s.Max, v)
}

type statsSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

func (s *stats) summary() statsSummary {
	if s == nil || s.Count == 0 {
		return statsSummary{}
	}
	return statsSummary{Count: s.Count, Min: s.Min, Max: s.Max, Avg: s.Sum / float64(s.Count)}
}

type collector struct {
	eventName   string
	eventDomain string

	total     int
	skipped   int
	severity  map[string]int
	status    map[int]int
	routes    map[string]int
	stages    map[string]int
	durations map[string]*stats
	tasks     *stats
	changed   int
	unchanged int
}

type summaryOutput struct {
	EventName      string                  `json:"event_name"`
	EventDomain    string                  `json:"event_domain"`
	TotalEvents    int                     `json:"total_events"`
	SeverityCounts map[string]int          `json:"severity_counts"`
	StatusCounts   map[string]int          `json:"status_counts"`
	RouteCounts    map[string]int          `json:"route_counts"`
	DurationMs     map[string]statsSummary `json:"duration_ms"`
	BoardTasks     statsSummary            `json:"board_tasks"`
	Changed        int                     `json:"changed"`
	Unchanged      int                     `json:"unchanged"`
	ErrorStages    map[string]int          `json:"error_stages,omitempty"`
	SkippedLines   int                     `json:"skipped_lines"`
}

func newCollector(eventName, eventDomain string) *collector {
	return &collector{
		eventName:   eventName,
		eventDomain: eventDomain,
		severity:    map[string]int{},
		status:      map[int]int{},
		routes:      map[string]int{},
		stages:      map[string]int{},
		durations:   map[string]*stats{},
	}
}

// ingest consumes one log line. Lines prefixed by a container name and a pipe,
// as docker compose prints them, are accepted.
func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}

	var rec logRecord
	if err := recordDecoder.UnmarshalFromString(trimmed, &rec); err != nil {
		c.skipped++
		return
	}
	if rec.EventName != c.eventName {
		return
	}
	if c.eventDomain != "" && rec.EventDomain != c.eventDomain {
		return
	}
	c.add(rec)
}

func (c *collector) add(rec logRecord) {
	c.total++
	severity := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	c.severity[severity]++

	attrs := rec.Attributes
	if attrs == nil {
		return
	}
	if v, ok := asFloat(attrs[attrStatusCode]); ok {
		c.status[int(v)]++
	}
	if route, ok := attrs[attrRoute].(string); ok && route != "" {
		c.routes[route]++
	}
	for key, name := range map[string]string{attrTotalMillis: "total", attrAuthMillis: "auth", attrSessMillis: "session"} {
		if v, ok := asFloat(attrs[key]); ok {
			if c.durations[name] == nil {
				c.durations[name] = newStats()
			}
			c.durations[name].add(v)
		}
	}
	if v, ok := asFloat(attrs[attrTasks]); ok {
		if c.tasks == nil {
			c.tasks = newStats()
		}
		c.tasks.add(v)
	}
	if changed, ok := attrs[attrChanged].(bool); ok {
		if changed {
			c.changed++
		} else {
			c.unchanged++
		}
	}
	if stage, ok := attrs[attrErrorStage].(string); ok && stage != "" {
		c.stages[stage]++
	}
}

func (c *collector) summary() summaryOutput {
	durations := make(map[string]statsSummary, len(c.durations))
	for k, s := range c.durations {
		durations[k] = s.summary()
	}
	status := make(map[string]int, len(c.status))
	for code, n := range c.status {
		status[strconv.Itoa(code)] = n
	}
	var stages map[string]int
	if len(c.stages) > 0 {
		stages = c.stages
	}
	return summaryOutput{
		EventName:      c.eventName,
		EventDomain:    c.eventDomain,
		TotalEvents:    c.total,
		SeverityCounts: c.severity,
		StatusCounts:   status,
		RouteCounts:    c.routes,
		DurationMs:     durations,
		BoardTasks:     c.tasks.summary(),
		Changed:        c.changed,
		Unchanged:      c.unchanged,
		ErrorStages:    stages,
		SkippedLines:   c.skipped,
	}
}

// ShortString is the one-line form printed after a run.
func (s summaryOutput) ShortString() string {
	total := s.DurationMs["total"]
	routes := make([]string, 0, len(s.RouteCounts))
	for r := range s.RouteCounts {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return strings.Join([]string{
		"event=" + s.EventName,
		"total=" + strconv.Itoa(s.TotalEvents),
		"warn=" + strconv.Itoa(s.SeverityCounts["WARN"]),
		"error=" + strconv.Itoa(s.SeverityCounts["ERROR"]),
		"avg_total_ms=" + strconv.FormatFloat(total.Avg, 'f', 2, 64),
		"max_total_ms=" + strconv.FormatFloat(total.Max, 'f', 2, 64),
		"routes=" + strings.Join(routes, ","),
	}, " ")
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

package pipeline

import (
	"cmp"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	StageOK    = "ok"
	StageError = "error"
)

type ReportSignal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// SiteMetric records what happened to one HTML directory during a run.
type SiteMetric struct {
	Dir       string   `json:"dir"`
	Status    string   `json:"status"`
	Nodes     int      `json:"nodes"`
	Scripts   int      `json:"scripts"`
	Errors    int      `json:"errors"`
	Warnings  int      `json:"warnings"`
	LintCodes []string `json:"lint_codes,omitempty"`
	Error     string   `json:"error,omitempty"`
}

const (
	SiteSaved     = "saved"
	SiteUnchanged = "unchanged"
	SiteFailed    = "failed"
	SitePruned    = "pruned"
)

type ReportSummary struct {
	Stages            int            `json:"stages"`
	FailedStages      int            `json:"failed_stages"`
	Sites             int            `json:"sites"`
	SitesByStatus     map[string]int `json:"sites_by_status"`
	LintErrors        int            `json:"lint_errors"`
	LintWarnings      int            `json:"lint_warnings"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// Report is the machine-readable record of a scan or update run.
type Report struct {
	Version     string         `json:"version"`
	Mode        string         `json:"mode"`
	GeneratedAt time.Time      `json:"generated_at"`
	Roots       []string       `json:"roots"`
	Stages      []StageMetric  `json:"stages"`
	Sites       []SiteMetric   `json:"sites"`
	Signals     []ReportSignal `json:"signals"`
	Summary     ReportSummary  `json:"summary"`
}

// StageHandle is returned by BeginStage and closed by EndStage.
type StageHandle struct {
	name    string
	started time.Time
}

func NewReport(mode string, roots []string) *Report {
	return &Report{
		Version:     "v1",
		Mode:        mode,
		GeneratedAt: time.Now().UTC(),
		Roots:       slices.Clone(roots),
		Stages:      []StageMetric{},
		Sites:       []SiteMetric{},
		Signals:     []ReportSignal{},
	}
}

func (r *Report) BeginStage(name string) StageHandle {
	return StageHandle{name: name, started: time.Now().UTC()}
}

// EndStage records a finished stage. A non-nil err marks it failed;
// blank counter names are dropped.
func (r *Report) EndStage(h StageHandle, counters map[string]float64, err error) {
	if r == nil || h.name == "" {
		return
	}
	m := StageMetric{
		Name:       h.name,
		Status:     StageOK,
		StartedAt:  h.started,
		DurationMS: time.Since(h.started).Milliseconds(),
	}
	for k, v := range counters {
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		if m.Counters == nil {
			m.Counters = make(map[string]float64, len(counters))
		}
		m.Counters[k] = v
	}
	if err != nil {
		m.Status = StageError
		m.Error = err.Error()
	}
	r.Stages = append(r.Stages, m)
}

// AddSignal records a notable condition. Signals missing a code, stage,
// severity or message are ignored.
func (r *Report) AddSignal(code, stage, severity, message string, value float64) {
	if r == nil || code == "" || stage == "" || severity == "" || message == "" {
		return
	}
	r.Signals = append(r.Signals, ReportSignal{
		Code:     code,
		Stage:    stage,
		Severity: strings.ToLower(severity),
		Message:  message,
		Value:    value,
	})
}

func (r *Report) AddSite(m SiteMetric) {
	if r == nil || m.Dir == "" {
		return
	}
	r.Sites = append(r.Sites, m)
}

// SitesWithStatus returns the directories recorded with status, in order.
func (r *Report) SitesWithStatus(status string) []string {
	if r == nil {
		return nil
	}
	var dirs []string
	for _, s := range r.Sites {
		if s.Status == status {
			dirs = append(dirs, s.Dir)
		}
	}
	return dirs
}

var severityRank = map[string]int{"critical": 3, "warning": 2, "info": 1}

// Finalize orders signals most severe first and computes the summary.
func (r *Report) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC()
	slices.SortStableFunc(r.Signals, func(a, b ReportSignal) int {
		return cmp.Or(
			cmp.Compare(severityRank[b.Severity], severityRank[a.Severity]),
			cmp.Compare(a.Stage, b.Stage),
			cmp.Compare(a.Code, b.Code),
		)
	})

	sum := ReportSummary{
		Stages:            len(r.Stages),
		Sites:             len(r.Sites),
		SitesByStatus:     map[string]int{},
		SignalsBySeverity: map[string]int{"critical": 0, "warning": 0, "info": 0},
	}
	for _, st := range r.Stages {
		if st.Status != StageOK {
			sum.FailedStages++
		}
	}
	for _, site := range r.Sites {
		sum.SitesByStatus[site.Status]++
		sum.LintErrors += site.Errors
		sum.LintWarnings += site.Warnings
	}
	for _, s := range r.Signals {
		sum.SignalsBySeverity[s.Severity]++
	}
	r.Summary = sum
}

// Save finalizes the report and writes it as indented JSON.
func (r *Report) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

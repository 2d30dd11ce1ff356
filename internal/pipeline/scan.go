package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"doxnav/internal/analysis"
	"doxnav/internal/crawler"
	"doxnav/internal/navtree"
	"doxnav/internal/storage"
)

// Scan catalogues every Doxygen site found under a set of roots.
type Scan struct {
	store   storage.SiteStore
	crawler *crawler.Crawler
	lint    analysis.Options

	// ReportPath, when set, receives the run report as JSON.
	ReportPath string
}

func NewScan(store storage.SiteStore, cr *crawler.Crawler, lint analysis.Options) *Scan {
	return &Scan{store: store, crawler: cr, lint: lint}
}

// Run discovers, loads, lints and stores the sites under roots, then drops
// catalogue entries whose directory no longer holds a site. Sites whose
// content hash matches the stored one are skipped unless force is set.
func (s *Scan) Run(ctx context.Context, roots []string, force bool) (*Report, error) {
	absRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		absRoots = append(absRoots, abs)
	}
	report := NewReport("scan", absRoots)

	h := report.BeginStage("discover")
	seen := make(map[string]bool)
	var dirs []string
	for _, root := range absRoots {
		found, err := s.crawler.Discover(root)
		if err != nil {
			report.EndStage(h, nil, err)
			return report, fmt.Errorf("failed to discover sites: %w", err)
		}
		for _, dir := range found {
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	sort.Strings(dirs)
	report.EndStage(h, map[string]float64{"sites": float64(len(dirs))}, nil)
	fmt.Printf("🔍 Discovered %d documentation sites under %d roots.\n", len(dirs), len(absRoots))

	if err := s.process(ctx, report, dirs, force); err != nil {
		return report, err
	}

	h = report.BeginStage("prune")
	var stale []string
	for _, root := range absRoots {
		stored, err := s.store.SiteDirs(ctx, root)
		if err != nil {
			report.EndStage(h, nil, err)
			return report, fmt.Errorf("failed to list stored sites: %w", err)
		}
		for _, dir := range stored {
			if !seen[dir] {
				seen[dir] = true
				stale = append(stale, dir)
			}
		}
	}
	pruned, err := s.prune(ctx, report, stale)
	report.EndStage(h, map[string]float64{"pruned": float64(pruned)}, err)
	if err != nil {
		return report, err
	}

	return report, s.saveReport(report)
}

// process loads dirs and stores the ones that changed.
func (s *Scan) process(ctx context.Context, report *Report, dirs []string, force bool) error {
	h := report.BeginStage("load")
	results, err := s.crawler.LoadAll(ctx, dirs)
	if err != nil {
		report.EndStage(h, nil, err)
		return fmt.Errorf("failed to load sites: %w", err)
	}
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	report.EndStage(h, map[string]float64{
		"loaded": float64(len(results) - failed),
		"failed": float64(failed),
	}, nil)

	h = report.BeginStage("lint_save")
	saved, unchanged := 0, 0
	for _, res := range results {
		if res.Err != nil {
			log.Printf("⚠️ Failed to load %s: %v", res.Dir, res.Err)
			report.AddSite(SiteMetric{Dir: res.Dir, Status: SiteFailed, Error: res.Err.Error()})
			report.AddSignal("load_failed", "lint_save", "critical", fmt.Sprintf("%s: %v", res.Dir, res.Err), 0)
			continue
		}
		site := res.Site

		if !force {
			hash, ok, err := s.store.SiteHash(ctx, site.Dir)
			if err != nil {
				report.EndStage(h, nil, err)
				return err
			}
			if ok && hash == site.ContentHash {
				unchanged++
				report.AddSite(SiteMetric{Dir: site.Dir, Status: SiteUnchanged})
				continue
			}
		}

		lint := analysis.Lint(site, s.lint)
		errCount := lint.Count(analysis.SeverityError)
		warnCount := lint.Count(analysis.SeverityWarning)
		rec, err := s.store.SaveSite(ctx, &storage.Snapshot{
			Dir:         site.Dir,
			ContentHash: site.ContentHash,
			Tree:        site.Document.Tree,
			Scripts:     site.Scripts(),
			Errors:      errCount,
			Warnings:    warnCount,
		})
		if err != nil {
			report.EndStage(h, nil, err)
			return fmt.Errorf("failed to save %s: %w", site.Dir, err)
		}
		saved++
		report.AddSite(SiteMetric{
			Dir:       site.Dir,
			Status:    SiteSaved,
			Nodes:     rec.NodeCount,
			Scripts:   len(site.Resolved.Names()),
			Errors:    errCount,
			Warnings:  warnCount,
			LintCodes: lint.Codes(),
		})
		if errCount > 0 {
			report.AddSignal("lint_errors", "lint_save", "warning",
				fmt.Sprintf("%s has %d lint errors", site.Dir, errCount), float64(errCount))
		}
		fmt.Printf("  -> %s: %d nodes, %d errors, %d warnings\n", site.Dir, rec.NodeCount, errCount, warnCount)
	}
	report.EndStage(h, map[string]float64{
		"saved":     float64(saved),
		"unchanged": float64(unchanged),
	}, nil)
	fmt.Printf("📊 Saved %d sites, %d unchanged, %d failed.\n", saved, unchanged, failed)
	return nil
}

func (s *Scan) prune(ctx context.Context, report *Report, dirs []string) (int, error) {
	for _, dir := range dirs {
		if err := s.store.DeleteSite(ctx, dir); err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", dir, err)
		}
		report.AddSite(SiteMetric{Dir: dir, Status: SitePruned})
		fmt.Printf("🗑️  Pruned %s (no %s left)\n", dir, navtree.DataFileName)
	}
	return len(dirs), nil
}

func (s *Scan) saveReport(report *Report) error {
	if s.ReportPath == "" {
		report.Finalize()
		return nil
	}
	if err := report.Save(s.ReportPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"doxnav/internal/extractor"
	"doxnav/internal/git"
	"doxnav/internal/navtree"
)

// Update rescans only the sites whose navigation scripts changed in git.
type Update struct {
	scan *Scan
	// Dir is any directory inside the repository.
	Dir string
}

func NewUpdate(scan *Scan, dir string) *Update {
	if dir == "" {
		dir = "."
	}
	return &Update{scan: scan, Dir: dir}
}

type updatePlan struct {
	Changes int
	Rescan  []string
	Prune   []string
}

func (u *Update) Run(ctx context.Context, baseRef string) (*Report, error) {
	if baseRef == "" {
		baseRef = "HEAD"
	}
	report := NewReport("update", []string{u.Dir})

	h := report.BeginStage("detect_changes")
	plan, err := u.plan(ctx, baseRef)
	if err != nil {
		report.EndStage(h, nil, err)
		return report, err
	}
	report.EndStage(h, map[string]float64{
		"changed_scripts": float64(plan.Changes),
		"rescan":          float64(len(plan.Rescan)),
		"prune":           float64(len(plan.Prune)),
	}, nil)

	if len(plan.Rescan) == 0 && len(plan.Prune) == 0 {
		fmt.Println("✅ No navigation changes detected.")
		return report, u.scan.saveReport(report)
	}
	fmt.Printf("📝 Detected %d changed navigation scripts in %d sites.\n", plan.Changes, len(plan.Rescan)+len(plan.Prune))

	if err := u.scan.process(ctx, report, plan.Rescan, false); err != nil {
		return report, err
	}

	h = report.BeginStage("prune")
	pruned, err := u.scan.prune(ctx, report, plan.Prune)
	report.EndStage(h, map[string]float64{"pruned": float64(pruned)}, err)
	if err != nil {
		return report, err
	}
	return report, u.scan.saveReport(report)
}

// plan groups changed navigation scripts by directory. A directory that
// still has navtreedata.js is rescanned; one that lost it is pruned when
// the catalogue knows it.
func (u *Update) plan(ctx context.Context, baseRef string) (*updatePlan, error) {
	changes, err := git.ChangedFiles(ctx, u.Dir, baseRef)
	if err != nil {
		return nil, fmt.Errorf("failed to get git changes: %w", err)
	}

	// git reports physical paths; the catalogue keeps the spelling the
	// scan used.
	sites, err := u.scan.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]string, len(sites))
	for _, site := range sites {
		stored[realPath(site.Dir)] = site.Dir
	}

	plan := &updatePlan{}
	seen := make(map[string]bool)
	for _, change := range changes {
		if extractor.Classify(change.Path) == extractor.KindUnknown {
			continue
		}
		plan.Changes++
		dir := realPath(filepath.Dir(change.Path))
		if seen[dir] {
			continue
		}
		seen[dir] = true

		known, isStored := stored[dir]
		if !isStored {
			known = dir
		}
		_, err := os.Stat(filepath.Join(dir, navtree.DataFileName))
		switch {
		case err == nil:
			plan.Rescan = append(plan.Rescan, known)
		case errors.Is(err, fs.ErrNotExist):
			if isStored {
				plan.Prune = append(plan.Prune, known)
			}
		default:
			return nil, err
		}
	}
	sort.Strings(plan.Rescan)
	sort.Strings(plan.Prune)
	return plan, nil
}

// realPath resolves symlinks in p, or in its closest existing parent when
// p itself is gone.
func realPath(p string) string {
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p
	}
	return filepath.Join(realPath(parent), filepath.Base(p))
}

package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"doxnav/internal/analysis"
	"doxnav/internal/crawler"
	"doxnav/internal/extractor"

	"github.com/fsnotify/fsnotify"
)

// Event is delivered after every lint run.
type Event struct {
	Dir string
	// Files are the navigation scripts that changed since the last run;
	// empty for the initial run.
	Files  []string
	Report *analysis.Report
	// Err is set when the site could not be loaded.
	Err error
}

// Watcher re-lints a site whenever its navigation scripts change.
type Watcher struct {
	crawler  *crawler.Crawler
	opts     analysis.Options
	debounce time.Duration
}

func NewWatcher(cr *crawler.Crawler, opts analysis.Options, debounce time.Duration) *Watcher {
	return &Watcher{crawler: cr, opts: opts, debounce: debounce}
}

// Watch lints dir once, then again after each burst of writes, creates,
// removals or renames of *.js navigation scripts. It blocks until ctx is
// cancelled and returns nil in that case.
func (w *Watcher) Watch(ctx context.Context, dir string, onChange func(Event)) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	onChange(w.lint(ctx, dir, nil))

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]bool)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			pending[filepath.Base(ev.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️ Watcher error on %s: %v", dir, err)
		case <-fire:
			fire = nil
			files := make([]string, 0, len(pending))
			for name := range pending {
				files = append(files, name)
			}
			sort.Strings(files)
			clear(pending)
			onChange(w.lint(ctx, dir, files))
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if extractor.Classify(ev.Name) == extractor.KindUnknown {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) lint(ctx context.Context, dir string, files []string) Event {
	site, err := w.crawler.Load(ctx, dir)
	if err != nil {
		return Event{Dir: dir, Files: files, Err: err}
	}
	return Event{Dir: dir, Files: files, Report: analysis.Lint(site, w.opts)}
}

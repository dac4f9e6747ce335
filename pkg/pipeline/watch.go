package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/reqlib/pkg/qc"
)

// Watch runs the pipeline once, then again whenever a configuration file,
// locale pattern, source document or one of the extra paths changes. Bursts
// of events are collapsed into one run after the Debounce quiet period.
// Run failures are passed to onRun and do not stop watching. Watch returns
// when ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, extra []string, onRun func(qc.Report, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	debounce := p.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watched := make(map[string]bool)
	run := func() {
		report, err := p.Run(ctx)
		if err != nil && ctx.Err() == nil {
			p.log.Error().Err(err).Msg("pipeline run failed")
		}
		if onRun != nil {
			onRun(report, err)
		}
		// Sources may have been added to the instruments file.
		p.addWatches(watcher, watched, extra)
	}

	p.addWatches(watcher, watched, extra)
	run()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]time.Time)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || p.ignored(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn().Err(err).Msg("file watcher error")

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			clear(pending)
			sort.Strings(changed)

			p.log.Info().Strs("changed", changed).Msg("change detected, re-running pipeline")
			if p.patternsChanged(changed) {
				if err := p.registry.Reload(); err != nil {
					p.log.Error().Err(err).Msg("failed to reload locale patterns")
				}
			}
			run()
		}
	}
}

// watchTargets lists the directories whose entries trigger a run. Files are
// watched through their parent directory so editors that replace files on
// save are still seen.
func (p *Pipeline) watchTargets(extra []string) []string {
	paths := append([]string{}, p.project.WatchPaths()...)
	if instruments, err := p.Instruments(); err == nil {
		for _, instrument := range instruments.Instruments {
			for _, version := range instrument.Versions {
				paths = append(paths, version.Path)
			}
		}
	}
	for _, path := range extra {
		paths = append(paths, p.project.Resolve(path))
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, path := range paths {
		dir := path
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			dir = filepath.Dir(path)
		}
		dir = absPath(dir)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (p *Pipeline) addWatches(watcher *fsnotify.Watcher, watched map[string]bool, extra []string) {
	for _, dir := range p.watchTargets(extra) {
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			p.log.Warn().Err(err).Str("path", dir).Msg("failed to watch directory")
			continue
		}
		watched[dir] = true
		p.log.Debug().Str("path", dir).Msg("watching directory")
	}
}

// ignored reports whether an event path is one of the pipeline's own outputs.
func (p *Pipeline) ignored(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".tmp-") {
		return true
	}
	path := absPath(name)
	for _, dir := range []string{p.project.ExtractedDir(), p.project.LibraryDir()} {
		if within(path, absPath(dir)) {
			return true
		}
	}
	return false
}

func (p *Pipeline) patternsChanged(changed []string) bool {
	if p.project.Paths.Patterns == "" {
		return false
	}
	dir := absPath(p.project.Resolve(p.project.Paths.Patterns))
	for _, name := range changed {
		if within(absPath(name), dir) {
			return true
		}
	}
	return false
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

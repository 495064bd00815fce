package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"brandkit/src/builder"
	"brandkit/src/config"
)

// Rebuilder runs one asset build
type Rebuilder interface {
	Build(ctx context.Context, targets builder.Target) (*builder.Report, error)
}

// Notifier is told about every rebuild
type Notifier interface {
	SendBuildNotification(ctx context.Context, revision string, files []string, buildErr error) error
}

// Event represents a debounced change or a finished rebuild
type Event struct {
	Type     EventType
	FilePath string
	Report   *builder.Report
	Err      error
}

// EventType represents the type of watcher event
type EventType int

const (
	EventChanged EventType = iota
	EventRebuilt
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRebuilt:
		return "rebuilt"
	default:
		return "failed"
	}
}

// Watcher rebuilds the brand assets when their inputs change
type Watcher struct {
	cfg        *config.Config
	configPath string
	builder    Rebuilder
	notifier   Notifier
	watcher    *fsnotify.Watcher
	events     chan Event
	debounce   time.Duration

	// mu serialises rebuilds and guards stopped
	mu      sync.Mutex
	stopped bool

	// cfgMu guards cfg against reloads while events are filtered
	cfgMu sync.RWMutex

	timerMu sync.Mutex
	timer   *time.Timer
	pending string
}

// NewWatcher creates a new file watcher. configPath may be empty.
func NewWatcher(cfg *config.Config, configPath string, b Rebuilder) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	debounce := time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		cfg:        cfg,
		configPath: configPath,
		builder:    b,
		watcher:    fsWatcher,
		events:     make(chan Event, 100),
		debounce:   debounce,
	}, nil
}

// SetNotifier sets where rebuild results are pushed
func (w *Watcher) SetNotifier(n Notifier) {
	w.notifier = n
}

// Start begins monitoring the mark, fonts, config and pages
func (w *Watcher) Start() error {
	folders, err := w.monitoredFolders()
	if err != nil {
		return fmt.Errorf("failed to get monitored folders: %w", err)
	}

	for _, folder := range folders {
		if err := w.watcher.Add(folder); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", folder, err)
		}
		log.Debugf("Watching folder: %s", folder)
	}

	go w.processEvents()
	return nil
}

// monitoredFolders returns the directories holding watched inputs. Files are
// watched through their directory so editors that replace files are seen.
func (w *Watcher) monitoredFolders() ([]string, error) {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()

	seen := make(map[string]bool)
	var folders []string
	add := func(dir string) {
		if dir == "" || seen[dir] || !dirExists(dir) {
			return
		}
		seen[dir] = true
		folders = append(folders, dir)
	}

	add(filepath.Dir(w.cfg.MarkPath()))
	for _, f := range []string{w.cfg.Fonts.Regular, w.cfg.Fonts.Bold} {
		if f != "" {
			add(filepath.Dir(w.cfg.ResolvePath(f)))
		}
	}
	if w.configPath != "" {
		add(filepath.Dir(w.configPath))
	}
	add(w.cfg.Site.Root)

	if w.cfg.Pages.Dir == "" {
		return folders, nil
	}
	if root := w.cfg.ResolvePath(w.cfg.Pages.Dir); dirExists(root) {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return folders, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// relevant reports whether a change to path affects the assets
func (w *Watcher) relevant(path string) bool {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()

	base := filepath.Base(path)
	if base == "" || base[0] == '.' && base != ".env" {
		return false
	}

	clean := filepath.Clean(path)
	if clean == filepath.Clean(w.cfg.MarkPath()) {
		return true
	}
	for _, f := range []string{w.cfg.Fonts.Regular, w.cfg.Fonts.Bold} {
		if f != "" && clean == filepath.Clean(w.cfg.ResolvePath(f)) {
			return true
		}
	}
	if w.configPath != "" && clean == filepath.Clean(w.configPath) {
		return true
	}
	if clean == filepath.Join(w.cfg.Site.Root, ".env") {
		return true
	}
	if w.cfg.Pages.Dir != "" {
		root := filepath.Clean(w.cfg.ResolvePath(w.cfg.Pages.Dir))
		if strings.HasPrefix(clean, root+string(filepath.Separator)) {
			switch filepath.Ext(clean) {
			case ".md", ".mdx":
				return true
			}
		}
	}
	return false
}

// processEvents debounces fsnotify events into single rebuilds
func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// new page folders need their own watch
			if event.Op&fsnotify.Create == fsnotify.Create && w.watchesPages() {
				if dirExists(event.Name) {
					if err := w.watcher.Add(event.Name); err != nil {
						log.Warnf("Failed to watch folder %s: %v", event.Name, err)
					}
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) watchesPages() bool {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()
	return w.cfg.Pages.Dir != ""
}

// schedule restarts the debounce timer; the last path wins
func (w *Watcher) schedule(path string) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	w.pending = path
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.timerMu.Lock()
		p := w.pending
		w.timerMu.Unlock()
		w.rebuild(p)
	})
}

// rebuild runs one build; concurrent triggers queue on mu
func (w *Watcher) rebuild(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	log.Infof("🎨 Input changed: %s", path)
	w.emit(Event{Type: EventChanged, FilePath: path})

	if w.configPath != "" && filepath.Clean(path) == filepath.Clean(w.configPath) {
		if err := w.reloadConfig(); err != nil {
			log.Errorf("Failed to reload config: %v", err)
			w.emit(Event{Type: EventFailed, FilePath: path, Err: err})
			w.notify(nil, err)
			return
		}
	}

	report, err := w.builder.Build(context.Background(), builder.TargetAll)
	if err != nil {
		log.Errorf("Rebuild failed: %v", err)
		w.emit(Event{Type: EventFailed, FilePath: path, Err: err})
		w.notify(nil, err)
		return
	}
	w.emit(Event{Type: EventRebuilt, FilePath: path, Report: report})
	w.notify(report.Files, nil)
}

// reloadConfig re-reads the config file in place so the builder sees it
func (w *Watcher) reloadConfig() error {
	cfg, err := config.Load(w.configPath)
	if err != nil {
		return err
	}
	w.cfgMu.Lock()
	*w.cfg = *cfg
	w.cfgMu.Unlock()
	log.WithField("revision", cfg.Revision).Info("Config reloaded")
	return nil
}

func (w *Watcher) notify(files []string, buildErr error) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.SendBuildNotification(context.Background(), w.cfg.Revision, files, buildErr); err != nil {
		log.Warnf("Failed to send notification: %v", err)
	}
}

func (w *Watcher) emit(e Event) {
	select {
	case w.events <- e:
	default:
		log.Debugf("Event channel full, dropping %v event", e.Type)
	}
}

// Events returns the event channel
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher and waits for a running rebuild to finish
func (w *Watcher) Stop() error {
	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	err := w.watcher.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.events)
	}
	return err
}

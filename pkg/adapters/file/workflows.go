// Package file provides filesystem-backed adapters: the workflow document
// loader and the policy override journal.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/pkg/domain"
)

// WorkflowLoader implements ports.WorkflowLoader over a directory of
// externally authored *.json policy documents. A malformed document is
// skipped and logged; the remaining documents keep working.
type WorkflowLoader struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	workflows map[string]*domain.WorkflowDefinition
	mtimes    map[string]time.Time

	pollInterval time.Duration
}

// LoaderOption configures the WorkflowLoader.
type LoaderOption func(*WorkflowLoader)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *WorkflowLoader) { l.logger = logger }
}

// WithPollInterval tunes the Watch polling period.
func WithPollInterval(d time.Duration) LoaderOption {
	return func(l *WorkflowLoader) { l.pollInterval = d }
}

// NewWorkflowLoader reads all workflow documents from dir.
func NewWorkflowLoader(dir string, opts ...LoaderOption) (*WorkflowLoader, error) {
	l := &WorkflowLoader{
		dir:          dir,
		logger:       logging.NewNop(),
		workflows:    make(map[string]*domain.WorkflowDefinition),
		mtimes:       make(map[string]time.Time),
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads every document in the directory. The new set replaces the
// old one atomically under the write lock.
func (l *WorkflowLoader) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read workflows dir: %w", err)
	}

	workflows := make(map[string]*domain.WorkflowDefinition)
	mtimes := make(map[string]time.Time)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())

		def, err := ParseWorkflow(path)
		if err != nil {
			l.logger.Warn("skipping malformed workflow document", "file", entry.Name(), "err", err)
			continue
		}
		workflows[def.WorkflowName] = def

		if info, err := entry.Info(); err == nil {
			mtimes[entry.Name()] = info.ModTime()
		}
	}

	l.mu.Lock()
	l.workflows = workflows
	l.mtimes = mtimes
	l.mu.Unlock()

	l.logger.Debug("workflows loaded", "count", len(workflows))
	return nil
}

// ParseWorkflow reads and decodes one workflow document. Decoding goes
// through a generic map first so documents survive minor shape drift, then
// through a strict-enough mapstructure pass into the typed definition.
func ParseWorkflow(path string) (*domain.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var def domain.WorkflowDefinition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &def,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid workflow document: %w", err)
	}

	if def.WorkflowName == "" {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		def.WorkflowName = strings.ToUpper(name)
	}
	if len(def.Rules) == 0 {
		return nil, fmt.Errorf("workflow %q declares no rules", def.WorkflowName)
	}
	for i, rule := range def.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("workflow %q rule %d has no id", def.WorkflowName, i)
		}
		if !rule.Action.Valid() {
			return nil, fmt.Errorf("workflow %q rule %q has unknown action %q", def.WorkflowName, rule.ID, rule.Action)
		}
	}
	return &def, nil
}

// Get returns the definition for an intent.
func (l *WorkflowLoader) Get(intent string) (*domain.WorkflowDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.workflows[intent]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return def, nil
}

// List returns the loaded workflow names, sorted for stable output.
func (l *WorkflowLoader) List() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.workflows))
	for name := range l.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Watch polls the directory for modified documents and signals when a reload
// happened. The channel closes when ctx is done.
func (l *WorkflowLoader) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		ticker := time.NewTicker(l.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !l.changed() {
					continue
				}
				if err := l.Reload(); err != nil {
					l.logger.Warn("workflow reload failed", "err", err)
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

func (l *WorkflowLoader) changed() bool {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		seen++
		info, err := entry.Info()
		if err != nil {
			continue
		}
		prev, ok := l.mtimes[entry.Name()]
		if !ok || info.ModTime().After(prev) {
			return true
		}
	}
	return seen != len(l.mtimes)
}

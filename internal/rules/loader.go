package rules

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk layout of an alert rules file
type ruleFile struct {
	Alerts []AlertRule `yaml:"alerts"`
	// Specs holds alert definitions in the one-line startup format
	Specs []string `yaml:"specs"`
}

// Loader handles loading alert rules from a directory of YAML files
type Loader struct {
	rulesDir     string
	hotReload    bool
	logger       *slog.Logger
	mu           sync.RWMutex
	snapshot     *RuleSnapshot
	watchers     []chan struct{}
	debounceMs   int
	pollInterval time.Duration
}

// NewLoader creates a new rule loader
func NewLoader(rulesDir string, hotReload bool, debounceMs int, logger *slog.Logger) *Loader {
	return &Loader{
		rulesDir:     rulesDir,
		hotReload:    hotReload,
		logger:       logger,
		debounceMs:   debounceMs,
		pollInterval: 2 * time.Second,
	}
}

// LoadSnapshot loads all alert rules from the rules directory
func (l *Loader) LoadSnapshot() (*RuleSnapshot, error) {
	l.logger.Info("Loading alert rules snapshot", "rules_dir", l.rulesDir)

	ruleFiles, err := l.readRuleFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read rule files: %w", err)
	}

	ruleMap := make(map[string]AlertRule)
	for _, file := range ruleFiles {
		rules, err := l.loadRulesFromFile(file)
		if err != nil {
			l.logger.Warn("Failed to load rules from file", "file", file, "error", err)
			continue
		}

		for _, rule := range rules {
			if rule.ID == "" {
				rule.ID = DefaultAlertID
			}

			// Skip disabled rules
			if !rule.IsEnabled() {
				l.logger.Debug("Skipping disabled alert rule", "alert_id", rule.ID, "file", file)
				continue
			}

			if err := rule.Validate(); err != nil {
				l.logger.Warn("Invalid alert rule skipped", "alert_id", rule.ID, "file", file, "error", err)
				continue
			}

			// Later files win on id conflicts
			if existing, exists := ruleMap[rule.ID]; exists {
				l.logger.Info("Alert ID conflict resolved by filename override",
					"alert_id", rule.ID,
					"new_file", file,
					"old_file", existing.SourceFile)
			}

			rule.SourceFile = file
			ruleMap[rule.ID] = rule
		}
	}

	allRules := make([]AlertRule, 0, len(ruleMap))
	for _, rule := range ruleMap {
		allRules = append(allRules, rule)
	}
	sort.Slice(allRules, func(i, j int) bool {
		return allRules[i].ID < allRules[j].ID
	})

	snapshot := &RuleSnapshot{
		Rules:   allRules,
		Version: time.Now().UnixNano(),
	}

	l.logger.Info("Alert rules snapshot loaded",
		"files", len(ruleFiles),
		"rules", len(allRules),
		"version", snapshot.Version)

	l.mu.Lock()
	l.snapshot = snapshot
	l.mu.Unlock()

	l.notifyWatchers()

	return snapshot, nil
}

// GetSnapshot returns the current rules snapshot
func (l *Loader) GetSnapshot() *RuleSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.snapshot == nil {
		return &RuleSnapshot{Rules: []AlertRule{}, Version: 0}
	}

	rules := make([]AlertRule, len(l.snapshot.Rules))
	copy(rules, l.snapshot.Rules)

	return &RuleSnapshot{
		Rules:   rules,
		Version: l.snapshot.Version,
	}
}

// WatchForChanges polls the rules directory until ctx is done and reloads
// after changes settle (if hot reload is enabled)
func (l *Loader) WatchForChanges(ctx context.Context) error {
	if !l.hotReload {
		l.logger.Info("Hot reload disabled")
		return nil
	}

	l.logger.Info("Starting rule file watcher", "rules_dir", l.rulesDir)

	reloadChan := make(chan struct{}, 1)
	go l.watchFiles(ctx, reloadChan)
	go l.debouncedReload(ctx, reloadChan)

	return nil
}

// Subscribe returns a channel that receives notifications when rules change
func (l *Loader) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()

	// Current snapshot counts as a change for a new subscriber
	ch <- struct{}{}

	return ch
}

// readRuleFiles lists rule files in the rules directory, sorted by filename
func (l *Loader) readRuleFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(l.rulesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isRuleFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// loadRulesFromFile loads rules from a single file. A file holds either an
// `alerts:` list, a `specs:` list of one-line definitions, or both.
func (l *Loader) loadRulesFromFile(filename string) ([]AlertRule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	rules := rf.Alerts
	for _, spec := range rf.Specs {
		rule, err := ParseAlertSpec(spec)
		if err != nil {
			l.logger.Warn("Invalid alert spec skipped", "file", filename, "spec", spec, "error", err)
			continue
		}
		rules = append(rules, rule)
	}

	l.logger.Debug("Loaded alert rules from file", "file", filename, "count", len(rules))
	return rules, nil
}

// watchFiles polls for modification time changes
func (l *Loader) watchFiles(ctx context.Context, reloadChan chan struct{}) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	lastModTime := time.Now()
	lastCount := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		hasChanges := false
		count := 0

		err := filepath.WalkDir(l.rulesDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isRuleFile(path) {
				return nil
			}

			count++
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.ModTime().After(lastModTime) {
				lastModTime = info.ModTime()
				hasChanges = true
			}
			return nil
		})
		if err != nil {
			l.logger.Error("Error watching rule files", "error", err)
			continue
		}

		// Deleted files do not bump any modification time
		if lastCount >= 0 && count != lastCount {
			hasChanges = true
		}
		lastCount = count

		if hasChanges {
			l.logger.Info("Rule files changed, triggering reload")
			select {
			case reloadChan <- struct{}{}:
			default:
				// Channel is full, a reload is already pending
			}
		}
	}
}

// debouncedReload reloads once changes stop arriving for debounceMs
func (l *Loader) debouncedReload(ctx context.Context, reloadChan chan struct{}) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reloadChan:
		}

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(time.Duration(l.debounceMs)*time.Millisecond, func() {
			l.logger.Info("Debounced reload triggered")
			if _, err := l.LoadSnapshot(); err != nil {
				l.logger.Error("Failed to reload rules", "error", err)
			}
		})
	}
}

// notifyWatchers notifies all subscribed watchers
func (l *Loader) notifyWatchers() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ch := range l.watchers {
		select {
		case ch <- struct{}{}:
		default:
			// Channel is full, the watcher has not consumed the last one
		}
	}
}

func isRuleFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

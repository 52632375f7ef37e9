package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ErrUnknownProfile is returned by Resolve when a profile name matches
// neither a built-in nor a loaded custom profile.
var ErrUnknownProfile = errors.New("unknown profile")

// Registry resolves normalization profiles by name. The built-in profiles
// are always available; custom profiles come from a directory of YAML files
// and are hot-reloaded when that directory changes.
type Registry struct {
	profilesDir string
	builtins    map[string]Profile

	mu     sync.RWMutex
	custom map[string]Profile

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry creates a profile registry. profilesDir may be empty, in which
// case only the built-in profiles are served and no watcher is started.
func NewRegistry(profilesDir string) *Registry {
	return &Registry{
		profilesDir: profilesDir,
		builtins:    builtinProfiles(),
		custom:      make(map[string]Profile),
		stopCh:      make(chan struct{}),
	}
}

// Start loads the profiles directory and begins watching it for changes.
// It is a no-op when no directory is configured.
func (r *Registry) Start(ctx context.Context) error {
	if r.profilesDir == "" {
		return nil
	}

	if _, err := os.Stat(r.profilesDir); err != nil {
		return fmt.Errorf("profiles directory %s: %w", r.profilesDir, err)
	}
	r.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create profile watcher: %w", err)
	}
	if err := watcher.Add(r.profilesDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", r.profilesDir, err)
	}
	r.watcher = watcher

	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

// Stop signals the watcher goroutine to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// Resolve returns the profile registered under name. An empty name resolves
// to the passthrough profile.
func (r *Registry) Resolve(name string) (Profile, error) {
	if name == "" {
		name = EnginePassthrough
	}
	if profile, ok := r.builtins[name]; ok {
		return profile, nil
	}
	r.mu.RLock()
	profile, ok := r.custom[name]
	r.mu.RUnlock()
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return profile, nil
}

// Names returns the sorted names of all currently available profiles.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.builtins)+len(r.custom))
	for name := range r.builtins {
		names = append(names, name)
	}
	for name := range r.custom {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// run is the watcher loop. Any create, write, remove, or rename of a profile
// file triggers a full directory reload.
func (r *Registry) run(ctx context.Context) {
	defer r.wg.Done()

	log := slog.With("profiles_dir", r.profilesDir)
	log.Info("Profile watcher started")

	for {
		select {
		case <-r.stopCh:
			log.Info("Profile watcher shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, profile watcher shutting down")
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !isProfileFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				log.Info("Profiles changed, reloading",
					"file", filepath.Base(event.Name), "op", event.Op.String())
				r.reload()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("Profile watcher error", "error", err)
		}
	}
}

// reload re-reads every profile file and swaps the custom profile set in one
// step, so a half-read directory is never visible to Resolve.
func (r *Registry) reload() {
	entries, err := os.ReadDir(r.profilesDir)
	if err != nil {
		slog.Warn("Failed to read profiles directory",
			"profiles_dir", r.profilesDir, "error", err)
		return
	}

	loaded := make(map[string]Profile)
	for _, entry := range entries {
		if entry.IsDir() || !isProfileFile(entry.Name()) {
			continue
		}
		path := filepath.Join(r.profilesDir, entry.Name())
		profile, err := loadProfileFile(path)
		if err != nil {
			slog.Warn("Skipping profile file", "file", entry.Name(), "error", err)
			continue
		}
		if _, isBuiltin := r.builtins[profile.Name]; isBuiltin {
			slog.Warn("Skipping profile that shadows a built-in",
				"file", entry.Name(), "profile", profile.Name)
			continue
		}
		loaded[profile.Name] = profile
	}

	r.mu.Lock()
	r.custom = loaded
	r.mu.Unlock()

	slog.Info("Custom profiles loaded", "count", len(loaded))
}

// loadProfileFile parses and validates a single custom profile definition.
func loadProfileFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("invalid YAML: %w", err)
	}
	if profile.Name == "" {
		return Profile{}, errors.New("profile name is required")
	}
	if !validEngine(profile.Engine) {
		return Profile{}, fmt.Errorf("unknown engine %q", profile.Engine)
	}
	return profile, nil
}

func isProfileFile(name string) bool {
	return filepath.Ext(name) == ".yaml"
}

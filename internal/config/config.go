package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"hotkeyd/hotkeys"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond
	maxBindingNameLen    = 64
	maxEnvValueBytes     = 8192
	defaultLogLevel      = "info"
)

// Test seams.
var userConfigDirFn = os.UserConfigDir
var userHomeDirFn = os.UserHomeDir

var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := make([]string, len(defaultPathWarningState.messages))
	copy(out, defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// Binding maps one global hotkey to the command it launches.
type Binding struct {
	Name   string `yaml:"name" json:"name"`
	Hotkey string `yaml:"hotkey" json:"hotkey"`
	// Command is argv: Command[0] is resolved via PATH, the rest are passed
	// verbatim. No shell is involved.
	Command  []string          `yaml:"command" json:"command"`
	Workdir  string            `yaml:"workdir,omitempty" json:"workdir,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Disabled bool              `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Config is hotkeyd runtime configuration.
type Config struct {
	LogLevel string    `yaml:"log_level" json:"log_level"`
	Bindings []Binding `yaml:"bindings" json:"bindings"`
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// DefaultConfig returns the configuration written by EnsureFile: info
// logging and one disabled example binding.
func DefaultConfig() Config {
	return Config{
		LogLevel: defaultLogLevel,
		Bindings: []Binding{
			{
				Name:     "example",
				Hotkey:   "Ctrl+Alt+F12",
				Command:  []string{exampleCommand()},
				Disabled: true,
			},
		},
	}
}

func exampleCommand() string {
	if runtime.GOOS == "windows" {
		return "notepad.exe"
	}
	return "xterm"
}

// DefaultPath resolves the config file path under os.UserConfigDir, falling
// back to ~/.config and then to os.TempDir() when neither can be resolved.
// The temp-dir fallback is not a stable persistence location.
func DefaultPath() string {
	base, err := userConfigDirFn()
	if err != nil || strings.TrimSpace(base) == "" {
		home, homeErr := userHomeDirFn()
		if homeErr != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", errors.Join(err, homeErr))
			recordDefaultPathWarning(
				"Config path fallback: failed to resolve the user config and home directories. Using temp directory; bindings may not persist.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "hotkeyd", "config.yaml")
}

// ParseLogLevel maps a config log level name to a slog level.
func ParseLogLevel(name string) (slog.Level, bool) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(name))]
	return level, ok
}

// Level returns the slog level for cfg.LogLevel, or info when it is unknown.
func (c Config) Level() slog.Level {
	if level, ok := ParseLogLevel(c.LogLevel); ok {
		return level
	}
	return slog.LevelInfo
}

// Enabled returns the bindings that are not disabled, in file order.
func (c Config) Enabled() []Binding {
	out := make([]Binding, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		if !b.Disabled {
			out = append(out, b)
		}
	}
	return out
}

// Load reads the config file. If the file does not exist, defaults are
// returned. Parse and validation failures are returned as errors so a caller
// can keep its previous configuration.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}

	var parsed Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil {
		if errors.Is(err, io.EOF) {
			// Comments only.
			return cfg, nil
		}
		slog.Warn("[WARN-CONFIG] failed to parse config", "path", path, "error", err)
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyDefaultsAndValidate(&parsed); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return parsed, nil
}

// EnsureFile writes the default config if missing and returns the loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
		slog.Info("[DEBUG-CONFIG] wrote default config", "path", path)
	}
	return cfg, nil
}

// Clone returns a deep copy of src.
func Clone(src Config) Config {
	dst := Config{LogLevel: src.LogLevel}
	if src.Bindings != nil {
		dst.Bindings = make([]Binding, len(src.Bindings))
		for i, b := range src.Bindings {
			b.Command = slices.Clone(b.Command)
			b.Env = maps.Clone(b.Env)
			dst.Bindings[i] = b
		}
	}
	return dst
}

// Save validates cfg and writes it to path atomically.
// Returns the normalized config that was actually written to disk.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	cfg = Clone(cfg)
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", normalizedPath)
	return cfg, nil
}

// atomicWrite writes config data using temp-file + rename to avoid partial
// writes and retries rename on Windows to tolerate transient file locks.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// validateConfigPath normalizes path to an absolute file path.
func validateConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	if strings.ContainsRune(trimmedPath, '\x00') {
		return "", errors.New("config path contains invalid null byte")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}
	if info, err := os.Stat(absolutePath); err == nil && info.IsDir() {
		return "", fmt.Errorf("save config: path is a directory: %q", absolutePath)
	}
	return absolutePath, nil
}

// applyDefaultsAndValidate fills missing defaults and validates cfg in-place.
// MUTATES: cfg is directly modified.
// Used by both Load and Save to ensure consistent normalization.
func applyDefaultsAndValidate(cfg *Config) error {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	} else if _, ok := ParseLogLevel(cfg.LogLevel); !ok {
		slog.Warn("[WARN-CONFIG] unknown log_level, using default", "log_level", cfg.LogLevel, "default", defaultLogLevel)
		cfg.LogLevel = defaultLogLevel
	}

	var errs []error
	names := make(map[string]int, len(cfg.Bindings))
	type combo struct {
		mods hotkeys.Modifier
		key  hotkeys.Key
	}
	combos := make(map[combo]string, len(cfg.Bindings))
	for i := range cfg.Bindings {
		b := &cfg.Bindings[i]
		if err := normalizeBinding(b); err != nil {
			errs = append(errs, fmt.Errorf("bindings[%d]: %w", i, err))
			continue
		}
		key := strings.ToLower(b.Name)
		if first, dup := names[key]; dup {
			errs = append(errs, fmt.Errorf("bindings[%d]: name %q duplicates bindings[%d]", i, b.Name, first))
			continue
		}
		names[key] = i

		if b.Disabled {
			continue
		}
		// Hotkey already validated by normalizeBinding.
		binding, _ := hotkeys.ParseBinding(b.Hotkey)
		c := combo{mods: binding.Modifiers(), key: binding.Key()}
		if owner, dup := combos[c]; dup {
			errs = append(errs, fmt.Errorf("bindings[%d]: hotkey %s is already bound by %q", i, binding.Normalized(), owner))
			continue
		}
		combos[c] = b.Name
	}
	return errors.Join(errs...)
}

// normalizeBinding trims fields, sanitizes env and checks that b is usable.
func normalizeBinding(b *Binding) error {
	b.Name = strings.TrimSpace(b.Name)
	b.Hotkey = strings.TrimSpace(b.Hotkey)
	b.Workdir = strings.TrimSpace(b.Workdir)

	if b.Name == "" {
		return errors.New("name is required")
	}
	if len(b.Name) > maxBindingNameLen {
		return fmt.Errorf("name %q exceeds %d bytes", b.Name, maxBindingNameLen)
	}
	if _, err := hotkeys.ParseBinding(b.Hotkey); err != nil {
		return fmt.Errorf("binding %q: %w", b.Name, err)
	}
	if len(b.Command) == 0 || strings.TrimSpace(b.Command[0]) == "" {
		return fmt.Errorf("binding %q: command is required", b.Name)
	}
	for _, arg := range b.Command {
		if strings.ContainsRune(arg, '\x00') {
			return fmt.Errorf("binding %q: command contains invalid null byte", b.Name)
		}
	}
	if b.Workdir != "" {
		b.Workdir = expandHome(b.Workdir)
		if !filepath.IsAbs(b.Workdir) {
			return fmt.Errorf("binding %q: workdir %q is not an absolute path", b.Name, b.Workdir)
		}
		b.Workdir = filepath.Clean(b.Workdir)
	}
	b.Env = sanitizeEnvMap(b.Env, "bindings."+b.Name+".env")
	return nil
}

func expandHome(dir string) string {
	if dir != "~" && !strings.HasPrefix(dir, "~/") && !strings.HasPrefix(dir, `~\`) {
		return dir
	}
	home, err := userHomeDirFn()
	if err != nil {
		slog.Warn("[WARN-CONFIG] failed to expand ~ in workdir", "path", dir, "error", err)
		return dir
	}
	return filepath.Join(home, dir[1:])
}

// sanitizeEnvMap removes invalid entries from an environment map and drops
// case-insensitive duplicate keys, keeping the first occurrence (sorted
// alphabetically for determinism).
// Returns nil when the input is empty or all entries are removed.
func sanitizeEnvMap(entries map[string]string, logPrefix string) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	cleaned := make(map[string]string, len(entries))
	// seen tracks uppercase keys for case-insensitive duplicate detection.
	seen := make(map[string]string, len(entries))
	sortedKeys := make([]string, 0, len(entries))
	for k := range entries {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)
	for _, k := range sortedKeys {
		v := entries[k]
		k = strings.TrimSpace(k)
		if k == "" {
			slog.Debug("[DEBUG-CONFIG] " + logPrefix + ": dropped entry with empty key")
			continue
		}
		if strings.ContainsRune(k, '\x00') {
			slog.Warn("[WARN-CONFIG] "+logPrefix+": dropped entry with null byte in key", "key", k)
			continue
		}
		if strings.ContainsRune(k, '=') {
			slog.Warn("[WARN-CONFIG] "+logPrefix+": dropped entry with '=' in key", "key", k)
			continue
		}
		origLen := len(v)
		v = strings.ReplaceAll(v, "\x00", "")
		if len(v) != origLen {
			slog.Warn("[WARN-CONFIG] "+logPrefix+": stripped null bytes from value", "key", k)
		}
		upperK := strings.ToUpper(k)
		if firstKey, exists := seen[upperK]; exists {
			slog.Warn("[WARN-CONFIG] "+logPrefix+": duplicate key (case-insensitive), keeping first", "key", k, "kept", firstKey)
			continue
		}
		if len(v) > maxEnvValueBytes {
			slog.Warn("[WARN-CONFIG] "+logPrefix+": dropped oversized value", "key", k, "bytes", len(v), "limit", maxEnvValueBytes)
			continue
		}
		seen[upperK] = k
		cleaned[k] = v
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}

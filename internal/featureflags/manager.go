// Package featureflags evaluates behavior switches for moderation sessions.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// FullSingleUndo makes single-post undo restore every captured field
	// instead of only the status.
	FullSingleUndo = "full_single_undo"
	// LegacySelectAll makes select-all compare selection size with the
	// pending count instead of comparing the id sets.
	LegacySelectAll = "legacy_select_all"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "full_single_undo=on,legacy_select_all=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = normalize(key)
		value = normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for the session identified by key.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic per-session rollout, e.g. 25%)
func (m *Manager) Enabled(name, key string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if key == "" {
			return false
		}
		return rolloutBucket(name, key) < pct
	}

	return false
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.flags))
	for k := range m.flags {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns evaluated flag status for one session.
func (m *Manager) Snapshot(key string) map[string]bool {
	names := m.Names()
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = m.Enabled(name, key)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + key))
	return int(h.Sum32() % 100)
}

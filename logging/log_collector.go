package logging

import (
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"
)

// DefaultCollectorCapacity is the number of entries kept per channel.
const DefaultCollectorCapacity = 200

// LogEntry represents a single log record with structured data.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"` // "DEBUG", "INFO", "WARN", "ERROR"
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogCollector keeps the most recent log entries of each diagnostic channel.
type LogCollector struct {
	level    slog.Level
	capacity int

	mu       sync.RWMutex
	logs     map[string][]LogEntry
	onChange func(channel string)
}

// CollectorOption configures a LogCollector.
type CollectorOption func(*LogCollector)

// WithCapacity bounds how many entries are kept per channel; older entries are dropped first.
func WithCapacity(n int) CollectorOption {
	return func(c *LogCollector) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithMinLevel sets the lowest level that is captured. Defaults to debug.
func WithMinLevel(level slog.Level) CollectorOption {
	return func(c *LogCollector) {
		c.level = level
	}
}

// WithOnChange registers a callback run after each added entry, outside the collector's lock.
func WithOnChange(f func(channel string)) CollectorOption {
	return func(c *LogCollector) {
		c.onChange = f
	}
}

// NewLogCollector creates a new LogCollector.
func NewLogCollector(opts ...CollectorOption) *LogCollector {
	c := &LogCollector{
		level:    slog.LevelDebug,
		capacity: DefaultCollectorCapacity,
		logs:     make(map[string][]LogEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Captures reports whether records at level are kept.
func (c *LogCollector) Captures(level slog.Level) bool {
	return level >= c.level
}

// Add appends an entry to channel, dropping the oldest entry once the channel is full.
func (c *LogCollector) Add(channel string, entry LogEntry) {
	c.mu.Lock()
	logs := append(c.logs[channel], entry)
	if len(logs) > c.capacity {
		logs = slices.Clone(logs[len(logs)-c.capacity:])
	}
	c.logs[channel] = logs
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(channel)
	}
}

// Entries returns a copy of the entries of one channel, oldest first.
func (c *LogCollector) Entries(channel string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, exists := c.logs[channel]
	if !exists {
		return nil
	}
	return slices.Clone(logs)
}

// Channels returns the names of every channel with entries, sorted.
func (c *LogCollector) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.logs))
	for name := range c.logs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of every channel's entries.
func (c *LogCollector) All() map[string][]LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]LogEntry, len(c.logs))
	for channel, logs := range c.logs {
		result[channel] = slices.Clone(logs)
	}
	return result
}

// Clear removes all stored entries.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs = make(map[string][]LogEntry)
}

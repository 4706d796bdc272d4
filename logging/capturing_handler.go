package logging

import (
	"context"
	"log/slog"
	"strings"
)

// ChannelKey is the attribute naming the diagnostic channel of a record.
const ChannelKey = "channel"

// CapturingHandler wraps an slog.Handler, storing each record in a LogCollector
// under its channel before passing it on.
type CapturingHandler struct {
	underlying slog.Handler
	collector  *LogCollector
	channel    string
	attrs      []slog.Attr
	groups     []string
}

// NewCapturingHandler creates a handler capturing records for channel.
func NewCapturingHandler(underlying slog.Handler, collector *LogCollector, channel string) *CapturingHandler {
	return &CapturingHandler{
		underlying: underlying,
		collector:  collector,
		channel:    channel,
	}
}

// Enabled reports whether the record is either captured or written by the underlying handler.
func (h *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.collector.Captures(level) || h.underlying.Enabled(ctx, level)
}

// Handle captures the record and then passes it to the underlying handler if that handler wants it.
func (h *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.collector.Captures(r.Level) {
		entry := LogEntry{
			Time:       r.Time,
			Level:      r.Level.String(),
			Message:    r.Message,
			Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
		}
		for _, attr := range h.attrs {
			entry.Attributes[attr.Key] = resolveValue(attr.Value)
		}
		prefix := strings.Join(h.groups, ".")
		r.Attrs(func(a slog.Attr) bool {
			key := a.Key
			if prefix != "" {
				key = prefix + "." + key
			}
			entry.Attributes[key] = resolveValue(a.Value)
			return true
		})
		h.collector.Add(h.channel, entry)
	}

	if !h.underlying.Enabled(ctx, r.Level) {
		return nil
	}
	return h.underlying.Handle(ctx, r)
}

// WithAttrs returns a CapturingHandler, so capturing survives logger.With.
func (h *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}

	return &CapturingHandler{
		underlying: h.underlying.WithAttrs(attrs),
		collector:  h.collector,
		channel:    h.channel,
		attrs:      newAttrs,
		groups:     h.groups,
	}
}

// WithGroup returns a CapturingHandler, so capturing survives logger.WithGroup.
// Captured attributes inside a group are keyed "group.key".
func (h *CapturingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name

	return &CapturingHandler{
		underlying: h.underlying.WithGroup(name),
		collector:  h.collector,
		channel:    h.channel,
		attrs:      h.attrs,
		groups:     newGroups,
	}
}

// ChannelLoggers creates one capturing logger per diagnostic channel on top of a base logger.
type ChannelLoggers struct {
	base      *slog.Logger
	collector *LogCollector
}

// NewChannelLoggers creates loggers writing to base and capturing into collector.
func NewChannelLoggers(base *slog.Logger, collector *LogCollector) *ChannelLoggers {
	return &ChannelLoggers{base: base, collector: collector}
}

// Logger returns a logger for channel. Its records carry a "channel" attribute.
func (c *ChannelLoggers) Logger(channel string) *slog.Logger {
	handler := NewCapturingHandler(c.base.Handler(), c.collector, channel)
	return slog.New(handler).With(ChannelKey, channel)
}

// Collector returns the collector the loggers capture into.
func (c *ChannelLoggers) Collector() *LogCollector {
	return c.collector
}

// resolveValue converts a slog.Value to a JSON-serializable value.
func resolveValue(v slog.Value) any {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	case slog.KindAny:
		value := v.Any()
		if err, ok := value.(error); ok {
			return err.Error()
		}
		return value
	case slog.KindGroup:
		attrs := v.Group()
		group := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			group[attr.Key] = resolveValue(attr.Value)
		}
		return group
	default:
		return v.Any()
	}
}

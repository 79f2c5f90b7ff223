package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by this process.
const SyslogIdentifier = "nodeexec"

// journalSend is swapped in tests.
var journalSend = journal.Send

// JournalHandler is a slog.Handler that sends logs to systemd journal.
// Attribute keys become upper-case journal fields, so executor logs can be
// filtered with NODE=<node>.
type JournalHandler struct {
	level  slog.Leveler
	prefix string            // group path, already in field form
	fields map[string]string // resolved WithAttrs fields
}

// NewJournalHandler creates a new journal handler.
// Level may be a *slog.LevelVar so module levels can change at runtime.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, fields: map[string]string{}}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the log record to systemd journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)

	fields := maps.Clone(h.fields)
	r.Attrs(func(attr slog.Attr) bool {
		putJournalField(fields, h.prefix, attr)
		return true
	})
	fields["PRIORITY"] = strconv.Itoa(int(priority))
	fields["SYSLOG_IDENTIFIER"] = SyslogIdentifier

	if err := journalSend(r.Message, priority, fields); err != nil {
		fmt.Fprintf(os.Stderr, "journal: %v: %s\n", err, r.Message)
		return err
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := maps.Clone(h.fields)
	for _, attr := range attrs {
		putJournalField(fields, h.prefix, attr)
	}
	return &JournalHandler{level: h.level, prefix: h.prefix, fields: fields}
}

// WithGroup returns a new handler with a group prefix.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{level: h.level, prefix: joinField(h.prefix, name), fields: h.fields}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// putJournalField flattens attr into fields under prefix.
func putJournalField(fields map[string]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := joinField(prefix, attr.Key)
	if key == "" {
		return
	}

	v := attr.Value
	switch v.Kind() {
	case slog.KindGroup:
		for _, a := range v.Group() {
			putJournalField(fields, key, a)
		}
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		fields[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			fields[key] = err.Error()
			return
		}
		fields[key] = v.String()
	default:
		fields[key] = v.String()
	}
}

// joinField appends name to prefix as a valid journal field name: upper
// case, [A-Z0-9_] only, no leading underscore.
func joinField(prefix, name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, "_")
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "_" + name
	}
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

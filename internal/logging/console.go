package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// consoleFieldLimit caps the fields printed on an INFO or higher line.
const consoleFieldLimit = 8

// Fields printed first when a line has more than consoleFieldLimit of them.
var consolePriority = []string{
	FieldAlert,
	FieldEventType,
	FieldDecisionType,
	"decision_result",
	"decision_reason",
	FieldErrorHint,
	FieldImpact,
	"error",
	"class",
	"destination",
	"objects",
	"payloads",
	"size",
}

// consoleHandler writes one line per record:
//
//	15:04:05.000 INFO  [writer] Level01 (written) package written objects=3 size="1.0 KiB"
//
// component, package and stage move into the prefix. Below INFO every field
// and the caller are printed.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	color     bool
	addSource bool
	attrs     []field
	group     string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource, color: colorOutput(w)}
}

func colorOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		c.attrs = appendField(c.attrs, h.group, a)
	}
	return &c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = joinKey(h.group, name)
	return &c
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := slices.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendField(fields, h.group, a)
		return true
	})
	fields = lastWins(fields)

	var component, pkg, stage string
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = plain(f.value)
		case FieldPackage:
			pkg = plain(f.value)
		case FieldStage:
			stage = plain(f.value)
		case FieldRunID:
			if r.Level < slog.LevelInfo {
				rest = append(rest, f)
			}
		default:
			rest = append(rest, f)
		}
	}

	hidden := 0
	if r.Level >= slog.LevelInfo && len(rest) > consoleFieldLimit {
		rest, hidden = prioritize(rest)
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.Format("15:04:05.000"))
	buf.WriteByte(' ')
	buf.WriteString(h.levelTag(r.Level))
	if component != "" {
		fmt.Fprintf(&buf, " [%s]", component)
	}
	switch {
	case pkg != "" && stage != "":
		fmt.Fprintf(&buf, " %s (%s)", pkg, stage)
	case pkg != "" || stage != "":
		buf.WriteString(" " + pkg + stage)
	}
	if msg := strings.TrimSpace(r.Message); msg != "" {
		buf.WriteString(" " + msg)
	}
	for _, f := range rest {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(quoted(f.value))
	}
	if hidden > 0 {
		fmt.Fprintf(&buf, " (+%d)", hidden)
	}
	if h.addSource {
		if src := r.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&buf, " %s:%d", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) levelTag(level slog.Level) string {
	var tag, color string
	switch {
	case level >= slog.LevelError:
		tag, color = "ERROR", "\x1b[31m"
	case level >= slog.LevelWarn:
		tag, color = "WARN ", "\x1b[33m"
	case level >= slog.LevelInfo:
		tag, color = "INFO ", "\x1b[36m"
	default:
		tag, color = "DEBUG", "\x1b[90m"
	}
	if !h.color {
		return tag
	}
	return color + tag + "\x1b[0m"
}

// prioritize keeps consolePriority keys first, then record order, up to the
// limit, and reports how many fields were dropped.
func prioritize(fields []field) ([]field, int) {
	rank := func(key string) int {
		if i := slices.Index(consolePriority, key); i >= 0 {
			return i
		}
		return len(consolePriority)
	}
	sorted := slices.Clone(fields)
	slices.SortStableFunc(sorted, func(a, b field) int { return rank(a.key) - rank(b.key) })
	return sorted[:consoleFieldLimit], len(fields) - consoleFieldLimit
}

func appendField(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = joinKey(prefix, a.Key)
		}
		for _, ga := range a.Value.Group() {
			dst = appendField(dst, p, ga)
		}
		return dst
	}
	return append(dst, field{key: joinKey(prefix, a.Key), value: a.Value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// lastWins drops earlier duplicates, keeping the first position.
func lastWins(fields []field) []field {
	pos := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := pos[f.key]; ok {
			out[i].value = f.value
			continue
		}
		pos[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func plain(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.String()
}

func quoted(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	default:
		s = plain(v)
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

// FormatBytes renders a byte count the way summaries and tables print sizes.
func FormatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

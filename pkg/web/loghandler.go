package web

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogHandler is a slog.Handler that mirrors records onto the dashboard's
// log stream. Pass it to log.Init as an extra handler.
type LogHandler struct {
	server *Server
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
	skip   bool
}

// LogHandler returns a handler that feeds AddLog with records at or above
// level.
func (s *Server) LogHandler(level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{server: s, level: level}
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return !h.skip && level >= h.level.Level()
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	if h.skip {
		return nil
	}
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		fmt.Fprintf(&b, " %s%s=%v", h.prefix, a.Key, a.Value.Resolve())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	h.server.AddLog(strings.ToLower(r.Level.String()), b.String())
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	for _, a := range attrs {
		// Hub records would loop back through the log hub.
		if a.Key == "component" && a.Value.String() == "hub" {
			next.skip = true
		}
	}
	return &next
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

var _ slog.Handler = (*LogHandler)(nil)

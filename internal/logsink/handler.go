package logsink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// PackageKey is the attribute that marks a record for remote delivery.
const PackageKey = "package"

type sender interface {
	Send(entry Entry) bool
}

// Handler writes every record to next and forwards records that carry a
// PackageKey attribute to the sink. Records below minLevel are not forwarded.
type Handler struct {
	next     slog.Handler
	sink     sender
	stack    Stack
	minLevel slog.Level

	pkg    Package
	attrs  []slog.Attr
	groups []string
}

func NewHandler(next slog.Handler, sink sender, stack Stack, minLevel slog.Level) *Handler {
	return &Handler{
		next:     next,
		sink:     sink,
		stack:    stack,
		minLevel: minLevel,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.minLevel
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.next.Enabled(ctx, r.Level) {
		if err := h.next.Handle(ctx, r); err != nil {
			return err
		}
	}

	if r.Level < h.minLevel {
		return nil
	}

	pkg := h.pkg
	extra := make([]string, 0, len(h.attrs)+r.NumAttrs())

	for _, a := range h.attrs {
		extra = append(extra, formatAttr(nil, a))
	}
	r.Attrs(func(a slog.Attr) bool {
		if len(h.groups) == 0 && a.Key == PackageKey {
			pkg = Package(a.Value.String())
			return true
		}
		extra = append(extra, formatAttr(h.groups, a))
		return true
	})

	if pkg == "" {
		return nil
	}

	msg := r.Message
	if len(extra) > 0 {
		msg += " " + strings.Join(extra, " ")
	}

	entry := Entry{
		Stack:   h.stack,
		Level:   LevelFromSlog(r.Level),
		Package: pkg,
		Message: msg,
	}
	if entry.Validate() != nil {
		return nil
	}

	h.sink.Send(entry)

	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append([]slog.Attr(nil), h.attrs...)

	for _, a := range attrs {
		if len(h.groups) == 0 && a.Key == PackageKey {
			clone.pkg = Package(a.Value.String())
			continue
		}
		clone.attrs = append(clone.attrs, slog.Attr{Key: groupKey(h.groups, a.Key), Value: a.Value})
	}

	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.groups = append(append([]string(nil), h.groups...), name)

	return &clone
}

func groupKey(groups []string, key string) string {
	if len(groups) == 0 {
		return key
	}
	return strings.Join(groups, ".") + "." + key
}

func formatAttr(groups []string, a slog.Attr) string {
	return fmt.Sprintf("%s=%v", groupKey(groups, a.Key), a.Value.Resolve().Any())
}

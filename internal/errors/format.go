package errors

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

type detailLabel struct{ key, label string }

// detailLabels lists the details FormatForCLI prints, in order.
// Others follow sorted by key.
var detailLabels = []detailLabel{
	{"stage", "Stage"},
	{"source_id", "Source"},
	{"position", "Position"},
	{"file", "File"},
	{"path", "Path"},
	{"location", "Index"},
	{"generation", "Generation"},
	{"provider", "Provider"},
	{"model", "Model"},
	{"query_model", "Query model"},
	{"index_model", "Index model"},
	{"host", "Host"},
	{"base_url", "Endpoint"},
	{"api_key_env", "Key variable"},
}

// FormatForCLI renders err for stderr: the message, the details locating
// the failure, the underlying cause, a hint and the code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	de, ok := As(err)
	if !ok {
		de = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", de.Message)
	for _, d := range orderedDetails(de.Details) {
		fmt.Fprintf(&sb, "  %s: %s\n", d.label, d.value)
	}
	if cause := causeText(de); cause != "" {
		fmt.Fprintf(&sb, "  Cause: %s\n", cause)
	}
	if de.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", de.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", de.Code)
	return sb.String()
}

// LogAttr returns err as an "error" group for structured logs. Errors
// outside this package log as their message.
func LogAttr(err error) slog.Attr {
	de, ok := As(err)
	if !ok {
		if err == nil {
			return slog.String("error", "")
		}
		return slog.String("error", err.Error())
	}

	attrs := []any{
		slog.String("code", de.Code),
		slog.String("message", de.Message),
		slog.Bool("retryable", de.Retryable),
	}
	for _, d := range orderedDetails(de.Details) {
		attrs = append(attrs, slog.String(d.key, d.value))
	}
	if cause := causeText(de); cause != "" {
		attrs = append(attrs, slog.String("cause", cause))
	}
	return slog.Group("error", attrs...)
}

type detail struct{ key, label, value string }

func orderedDetails(details map[string]string) []detail {
	out := make([]detail, 0, len(details))
	for _, dl := range detailLabels {
		if v := details[dl.key]; v != "" {
			out = append(out, detail{dl.key, dl.label, v})
		}
	}
	var rest []string
	for k := range details {
		if !slices.ContainsFunc(detailLabels, func(dl detailLabel) bool { return dl.key == k }) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	for _, k := range rest {
		if v := details[k]; v != "" {
			out = append(out, detail{k, k, v})
		}
	}
	return out
}

// causeText returns the cause's message unless the error message already
// contains it, as it does for Wrap.
func causeText(de *DocragError) string {
	if de.Cause == nil {
		return ""
	}
	cause := de.Cause.Error()
	if strings.Contains(de.Message, cause) {
		return ""
	}
	return cause
}

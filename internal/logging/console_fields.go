package logging

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type infoField struct {
	label string
	value string
}

// infoHighlightKeys are shown first, in this order, on info-level records.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldDecisionType,
	"decision_result",
	"decision_reason",
	"error",
	FieldErrorHint,
	FieldImpact,
	"input",
	"output",
	"target_lang",
	"voice",
	"entries",
	"sections",
	"batches",
	"attempt",
	"speed",
	"files",
	"failed",
	"stage_duration",
	"output_bytes",
}

var infoLabels = map[string]string{
	FieldAlert:        "Alert",
	FieldEventType:    "Event",
	FieldDecisionType: "Decision",
	"decision_result": "Result",
	"decision_reason": "Reason",
	FieldErrorHint:    "Hint",
	FieldImpact:       "Impact",
	"target_lang":     "Language",
	"stage_duration":  "Duration",
	"output_bytes":    "Size",
}

// selectInfoFields formats attrs for info-level output and reports how many were hidden.
func selectInfoFields(attrs []kv) ([]infoField, int) {
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, len(attrs))
	hidden := 0

	add := func(idx int) {
		used[idx] = true
		attr := attrs[idx]
		if skipInfoKey(attr.key) {
			return
		}
		if isDebugOnlyKey(attr.key) {
			hidden++
			return
		}
		value := formatValueForKey(attr.key, attr.value)
		if attr.key != "error" && len(value) > 120 {
			hidden++
			return
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: value})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				add(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			add(idx)
		}
	}
	return result, hidden
}

func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch {
	case strings.HasSuffix(key, "_bytes") && v.Kind() == slog.KindInt64:
		return humanize.Bytes(uint64(max(v.Int64(), 0)))
	case v.Kind() == slog.KindDuration:
		return formatDurationHuman(v.Duration())
	case strings.HasSuffix(key, "_seconds") && v.Kind() == slog.KindFloat64:
		return fmt.Sprintf("%.2fs", v.Float64())
	case strings.HasSuffix(key, "_percent") && v.Kind() == slog.KindFloat64:
		return fmt.Sprintf("%.1f%%", v.Float64())
	case v.Kind() == slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case key == "error":
		value := strings.TrimSpace(attrString(v))
		if len(value) > 200 {
			value = value[:200] + "…"
		}
		return value
	}
	return formatValue(v)
}

func formatDurationHuman(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldComponent, FieldFile, FieldStage, FieldRunID:
		return true
	}
	return false
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldCorrelationID, "prompt", "response", "command", "args":
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func displayLabel(key string) string {
	if label, ok := infoLabels[key]; ok {
		return label
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}

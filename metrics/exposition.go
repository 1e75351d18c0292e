package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Export formats accepted by Collector.Export.
const (
	FormatPrometheus = "prometheus"
	FormatJSON       = "json"
)

// RenderPrometheus renders a snapshot in the Prometheus text exposition
// format: a `# TYPE` line per metric name, then one line per series.
// Histograms expand to cumulative `_bucket` lines with an `le` label
// (`+Inf` last) plus `_sum` and `_count`.
func RenderPrometheus(snap Snapshot) string {
	var b strings.Builder

	for _, name := range sortedKeys(snap.Counters) {
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		for _, v := range snap.Counters[name] {
			fmt.Fprintf(&b, "%s%s %s\n", name, renderLabels(v.Labels, "", ""), formatValue(v.Value))
		}
	}

	for _, name := range sortedKeys(snap.Gauges) {
		fmt.Fprintf(&b, "# TYPE %s gauge\n", name)
		for _, v := range snap.Gauges[name] {
			fmt.Fprintf(&b, "%s%s %s\n", name, renderLabels(v.Labels, "", ""), formatValue(v.Value))
		}
	}

	for _, name := range sortedKeys(snap.Histograms) {
		fmt.Fprintf(&b, "# TYPE %s histogram\n", name)
		for _, v := range snap.Histograms[name] {
			for i, count := range v.Buckets {
				bound := "+Inf"
				if i < len(DefaultBuckets) {
					bound = formatValue(DefaultBuckets[i])
				}
				fmt.Fprintf(&b, "%s_bucket%s %d\n", name, renderLabels(v.Labels, "le", bound), count)
			}
			fmt.Fprintf(&b, "%s_sum%s %s\n", name, renderLabels(v.Labels, "", ""), formatValue(v.Sum))
			fmt.Fprintf(&b, "%s_count%s %d\n", name, renderLabels(v.Labels, "", ""), v.Count)
		}
	}

	return b.String()
}

// RenderJSON renders the full snapshot as JSON.
func RenderJSON(snap Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("metrics: failed to marshal snapshot: %w", err)
	}
	return string(data), nil
}

// renderLabels formats a label set as {k="v",...} sorted by key, optionally
// appending one extra label (the histogram `le` bound). An empty set with
// no extra label renders as the empty string.
func renderLabels(labels map[string]string, extraKey, extraValue string) string {
	if len(labels) == 0 && extraKey == "" {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	if extraKey != "" {
		if len(keys) > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", extraKey, extraValue)
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

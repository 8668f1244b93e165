package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/metrics/export/internaldefs"
)

// Source is what the exporter reads. *sessionauth.Engine implements it.
type Source interface {
	MetricsSnapshot() sessionauth.MetricsSnapshot
	AuditDropped() uint64
	AuditMirrorFailed() uint64
}

// Exporter renders engine metrics in Prometheus text format.
type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or an empty string when the engine has
// metrics disabled and the mirror has nothing to report.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	failed := p.source.AuditMirrorFailed()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 && failed == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, f := range internaldefs.CounterFamilies {
		writeHeader(&b, f.Name, f.Help, "counter")
		for _, s := range f.Series {
			writeSample(&b, f.Name, f.Label, s.Value, snapshot.Counters[s.ID])
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(snapshot.Histograms[def.ID])
		writeHeader(&b, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			writeSample(&b, def.Name+"_bucket", "le", le, cumulative[i])
		}
		writeSample(&b, def.Name+"_count", "", "", cumulative[len(cumulative)-1])
		// Snapshots carry bucket counts only.
		writeSample(&b, def.Name+"_sum", "", "", 0)
	}

	writeHeader(&b, internaldefs.AuditDroppedName, "Activity records the mirror dropped under backpressure.", "counter")
	writeSample(&b, internaldefs.AuditDroppedName, "", "", dropped)
	writeHeader(&b, internaldefs.AuditFailedName, "Activity records the mirror sink refused.", "counter")
	writeSample(&b, internaldefs.AuditFailedName, "", "", failed)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, label, value string, v uint64) {
	b.WriteString(name)
	if label != "" {
		b.WriteByte('{')
		b.WriteString(label)
		b.WriteString(`="`)
		b.WriteString(value)
		b.WriteString(`"}`)
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(v, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}

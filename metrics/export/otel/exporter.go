package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads. *sessionauth.Engine implements it.
type Source interface {
	MetricsSnapshot() sessionauth.MetricsSnapshot
	AuditDropped() uint64
	AuditMirrorFailed() uint64
}

// observedSeries is one counter series with its attribute set resolved once.
type observedSeries struct {
	id   sessionauth.MetricID
	opts metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

type observedHistogram struct {
	id      sessionauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  [8]metric.ObserveOption
}

// Exporter holds the instruments registered on a meter. Close unregisters
// the collection callback.
type Exporter struct {
	source       Source
	registration metric.Registration
	families     []observedFamily
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	auditFailed  metric.Int64ObservableCounter
}

// NewExporter registers every engine metric on meter. Labelled families become
// one counter with an attribute per series.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, f := range internaldefs.CounterFamilies {
		ins, err := meter.Int64ObservableCounter(f.Name, metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", f.Name, err)
		}
		fam := observedFamily{instrument: ins}
		for _, s := range f.Series {
			set := attribute.NewSet()
			if f.Label != "" {
				set = attribute.NewSet(attribute.String(f.Label, s.Value))
			}
			fam.series = append(fam.series, observedSeries{id: s.ID, opts: metric.WithAttributeSet(set)})
		}
		e.families = append(e.families, fam)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		var err error
		h.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", def.Name, err)
		}
		h.count, err = meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
		}
		for i, le := range internaldefs.HistogramBounds {
			h.bounds[i] = metric.WithAttributes(attribute.String("le", le))
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, h.buckets, h.count)
	}

	auditDropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Activity records the mirror dropped under backpressure."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	auditFailed, err := meter.Int64ObservableCounter(internaldefs.AuditFailedName,
		metric.WithDescription("Activity records the mirror sink refused."))
	if err != nil {
		return nil, fmt.Errorf("create audit failed counter: %w", err)
	}
	e.auditFailed = auditFailed
	observables = append(observables, auditFailed)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, s := range f.series {
			observer.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.opts)
		}
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(snapshot.Histograms[h.id])
		for i, v := range cumulative {
			observer.ObserveInt64(h.buckets, int64(v), h.bounds[i])
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	observer.ObserveInt64(e.auditFailed, int64(e.source.AuditMirrorFailed()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

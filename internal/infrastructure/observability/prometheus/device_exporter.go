package prometheus

import (
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

var deviceLabels = []string{"uuid", "bus", "serial", "index"}

// DeviceExporter exposes the latest numeric fields of every device as
// gauges named aip_device_<field>. A sentinel value removes the series
// instead of reporting -1.
type DeviceExporter struct {
	registry prometheus.Registerer

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

func NewDeviceExporter(registry prometheus.Registerer) *DeviceExporter {
	return &DeviceExporter{registry: registry}
}

// Initialize registers one gauge vector per numeric field.
func (e *DeviceExporter) Initialize(ctx context.Context, schema []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	gauges := make(map[string]*prometheus.GaugeVec)
	for _, p := range (entity.Record{}).Numeric() {
		gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aip_device_" + p.Field,
			Help: "Latest " + p.Field + " reading of an AIP device.",
		}, deviceLabels)
		if err := e.registry.Register(gauge); err != nil {
			return err
		}
		gauges[p.Field] = gauge
	}

	e.gauges = gauges
	return nil
}

func (e *DeviceExporter) Write(ctx context.Context, records []entity.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range records {
		labels := prometheus.Labels{
			"uuid":   r.UUID,
			"bus":    r.Bus,
			"serial": r.Serial,
			"index":  strconv.Itoa(r.Index),
		}
		for _, p := range r.Numeric() {
			gauge, ok := e.gauges[p.Field]
			if !ok {
				continue
			}
			v := p.Value.(float64)
			if v == valueobject.Sentinel {
				deleteSeries(gauge, r, labels)
				continue
			}
			gauge.With(labels).Set(v)
		}
	}
	return nil
}

// deleteSeries drops the device's series. A failed reading may lack the
// uuid or serial the series was created with, so a known bus is matched alone.
func deleteSeries(gauge *prometheus.GaugeVec, r entity.Record, labels prometheus.Labels) {
	if r.Bus == "" || r.Bus == valueobject.Unknown {
		gauge.Delete(labels)
		return
	}
	gauge.DeletePartialMatch(prometheus.Labels{"bus": r.Bus})
}

// Close unregisters the gauges.
func (e *DeviceExporter) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, gauge := range e.gauges {
		e.registry.Unregister(gauge)
	}
	e.gauges = nil
	return nil
}

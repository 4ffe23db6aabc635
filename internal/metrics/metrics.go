package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK = "ok"

	OpPurchase   = "purchase"
	OpReserve    = "reserve"
	OpRegister   = "register"
	OpAddItem    = "add_item"
	OpRemoveItem = "remove_item"
	OpSnapshot   = "snapshot"
)

// StoreMetrics records catalog and transaction activity.
type StoreMetrics struct {
	operations    *prometheus.CounterVec
	unitsSold     prometheus.Counter
	unitsReserved prometheus.Counter
	catalogItems  prometheus.Gauge
	users         prometheus.Gauge
}

// NewStoreMetrics registers the store metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comicstore_operations_total",
		Help: "Store operations by kind and result.",
	}, []string{"operation", "result"})
	unitsSold := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comicstore_units_sold_total",
		Help: "Units deducted from stock by purchases.",
	})
	unitsReserved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comicstore_units_reserved_total",
		Help: "Units deducted from stock by reservations.",
	})
	catalogItems := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comicstore_catalog_items",
		Help: "Items currently in the catalog.",
	})
	users := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comicstore_registered_users",
		Help: "Users currently registered.",
	})
	reg.MustRegister(operations, unitsSold, unitsReserved, catalogItems, users)
	return &StoreMetrics{
		operations:    operations,
		unitsSold:     unitsSold,
		unitsReserved: unitsReserved,
		catalogItems:  catalogItems,
		users:         users,
	}
}

// IncOperation counts one operation outcome.
func (m *StoreMetrics) IncOperation(operation, result string) {
	if m == nil || m.operations == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *StoreMetrics) AddUnitsSold(n int) {
	if m == nil || m.unitsSold == nil || n <= 0 {
		return
	}
	m.unitsSold.Add(float64(n))
}

func (m *StoreMetrics) AddUnitsReserved(n int) {
	if m == nil || m.unitsReserved == nil || n <= 0 {
		return
	}
	m.unitsReserved.Add(float64(n))
}

func (m *StoreMetrics) SetCatalogItems(n int) {
	if m == nil || m.catalogItems == nil {
		return
	}
	m.catalogItems.Set(float64(n))
}

func (m *StoreMetrics) SetUsers(n int) {
	if m == nil || m.users == nil {
		return
	}
	m.users.Set(float64(n))
}

// WriteTextfile dumps the gathered metrics in the text exposition format,
// for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" || g == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}

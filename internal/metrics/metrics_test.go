package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.IncOperation(OpPurchase, ResultOK)
	m.IncOperation(OpPurchase, ResultOK)
	m.IncOperation(OpPurchase, "insufficient_stock")
	m.AddUnitsSold(3)
	m.AddUnitsSold(5)
	m.AddUnitsReserved(-1)
	m.SetCatalogItems(4)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "comicstore_operations_total", map[string]string{"operation": OpPurchase, "result": ResultOK})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "comicstore_operations_total", map[string]string{"operation": OpPurchase, "result": "insufficient_stock"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "comicstore_units_sold_total", nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	got, err = fetchCounterValue(mfs, "comicstore_units_reserved_total", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	mf := findMetricFamily(mfs, "comicstore_catalog_items")
	require.NotNil(t, mf)
	assert.Equal(t, 4.0, mf.GetMetric()[0].GetGauge().GetValue())
}

func TestNilStoreMetricsIsSafe(t *testing.T) {
	var m *StoreMetrics
	m.IncOperation(OpReserve, ResultOK)
	m.AddUnitsSold(1)
	m.SetUsers(2)

	NewStoreMetrics(nil).IncOperation(OpReserve, ResultOK)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)
	m.IncOperation(OpSnapshot, ResultOK)

	path := filepath.Join(t.TempDir(), "comicstore.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `comicstore_operations_total{operation="snapshot",result="ok"} 1`)

	assert.NoError(t, WriteTextfile("", reg))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, labels map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

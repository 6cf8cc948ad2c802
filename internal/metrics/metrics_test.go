package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBootstrapMetricOperations(t *testing.T) {
	before := testutil.ToFloat64(BootstrapStepsTotal.WithLabelValues("test_step", "succeeded"))
	BootstrapStepsTotal.WithLabelValues("test_step", "succeeded").Inc()
	after := testutil.ToFloat64(BootstrapStepsTotal.WithLabelValues("test_step", "succeeded"))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
	}

	BootstrapDegraded.WithLabelValues("test_step").Set(1)
	if v := testutil.ToFloat64(BootstrapDegraded.WithLabelValues("test_step")); v != 1 {
		t.Errorf("BootstrapDegraded = %v, want 1", v)
	}
	BootstrapStepDuration.WithLabelValues("test_step").Observe(0.2)
}

func TestSetSchemaVersion(t *testing.T) {
	SetSchemaVersion("1.1.0")
	SetSchemaVersion("1.2.0")

	if n := testutil.CollectAndCount(SchemaVersion); n != 1 {
		t.Errorf("expected exactly one schema version series, got %d", n)
	}
	if v := testutil.ToFloat64(SchemaVersion.WithLabelValues("1.2.0")); v != 1 {
		t.Errorf("SchemaVersion{1.2.0} = %v, want 1", v)
	}
}

func TestSetMigrationState(t *testing.T) {
	SetMigrationState(1, 2, "1.1.0")
	if v := testutil.ToFloat64(MigrationFailed.WithLabelValues("1.1.0")); v != 1 {
		t.Errorf("MigrationFailed{1.1.0} = %v, want 1", v)
	}

	SetMigrationState(3, 0, "")
	if v := testutil.ToFloat64(MigrationsApplied); v != 3 {
		t.Errorf("MigrationsApplied = %v, want 3", v)
	}
	if v := testutil.ToFloat64(MigrationsPending); v != 0 {
		t.Errorf("MigrationsPending = %v, want 0", v)
	}
	if n := testutil.CollectAndCount(MigrationFailed); n != 0 {
		t.Errorf("MigrationFailed has %d series after a clean run, want 0", n)
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics([]string{"init_a", "init_b"})
	InitializeMetrics([]string{"init_a", "init_b"})

	if v := testutil.ToFloat64(BootstrapStepsTotal.WithLabelValues("init_a", "failed_abort")); v != 0 {
		t.Errorf("pre-populated counter should be 0, got %v", v)
	}
}

func TestMetricsAreRegistered(t *testing.T) {
	SetAppInfo("test", "abc", "go")
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "journiv_app_info") {
			found = true
		}
	}
	if !found {
		t.Error("journiv_app_info not found in default registry")
	}
}

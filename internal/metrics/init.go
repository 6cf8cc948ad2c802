package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every metric is exported from the first Prometheus scrape.
func InitializeMetrics(steps []string) {
	for _, step := range steps {
		BootstrapDegraded.WithLabelValues(step)
		BootstrapStepDuration.WithLabelValues(step)
		for _, status := range []string{"succeeded", "failed_continue", "failed_abort"} {
			BootstrapStepsTotal.WithLabelValues(step, status)
		}
	}

	for _, table := range []string{"mood", "prompt"} {
		SeedRowsInserted.WithLabelValues(table)
	}
}

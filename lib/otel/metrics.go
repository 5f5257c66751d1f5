package otel

import (
	"go.opentelemetry.io/otel/metric"
)

// VolumeMetrics holds metrics for volume provisioning.
type VolumeMetrics struct {
	ProvisionsTotal   metric.Int64Counter
	ProvisionDuration metric.Float64Histogram
}

// NewVolumeMetrics creates metrics for volume provisioning.
func NewVolumeMetrics(meter metric.Meter) (*VolumeMetrics, error) {
	provisionsTotal, err := meter.Int64Counter(
		"bay_volume_provisions_total",
		metric.WithDescription("Total number of volume (re)provisions"),
	)
	if err != nil {
		return nil, err
	}

	provisionDuration, err := meter.Float64Histogram(
		"bay_volume_provision_duration_seconds",
		metric.WithDescription("Time to stop users, recreate and fill a volume"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &VolumeMetrics{
		ProvisionsTotal:   provisionsTotal,
		ProvisionDuration: provisionDuration,
	}, nil
}

// FormationMetrics holds metrics for the formation runner.
type FormationMetrics struct {
	InstanceStarts metric.Int64Counter
	InstanceStops  metric.Int64Counter
}

// NewFormationMetrics creates metrics for the formation runner.
func NewFormationMetrics(meter metric.Meter) (*FormationMetrics, error) {
	instanceStarts, err := meter.Int64Counter(
		"bay_instance_starts_total",
		metric.WithDescription("Total number of instance start attempts"),
	)
	if err != nil {
		return nil, err
	}

	instanceStops, err := meter.Int64Counter(
		"bay_instance_stops_total",
		metric.WithDescription("Total number of instances stopped and removed"),
	)
	if err != nil {
		return nil, err
	}

	return &FormationMetrics{
		InstanceStarts: instanceStarts,
		InstanceStops:  instanceStops,
	}, nil
}

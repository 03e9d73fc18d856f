package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tmuxp"

// Metrics holds all OTEL metric instruments for tmuxp.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// tmux invocation instruments (partitioned by subcommand via attributes)
	Commands        metric.Int64Counter
	CommandFailures metric.Int64Counter
	CommandDuration metric.Float64Histogram

	// Mirror refresh counters (partitioned by entity kind)
	Refreshes     metric.Int64Counter
	MalformedRows metric.Int64Counter

	// Client diff counters
	ClientsCreated metric.Int64Counter
	ClientsDeleted metric.Int64Counter
	ClientsPatched metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- tmux invocation instruments ---

	m.Commands, err = meter.Int64Counter("tmux.commands",
		metric.WithDescription("Total tmux subcommands executed"))
	if err != nil {
		return nil, err
	}

	m.CommandFailures, err = meter.Int64Counter("tmux.command_failures",
		metric.WithDescription("tmux subcommands that failed (non-zero exit or stderr output)"))
	if err != nil {
		return nil, err
	}

	m.CommandDuration, err = meter.Float64Histogram("tmux.command_duration",
		metric.WithDescription("Wall-clock duration of tmux subcommands"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	// --- Mirror refresh counters ---

	m.Refreshes, err = meter.Int64Counter("mirror.refreshes",
		metric.WithDescription("Number of refresh operations applied to the mirror"))
	if err != nil {
		return nil, err
	}

	m.MalformedRows, err = meter.Int64Counter("mirror.malformed_rows",
		metric.WithDescription("List output rows skipped because they carried surplus fields"))
	if err != nil {
		return nil, err
	}

	// --- Client diff counters ---

	m.ClientsCreated, err = meter.Int64Counter("mirror.clients_created",
		metric.WithDescription("Client records materialized by a refresh"))
	if err != nil {
		return nil, err
	}

	m.ClientsDeleted, err = meter.Int64Counter("mirror.clients_deleted",
		metric.WithDescription("Client records removed by a refresh"))
	if err != nil {
		return nil, err
	}

	m.ClientsPatched, err = meter.Int64Counter("mirror.clients_patched",
		metric.WithDescription("Client records patched in place by a refresh"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCommand records one tmux invocation outcome.
func (m *Metrics) RecordCommand(ctx context.Context, subcommand string, durationMs float64, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("subcommand", subcommand))
	m.Commands.Add(ctx, 1, attrs)
	m.CommandDuration.Record(ctx, durationMs, attrs)
	if failed {
		m.CommandFailures.Add(ctx, 1, attrs)
	}
}

// RecordRefresh records one mirror refresh for an entity kind, with the
// number of rows skipped as malformed.
func (m *Metrics) RecordRefresh(ctx context.Context, kind string, malformed int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.Refreshes.Add(ctx, 1, attrs)
	if malformed > 0 {
		m.MalformedRows.Add(ctx, int64(malformed), attrs)
	}
}

// RecordClientDiff records the outcome of one client sync.
func (m *Metrics) RecordClientDiff(ctx context.Context, created, deleted, patched int) {
	if m == nil {
		return
	}
	if created > 0 {
		m.ClientsCreated.Add(ctx, int64(created))
	}
	if deleted > 0 {
		m.ClientsDeleted.Add(ctx, int64(deleted))
	}
	if patched > 0 {
		m.ClientsPatched.Add(ctx, int64(patched))
	}
}

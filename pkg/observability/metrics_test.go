package observability_test

import (
	"context"
	"testing"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Plugin(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg, "")
	require.NoError(t, err)

	ctx := context.Background()
	r, err := waypoint.New(ctx,
		waypoint.WithStates(
			&domain.Declaration{Name: "a"},
			&domain.Declaration{Name: "a.b"},
			&domain.Declaration{Name: "c"},
			&domain.Declaration{Name: "blocked"},
		),
		waypoint.WithPlugins(metrics),
	)
	require.NoError(t, err)
	defer r.Dispose()
	r.OnBefore(waypoint.HookCriteria{To: waypoint.Glob("blocked")}, func(context.Context, *waypoint.Transition, *waypoint.StateNode) (any, error) {
		return false, nil
	})

	_, err = r.TransitionTo(ctx, "a.b", nil)
	require.NoError(t, err)
	_, err = r.TransitionTo(ctx, "a.b", nil)
	require.NoError(t, err)
	_, err = r.TransitionTo(ctx, "c", nil)
	require.NoError(t, err)
	_, err = r.TransitionTo(ctx, "blocked", nil)
	require.Error(t, err)

	// counters are updated by success and error hooks, which run before
	// TransitionTo returns
	values := gather(t, reg)
	assert.Equal(t, map[string]float64{"success": 2, "ignored": 1, "aborted": 1}, values["waypoint_transitions_total"])
	assert.Equal(t, map[string]float64{"a": 1, "a.b": 1, "c": 1}, values["waypoint_state_enter_total"])
	assert.Equal(t, map[string]float64{"a": 1, "a.b": 1}, values["waypoint_state_exit_total"])
	assert.Equal(t, 0.0, values["waypoint_transitions_in_flight"][""])
	assert.Equal(t, 2.0, values["waypoint_transition_duration_seconds"]["success"])

	n, err := testutil.GatherAndCount(reg, "waypoint_state_enter_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	metrics.Uninstall()
	_, err = r.TransitionTo(ctx, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, gather(t, reg)["waypoint_transitions_total"]["success"])
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg, "app")
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg, "app")
	assert.Error(t, err)
}

// gather flattens the registry into metric name -> first label value ->
// value. Histograms report their sample count.
func gather(t *testing.T, reg *prometheus.Registry) map[string]map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]map[string]float64{}
	for _, f := range families {
		series := map[string]float64{}
		for _, m := range f.GetMetric() {
			label := ""
			if len(m.GetLabel()) > 0 {
				label = m.GetLabel()[0].GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				series[label] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				series[label] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				series[label] = float64(m.GetHistogram().GetSampleCount())
			}
		}
		values[f.GetName()] = series
	}
	return values
}

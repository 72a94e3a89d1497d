package thermal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

func mockFactory(cfg conf.I2CBusConfig) (Bus, error) {
	return NewMockBus(cfg.Name, 20, 10), nil
}

func TestSystemBuildsOnlyEnabledRegulators(t *testing.T) {
	cfg := conf.ThermalConfig{
		Buses: []conf.I2CBusConfig{{Name: "bus0", Type: "mock"}},
		Regulators: []conf.RegulatorConfig{
			func() conf.RegulatorConfig { c := testRegulatorConfig(); c.ID = "on"; return c }(),
			func() conf.RegulatorConfig { c := testRegulatorConfig(); c.ID = "off"; c.Enabled = false; return c }(),
		},
	}

	sys, err := NewSystem(cfg, mockFactory)
	require.NoError(t, err)

	assert.NotNil(t, sys.Regulator("on"))
	assert.Nil(t, sys.Regulator("off"))
}

func TestSystemRejectsRegulatorWithUnknownBus(t *testing.T) {
	cfg := conf.ThermalConfig{
		Buses: []conf.I2CBusConfig{{Name: "bus0", Type: "mock"}},
		Regulators: []conf.RegulatorConfig{
			func() conf.RegulatorConfig { c := testRegulatorConfig(); c.Bus = "nonexistent"; return c }(),
		},
	}

	_, err := NewSystem(cfg, mockFactory)
	assert.Error(t, err)
}

func TestSystemStartRunsAllRegulatorsUntilCancelled(t *testing.T) {
	cfg := conf.ThermalConfig{
		Buses: []conf.I2CBusConfig{{Name: "bus0", Type: "mock"}},
		Regulators: []conf.RegulatorConfig{
			func() conf.RegulatorConfig { c := testRegulatorConfig(); c.ID = "a"; return c }(),
			func() conf.RegulatorConfig { c := testRegulatorConfig(); c.ID = "b"; return c }(),
		},
	}
	sys, err := NewSystem(cfg, mockFactory)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sys.Start(ctx)

	time.Sleep(40 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() { sys.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("system did not shut down its regulators")
	}

	states := sys.Regulators()
	assert.Len(t, states, 2)
	for _, s := range states {
		assert.Equal(t, StatusStopped, s.Status)
	}
}

func TestSystemSendRoutesCommandByRegulatorID(t *testing.T) {
	cfg := conf.ThermalConfig{
		Buses:      []conf.I2CBusConfig{{Name: "bus0", Type: "mock"}},
		Regulators: []conf.RegulatorConfig{testRegulatorConfig()},
	}
	sys, err := NewSystem(cfg, mockFactory)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys.Start(ctx)
	defer sys.Wait()
	defer cancel()

	ok := sys.Send("cell-tec", Command{Kind: CommandStop})
	assert.True(t, ok)
	assert.False(t, sys.Send("unknown", Command{Kind: CommandStop}))
}

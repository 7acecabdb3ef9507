package profiling

import (
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"textanalysis/pkg/config"
)

func TestProfilingDisabledWithoutAddr(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	require.NoError(t, ProvideProfiling(lc, &config.Config{AppName: "textanalysis"}))
	lc.RequireStart().RequireStop()
}

func TestNewConfig(t *testing.T) {
	c := &config.Config{AppName: "textanalysis-worker", AppEnv: "staging"}
	c.Pyroscope.Addr = "http://pyroscope:4040"

	pc := NewConfig(c)
	require.Equal(t, "textanalysis-worker", pc.ApplicationName)
	require.Equal(t, "http://pyroscope:4040", pc.ServerAddress)
	require.Contains(t, pc.ProfileTypes, pyroscope.ProfileCPU)
	require.Equal(t, "staging", pc.Tags["env"])
}

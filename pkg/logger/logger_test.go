package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"textanalysis/pkg/config"
)

func TestNewReplacesGlobal(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	cfg := &config.Config{AppEnv: "development", AppName: "textanalysis"}
	log, err := New(ConfigParams{Cfg: cfg})
	require.NoError(t, err)
	require.NotNil(t, log)
	require.Same(t, log, zap.L())
}

func TestNewProductionEncoder(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	cfg := &config.Config{AppEnv: "production", AppName: "textanalysis"}
	log, err := New(ConfigParams{Cfg: cfg})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zap.DebugLevel))
}

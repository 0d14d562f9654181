package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("auction_id", "a1")

	log.Info("Auction closed", "outcome", "won")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "Auction closed", entries[0].Message)
	fields := entries[0].ContextMap()
	require.Equal(t, "a1", fields["auction_id"])
	require.Equal(t, "won", fields["outcome"])
}

func TestCronLogger_RoutesLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := Cron(FromZap(zap.New(core)))

	cl.Info("wake", "now", "x")
	cl.Error(errors.New("boom"), "job failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "cron: wake", entries[0].Message)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNewWithLevel_UnknownLevelFallsBack(t *testing.T) {
	require.NotNil(t, NewWithLevel("not-a-level"))
	require.NotNil(t, NewNop())
}

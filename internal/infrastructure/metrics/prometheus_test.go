package metrics

import (
	"strings"
	"testing"
	"time"

	"auction-settlement/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.AuctionsScanned(3)
	m.AuctionsScanned(2)
	m.ScanFailed()
	m.AuctionClosed(domain.OutcomeWon, 20*time.Millisecond)
	m.AuctionClosed(domain.OutcomeWon, 30*time.Millisecond)
	m.AuctionClosed(domain.OutcomeNoBids, time.Millisecond)
	m.ClosureFailed("settle", time.Second)
	m.Inconsistency(domain.InconsistencyOrderMissing)
	m.Repaired(domain.InconsistencyOrderMissing)
	m.NotificationFailed(domain.NotifyWinner)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.scanned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scanFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.closed.WithLabelValues("won")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closed.WithLabelValues("no_bids")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("settle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inconsistencies.WithLabelValues("won_without_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repaired.WithLabelValues("won_without_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifyFailures.WithLabelValues("winner")))

	expected := `
# HELP auction_closer_scan_failures_total Scans that failed and aborted their cycle.
# TYPE auction_closer_scan_failures_total counter
auction_closer_scan_failures_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "auction_closer_scan_failures_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

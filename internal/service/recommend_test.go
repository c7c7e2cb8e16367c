package service

import (
	"testing"

	"github.com/qoe-boost/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogQuality(t *testing.T) {
	// Perfect throughput, zero latency.
	best := &models.NetworkLog{DownloadMbps: 100, LatencyMs: 0}
	assert.InDelta(t, 100.0, logQuality(best), 0.001)

	// Throughput above 100 Mbps clamps; latency at 500ms and beyond scores zero.
	fast := &models.NetworkLog{DownloadMbps: 400, LatencyMs: 900}
	assert.InDelta(t, 70.0, logQuality(fast), 0.001)

	worst := &models.NetworkLog{DownloadMbps: 0, LatencyMs: 500}
	assert.InDelta(t, 0.0, logQuality(worst), 0.001)
}

func TestRecommendRanksByAverageQuality(t *testing.T) {
	svc, _ := newTestService()
	user, err := svc.Register("alice", "alice@example.com", "supersecret", "")
	require.NoError(t, err)

	// Provider A: two mediocre samples. Provider B: one strong sample.
	// A plain average favors B despite its smaller sample count.
	_, err = svc.SubmitNetworkLog(user.ID, "riga", "carrier-a", 100, 50, 10, "4G")
	require.NoError(t, err)
	_, err = svc.SubmitNetworkLog(user.ID, "riga", "carrier-a", 50, 70, 15, "4G")
	require.NoError(t, err)
	_, err = svc.SubmitNetworkLog(user.ID, "riga", "carrier-b", 20, 90, 30, "5G")
	require.NoError(t, err)
	// A log for another location must not influence the ranking.
	_, err = svc.SubmitNetworkLog(user.ID, "oslo", "carrier-c", 10, 100, 50, "5G")
	require.NoError(t, err)

	scores, err := svc.Recommend("riga")
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Equal(t, "carrier-b", scores[0].Provider)
	assert.Equal(t, 1, scores[0].Samples)
	assert.InDelta(t, 91.8, scores[0].Score, 0.001)

	assert.Equal(t, "carrier-a", scores[1].Provider)
	assert.Equal(t, 2, scores[1].Samples)
	assert.InDelta(t, 67.5, scores[1].Score, 0.001)
}

func TestRecommendTieBreaksByProviderName(t *testing.T) {
	svc, _ := newTestService()
	user, err := svc.Register("alice", "alice@example.com", "supersecret", "")
	require.NoError(t, err)

	for _, provider := range []string{"zeta", "alpha"} {
		_, err = svc.SubmitNetworkLog(user.ID, "riga", provider, 40, 80, 20, "4G")
		require.NoError(t, err)
	}

	scores, err := svc.Recommend("riga")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "alpha", scores[0].Provider)
	assert.Equal(t, "zeta", scores[1].Provider)
	assert.Equal(t, scores[0].Score, scores[1].Score)
}

func TestRecommendUnknownLocationIsEmpty(t *testing.T) {
	svc, _ := newTestService()

	scores, err := svc.Recommend("nowhere")
	require.NoError(t, err)
	assert.Empty(t, scores)
}

type staticRegistry map[string]string

func (r staticRegistry) DisplayName(code string) (string, bool) {
	name, ok := r[code]
	return name, ok
}

func TestRecommendDecoratesDisplayNames(t *testing.T) {
	svc, _ := newTestService()
	svc.WithCarrierRegistry(staticRegistry{"carrier-a": "Carrier A Mobile"})

	user, err := svc.Register("alice", "alice@example.com", "supersecret", "")
	require.NoError(t, err)
	_, err = svc.SubmitNetworkLog(user.ID, "riga", "carrier-a", 40, 80, 20, "4G")
	require.NoError(t, err)
	_, err = svc.SubmitNetworkLog(user.ID, "riga", "unlisted", 40, 80, 20, "4G")
	require.NoError(t, err)

	scores, err := svc.Recommend("riga")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	for _, score := range scores {
		if score.Provider == "carrier-a" {
			assert.Equal(t, "Carrier A Mobile", score.DisplayName)
		} else {
			assert.Empty(t, score.DisplayName)
		}
	}
}

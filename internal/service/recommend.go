package service

import (
	"sort"

	"github.com/qoe-boost/backend/internal/models"
)

// Per-log quality weighting. Throughput dominates; latency contributes the
// remainder on an inverted 0-100 scale (500ms and above scores zero).
const (
	throughputWeight = 0.7
	latencyWeight    = 0.3
)

// logQuality maps a single measurement onto a 0-100 quality value
func logQuality(nl *models.NetworkLog) float64 {
	throughput := clamp(nl.DownloadMbps, 0, 100)
	latency := clamp(100-nl.LatencyMs/5, 0, 100)
	return throughputWeight*throughput + latencyWeight*latency
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Recommend ranks providers for a location by the mean quality of their
// measurements. Ordering is score descending, provider name ascending on
// ties; an unknown location yields an empty slice.
func (s *Service) Recommend(location string) ([]models.ProviderScore, error) {
	logs, err := s.store.ListNetworkLogsByLocation(location)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	counts := make(map[string]int)
	for i := range logs {
		totals[logs[i].Provider] += logQuality(&logs[i])
		counts[logs[i].Provider]++
	}

	scores := make([]models.ProviderScore, 0, len(totals))
	for provider, total := range totals {
		entry := models.ProviderScore{
			Provider: provider,
			Score:    total / float64(counts[provider]),
			Samples:  counts[provider],
		}
		if s.registry != nil {
			if name, ok := s.registry.DisplayName(provider); ok {
				entry.DisplayName = name
			}
		}
		scores = append(scores, entry)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Provider < scores[j].Provider
	})
	return scores, nil
}

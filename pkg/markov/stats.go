package markov

import (
	"context"
	"sort"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models []ModelInfo        // Models in the database, sorted by name
	Stats  map[int]ModelStats // A mapping of model ids to their stats
}

// ModelStats holds aggregated statistics for a single stored chain.
type ModelStats struct {
	States      int // The number of distinct states.
	Transitions int // The number of recorded transitions, duplicates included.
	Terminals   int // The number of end-of-text (empty) successors.
}

// GetStats returns a snapshot of per-model statistics.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := s.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	modelStats := make(map[int]ModelStats)
	for _, v := range modelInfos {
		models = append(models, v)
		var st ModelStats
		if err = s.stmtModelStates.QueryRowContext(ctx, v.Id).Scan(&st.States); err != nil {
			return nil, err
		}
		if err = s.stmtModelTotal.QueryRowContext(ctx, v.Id).Scan(&st.Transitions); err != nil {
			return nil, err
		}
		if err = s.stmtModelTerminals.QueryRowContext(ctx, v.Id).Scan(&st.Terminals); err != nil {
			return nil, err
		}
		modelStats[v.Id] = st
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})

	return &DBStats{
		Models: models,
		Stats:  modelStats,
	}, nil
}

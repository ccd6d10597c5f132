package query

import (
	"context"
	"log/slog"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LIVE POSITION QUERY
// The stored position is a snapshot. This query ranks the result against
// the cohort as it is right now without writing anything.
// ══════════════════════════════════════════════════════════════════════════════

// GetLivePositionQuery selects a result.
type GetLivePositionQuery struct {
	ResultID string
}

// Position sources.
const (
	SourceIndex = "index"
	SourceStore = "store"
)

// LivePositionDTO compares the stored and live positions.
type LivePositionDTO struct {
	ResultID       string  `json:"result_id"`
	AverageScore   float64 `json:"average_score"`
	StoredPosition int     `json:"stored_position"`
	LivePosition   int     `json:"live_position"`
	LiveLabel      string  `json:"live_label"`
	Stale          bool    `json:"stale"`
	Source         string  `json:"source"`
}

// GetLivePositionHandler handles GetLivePositionQuery.
type GetLivePositionHandler struct {
	results result.Repository
	index   result.CohortIndex
	actors  shared.ActorProvider
	logger  *slog.Logger
}

// NewGetLivePositionHandler creates a new handler. index may be nil.
func NewGetLivePositionHandler(results result.Repository, index result.CohortIndex, actors shared.ActorProvider, logger *slog.Logger) *GetLivePositionHandler {
	if actors == nil {
		actors = shared.ContextActorProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLivePositionHandler{results: results, index: index, actors: actors, logger: logger}
}

// Handle ranks the result against its current cohort. The cohort index
// answers first; when it is unavailable the relational store is scanned.
// The index holds the result itself, but only strictly greater averages
// count, so that does not change the answer.
func (h *GetLivePositionHandler) Handle(ctx context.Context, q GetLivePositionQuery) (*LivePositionDTO, error) {
	actor, err := h.actors.CurrentActor(ctx)
	if err != nil {
		return nil, err
	}

	r, err := h.results.GetByID(ctx, q.ResultID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrResultNotFound
		}
		return nil, shared.NewQueryError("result", "LivePosition", err)
	}
	if !canView(actor, r) {
		return nil, shared.ErrResultNotFound
	}

	live, source := result.Unranked, SourceIndex
	if h.index != nil {
		live, err = h.index.Position(ctx, r.Cohort, r.AverageScore)
		if err != nil {
			h.logger.Debug("cohort index unavailable, using store", "cohort", r.Cohort.Key(), "error", err)
			live = result.Unranked
		}
	}

	if !live.IsRanked() {
		source = SourceStore
		averages, err := h.results.ListResultAverages(ctx, r.Cohort, r.ID)
		if err != nil {
			return nil, shared.NewQueryError("result", "LivePosition", err)
		}
		live = result.ComputePosition(r.AverageScore, averages)
	}

	return &LivePositionDTO{
		ResultID:       r.ID,
		AverageScore:   r.AverageScore,
		StoredPosition: int(r.Position),
		LivePosition:   int(live),
		LiveLabel:      live.Ordinal(),
		Stale:          live != r.Position,
		Source:         source,
	}, nil
}

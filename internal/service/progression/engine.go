package progression

import "go.uber.org/zap"

// Engine wires the three stateful components over one store.
type Engine struct {
	Ratings   *RatingRecorder
	Consensus *ConsensusTracker
	Stages    *StageController
}

func NewEngine(tx Transactor, activity ActivityLogSink, logger *zap.Logger) *Engine {
	stages := NewStageController(tx, activity, logger.Named("stage"))
	return &Engine{
		Ratings:   NewRatingRecorder(tx, logger.Named("rating")),
		Consensus: NewConsensusTracker(tx, stages, logger.Named("consensus")),
		Stages:    stages,
	}
}

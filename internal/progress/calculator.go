package progress

import (
	"math"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
)

// DefaultStageWeight applies to the last stage and to anything outside the table.
const DefaultStageWeight = 20

// 各阶段起点对应的累计完成度
var cumulative = map[int]int{
	1: 0,
	2: 10,
	3: 30,
	4: 50,
	5: 60,
	6: 80,
}

// StageWeight 返回某阶段在总体进度中的权重（下一阶段起点 - 本阶段起点）
func StageWeight(stage int) int {
	start, ok := cumulative[stage]
	if !ok {
		return DefaultStageWeight
	}
	next, ok := cumulative[stage+1]
	if !ok {
		return DefaultStageWeight
	}
	return next - start
}

// OverallProgress blends the in-stage percentage into a 0-100 overall score.
// Out-of-range inputs are clamped first so the result is always within bounds.
func OverallProgress(stage, percentage int) int {
	stage = clamp(stage, model.MinStage, model.MaxStage)
	percentage = clamp(percentage, model.MinPercentage, model.MaxPercentage)

	overall := float64(cumulative[stage]) + float64(percentage)/100*float64(StageWeight(stage))
	return int(math.Min(100, math.Round(overall)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

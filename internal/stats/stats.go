// Package stats はレコード列から表示用の集計値を算出する純粋関数を提供する。
// 副作用もキャッシュも持たず、呼び出しのたびに再計算する。
package stats

import (
	"math"

	"github.com/hitoshi/uxtemplate/internal/model"
)

// CountWhere はpredicateを満たす要素数を返す。
func CountWhere[R any](items []R, predicate func(R) bool) int {
	n := 0
	for _, item := range items {
		if predicate(item) {
			n++
		}
	}
	return n
}

// CompletionPercentage は完了済みタスクの割合を0〜100の整数（四捨五入）で返す。
// タスクが0件の場合は0を返す。
func CompletionPercentage(tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := CountWhere(tasks, func(t model.Task) bool { return t.Completed })
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}

// OverviewStats は概要タブの集計値。
type OverviewStats struct {
	Hypotheses      int `json:"hypotheses"`
	Questions       int `json:"questions"`
	SelectedMethods int `json:"selectedMethods"`
}

// ParticipantStats は参加者タブの集計値。
type ParticipantStats struct {
	Participants int `json:"participants"`
	Criteria     int `json:"criteria"`
}

// PlanStats は計画タブの集計値。
type PlanStats struct {
	Sessions       int `json:"sessions"`
	CompletedTasks int `json:"completedTasks"`
	TotalTasks     int `json:"totalTasks"`
	Progress       int `json:"progress"`
}

// DataStats はデータ収集タブの集計値。
type DataStats struct {
	Observations int `json:"observations"`
	Quotes       int `json:"quotes"`
	HighSeverity int `json:"highSeverity"`
}

// InsightStats は分析タブの集計値。
type InsightStats struct {
	Insights   int `json:"insights"`
	HighImpact int `json:"highImpact"`
	Themes     int `json:"themes"`
}

// RecommendationStats は提案タブの集計値。
type RecommendationStats struct {
	Total          int `json:"total"`
	HighPriority   int `json:"highPriority"`
	MediumPriority int `json:"mediumPriority"`
	QuickWins      int `json:"quickWins"`
}

// Overview は概要タブの集計値を算出する。
func Overview(hypotheses, questions []model.Statement, methods []string) OverviewStats {
	return OverviewStats{
		Hypotheses:      len(hypotheses),
		Questions:       len(questions),
		SelectedMethods: len(methods),
	}
}

// Participants は参加者タブの集計値を算出する。
func Participants(participants []model.Participant, criteria []model.Statement) ParticipantStats {
	return ParticipantStats{
		Participants: len(participants),
		Criteria:     len(criteria),
	}
}

// Plan は計画タブの集計値を算出する。
func Plan(sessions []model.ResearchSession, tasks []model.Task) PlanStats {
	return PlanStats{
		Sessions:       len(sessions),
		CompletedTasks: CountWhere(tasks, func(t model.Task) bool { return t.Completed }),
		TotalTasks:     len(tasks),
		Progress:       CompletionPercentage(tasks),
	}
}

// Data はデータ収集タブの集計値を算出する。
func Data(observations []model.Observation, quotes []model.Quote) DataStats {
	return DataStats{
		Observations: len(observations),
		Quotes:       len(quotes),
		HighSeverity: CountWhere(observations, func(o model.Observation) bool {
			return o.Severity == model.LevelHigh
		}),
	}
}

// Insights は分析タブの集計値を算出する。
func Insights(insights []model.Insight, themes []model.Theme) InsightStats {
	return InsightStats{
		Insights:   len(insights),
		HighImpact: CountWhere(insights, func(i model.Insight) bool { return i.Impact == model.LevelHigh }),
		Themes:     len(themes),
	}
}

// Recommendations は提案タブの集計値を算出する。
// クイックウィンは優先度High・工数Lowの提案。
func Recommendations(recs []model.Recommendation) RecommendationStats {
	return RecommendationStats{
		Total:          len(recs),
		HighPriority:   CountWhere(recs, func(r model.Recommendation) bool { return r.Priority == model.LevelHigh }),
		MediumPriority: CountWhere(recs, func(r model.Recommendation) bool { return r.Priority == model.LevelMedium }),
		QuickWins:      CountWhere(recs, model.Recommendation.QuickWin),
	}
}

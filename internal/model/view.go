package model

import "fmt"

// RecordKind はレコードコレクションの種類名。永続化スナップショットのキーにもなる。
type RecordKind string

const (
	KindHypotheses      RecordKind = "hypotheses"
	KindQuestions       RecordKind = "questions"
	KindCriteria        RecordKind = "criteria"
	KindParticipants    RecordKind = "participants"
	KindSessions        RecordKind = "sessions"
	KindTasks           RecordKind = "tasks"
	KindObservations    RecordKind = "observations"
	KindQuotes          RecordKind = "quotes"
	KindInsights        RecordKind = "insights"
	KindThemes          RecordKind = "themes"
	KindRecommendations RecordKind = "recommendations"
)

// RecordKinds は全レコード種別を表示順で返す。
func RecordKinds() []RecordKind {
	return []RecordKind{
		KindHypotheses, KindQuestions, KindCriteria, KindParticipants, KindSessions,
		KindTasks, KindObservations, KindQuotes, KindInsights, KindThemes, KindRecommendations,
	}
}

// ParseRecordKind は文字列をRecordKindに変換する。
func ParseRecordKind(s string) (RecordKind, error) {
	for _, k := range RecordKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRecordKind, s)
}

// View は画面上のタブを表す。
type View string

const (
	ViewOverview        View = "overview"
	ViewParticipants    View = "participants"
	ViewPlan            View = "plan"
	ViewData            View = "data"
	ViewInsights        View = "insights"
	ViewRecommendations View = "recommendations"
	ViewGuide           View = "guide"
)

// Views は全タブを表示順で返す。
func Views() []View {
	return []View{
		ViewOverview, ViewParticipants, ViewPlan, ViewData,
		ViewInsights, ViewRecommendations, ViewGuide,
	}
}

// ParseView は文字列をViewに変換する。未知のタブ名はErrUnknownViewを返す。
func ParseView(s string) (View, error) {
	for _, v := range Views() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Label はタブの表示名を返す。
func (v View) Label() string {
	switch v {
	case ViewOverview:
		return "Overview"
	case ViewParticipants:
		return "Participants"
	case ViewPlan:
		return "Plan"
	case ViewData:
		return "Data"
	case ViewInsights:
		return "Insights"
	case ViewRecommendations:
		return "Recommendations"
	case ViewGuide:
		return "How to Use"
	default:
		return string(v)
	}
}

// Kinds はタブが表示するレコード種別を返す。ガイドタブは静的テキストのみのため空。
func (v View) Kinds() []RecordKind {
	switch v {
	case ViewOverview:
		return []RecordKind{KindHypotheses, KindQuestions}
	case ViewParticipants:
		return []RecordKind{KindParticipants, KindCriteria}
	case ViewPlan:
		return []RecordKind{KindSessions, KindTasks}
	case ViewData:
		return []RecordKind{KindObservations, KindQuotes}
	case ViewInsights:
		return []RecordKind{KindInsights, KindThemes}
	case ViewRecommendations:
		return []RecordKind{KindRecommendations}
	default:
		return nil
	}
}

// ViewOf はレコード種別を表示するタブを返す。
func ViewOf(kind RecordKind) View {
	for _, v := range Views() {
		for _, k := range v.Kinds() {
			if k == kind {
				return v
			}
		}
	}
	return ViewGuide
}

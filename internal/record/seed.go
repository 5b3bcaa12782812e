package record

import "github.com/hitoshi/uxtemplate/internal/model"

// 各タブを初めて表示したときに投入されるデモ内容。
// ECサイトのチェックアウト改善調査を題材にしている。

func SeedHypotheses() []model.Statement {
	return []model.Statement{
		{Text: "Users abandon cart due to unexpected shipping costs"},
		{Text: "Complex form fields cause friction and errors"},
		{Text: "Lack of trust signals reduces completion rates"},
	}
}

func SeedQuestions() []model.Statement {
	return []model.Statement{
		{Text: "What information do users expect to see during checkout?"},
		{Text: "At what point do users feel hesitation or doubt?"},
		{Text: "What would increase user confidence to complete purchase?"},
	}
}

func SeedCriteria() []model.Statement {
	return []model.Statement{
		{Text: "Has made at least 3 online purchases in the last month"},
		{Text: "Uses mobile devices for shopping"},
		{Text: "Age range: 25-50"},
	}
}

func SeedParticipants() []model.Participant {
	return []model.Participant{
		{Name: "Sarah Chen", Age: "32", Role: "Product Manager", Experience: "Advanced user"},
		{Name: "Marcus Johnson", Age: "28", Role: "Designer", Experience: "Intermediate user"},
		{Name: "Emily Rodriguez", Age: "45", Role: "Business Analyst", Experience: "Beginner user"},
	}
}

func SeedSessions() []model.ResearchSession {
	return []model.ResearchSession{
		{Date: "2025-01-15", Time: "10:00 AM", Participant: "Sarah Chen", Method: "Interview"},
		{Date: "2025-01-15", Time: "2:00 PM", Participant: "Marcus Johnson", Method: "Usability Test"},
		{Date: "2025-01-16", Time: "10:00 AM", Participant: "Emily Rodriguez", Method: "Interview"},
	}
}

func SeedTasks() []model.Task {
	return []model.Task{
		{Task: "Prepare interview script", Completed: true},
		{Task: "Set up recording equipment", Completed: true},
		{Task: "Send confirmation emails to participants", Completed: false},
		{Task: "Prepare consent forms", Completed: false},
	}
}

func SeedObservations() []model.Observation {
	return []model.Observation{
		{Participant: "Sarah Chen", Timestamp: "00:05:30", Observation: "Hesitated at shipping cost section", Severity: model.LevelHigh},
		{Participant: "Sarah Chen", Timestamp: "00:08:15", Observation: "Successfully completed form with autocomplete", Severity: model.LevelLow},
		{Participant: "Marcus Johnson", Timestamp: "00:03:20", Observation: "Confused by payment options layout", Severity: model.LevelMedium},
	}
}

func SeedQuotes() []model.Quote {
	return []model.Quote{
		{Participant: "Sarah Chen", Quote: "I wasn't expecting the shipping to be that expensive, it made me pause."},
		{Participant: "Marcus Johnson", Quote: "The payment buttons are a bit confusing - I wasn't sure which one to click."},
		{Participant: "Emily Rodriguez", Quote: "I really like how fast the form filled in my address automatically."},
	}
}

func SeedInsights() []model.Insight {
	return []model.Insight{
		{
			Title:   "Users abandon cart when costs appear late",
			Summary: "67% of participants expressed frustration when shipping costs were only revealed at the final checkout step.",
			Impact:  model.LevelHigh,
		},
		{
			Title:   "Guest checkout is strongly preferred",
			Summary: "8 out of 10 first-time buyers attempted to complete purchase without creating an account.",
			Impact:  model.LevelHigh,
		},
		{
			Title:   "Security indicators reduce hesitation",
			Summary: "Participants who noticed security badges expressed higher confidence in completing the purchase.",
			Impact:  model.LevelMedium,
		},
	}
}

func SeedThemes() []model.Theme {
	return []model.Theme{
		{Name: "Trust & Transparency", Count: 12},
		{Name: "Ease of Use", Count: 8},
		{Name: "Speed & Performance", Count: 6},
	}
}

func SeedRecommendations() []model.Recommendation {
	return []model.Recommendation{
		{
			Title:       "Display shipping costs earlier in the flow",
			Description: "Show estimated shipping on product pages and cart summary to eliminate surprises at checkout.",
			Priority:    model.LevelHigh,
			Effort:      model.LevelMedium,
		},
		{
			Title:       "Add guest checkout option",
			Description: "Allow users to complete purchases without mandatory account creation to reduce friction.",
			Priority:    model.LevelHigh,
			Effort:      model.LevelLow,
		},
		{
			Title:       "Increase trust signal visibility",
			Description: "Add security badges, SSL indicators, and customer testimonials prominently near payment fields.",
			Priority:    model.LevelMedium,
			Effort:      model.LevelLow,
		},
	}
}

// SeedMethods は概要タブで初期選択されている調査手法。
func SeedMethods() []string {
	return []string{"User Interviews", "Usability Testing", "Analytics Review", "Survey", "Heatmap Analysis"}
}

// AvailableMethods は選択可能な調査手法の一覧。
func AvailableMethods() []string {
	return []string{
		"User Interviews", "Usability Testing", "Analytics Review", "Survey",
		"Heatmap Analysis", "A/B Testing", "Card Sorting", "Tree Testing",
	}
}

// 追加ボタンで末尾に挿入される既定レコード。

func DefaultObservation() model.Observation {
	return model.Observation{Severity: model.LevelLow}
}

func DefaultInsight() model.Insight {
	return model.Insight{Impact: model.LevelMedium}
}

func DefaultRecommendation() model.Recommendation {
	return model.Recommendation{Priority: model.LevelMedium, Effort: model.LevelMedium}
}

package stats

import (
	"testing"

	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/record"
)

func TestCompletionPercentage(t *testing.T) {
	tests := []struct {
		name  string
		tasks []model.Task
		want  int
	}{
		{name: "タスクなし", tasks: nil, want: 0},
		{name: "初期タスク（4件中2件完了）", tasks: record.SeedTasks(), want: 50},
		{name: "全件完了", tasks: []model.Task{{Completed: true}, {Completed: true}}, want: 100},
		{name: "全件未完了", tasks: []model.Task{{}, {}, {}}, want: 0},
		{name: "3件中1件完了", tasks: []model.Task{{Completed: true}, {}, {}}, want: 33},
		{name: "3件中2件完了", tasks: []model.Task{{Completed: true}, {Completed: true}, {}}, want: 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompletionPercentage(tt.tasks); got != tt.want {
				t.Errorf("CompletionPercentage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCompletionPercentage_Bounds(t *testing.T) {
	for n := 0; n <= 7; n++ {
		for done := 0; done <= n; done++ {
			tasks := make([]model.Task, n)
			for i := 0; i < done; i++ {
				tasks[i].Completed = true
			}
			got := CompletionPercentage(tasks)
			if got < 0 || got > 100 {
				t.Errorf("n=%d done=%d: %d が0〜100の範囲外", n, done, got)
			}
		}
	}
}

func TestCountWhere(t *testing.T) {
	got := CountWhere([]int{1, 2, 3, 4, 5}, func(n int) bool { return n%2 == 1 })
	if got != 3 {
		t.Errorf("CountWhere() = %d, want 3", got)
	}
	if got := CountWhere[int](nil, func(int) bool { return true }); got != 0 {
		t.Errorf("空スライスのCountWhere() = %d, want 0", got)
	}
}

func TestPlan_Seed(t *testing.T) {
	got := Plan(record.SeedSessions(), record.SeedTasks())

	want := PlanStats{Sessions: 3, CompletedTasks: 2, TotalTasks: 4, Progress: 50}
	if got != want {
		t.Errorf("Plan() = %+v, want %+v", got, want)
	}
}

func TestRecommendations_Seed(t *testing.T) {
	got := Recommendations(record.SeedRecommendations())

	want := RecommendationStats{Total: 3, HighPriority: 2, MediumPriority: 1, QuickWins: 1}
	if got != want {
		t.Errorf("Recommendations() = %+v, want %+v", got, want)
	}
}

func TestData_Seed(t *testing.T) {
	got := Data(record.SeedObservations(), record.SeedQuotes())

	want := DataStats{Observations: 3, Quotes: 3, HighSeverity: 1}
	if got != want {
		t.Errorf("Data() = %+v, want %+v", got, want)
	}
}

func TestInsights_Seed(t *testing.T) {
	got := Insights(record.SeedInsights(), record.SeedThemes())

	want := InsightStats{Insights: 3, HighImpact: 2, Themes: 3}
	if got != want {
		t.Errorf("Insights() = %+v, want %+v", got, want)
	}
}

func TestOverviewAndParticipants_Seed(t *testing.T) {
	o := Overview(record.SeedHypotheses(), record.SeedQuestions(), record.SeedMethods())
	if o != (OverviewStats{Hypotheses: 3, Questions: 3, SelectedMethods: 5}) {
		t.Errorf("Overview() = %+v", o)
	}

	p := Participants(record.SeedParticipants(), record.SeedCriteria())
	if p != (ParticipantStats{Participants: 3, Criteria: 3}) {
		t.Errorf("Participants() = %+v", p)
	}
}

func TestStats_RecomputeAfterMutation(t *testing.T) {
	s := record.NewStore(model.KindTasks, record.SeedTasks())
	if _, err := record.Toggle(s, 2); err != nil {
		t.Fatalf("Toggle がエラーを返した: %v", err)
	}

	if got := CompletionPercentage(s.Items()); got != 75 {
		t.Errorf("切り替え後の進捗 = %d, want 75", got)
	}
}

package model

import (
	"fmt"
	"strconv"
)

// Record はレコードストアが扱うレコード型の制約。
// Setはフィールドを1つ置き換えた新しいレコードを返し、レシーバーは変更しない。
type Record[R any] interface {
	Set(field, value string) (R, error)
	Fields() []string
}

// Toggler は完了フラグを反転できるレコード型の制約。
type Toggler[R any] interface {
	Toggled() R
}

// Validator は保存済みデータから復元したレコードを検査できるレコード型が実装する。
// Setで受け付けない値を含む場合はErrInvalidFieldValueを返す。
type Validator interface {
	Validate() error
}

// Level は重要度・優先度・工数などの3段階評価を表す。
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// ParseLevel は文字列をLevelに変換する。Low, Medium, High以外はエラーを返す。
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelLow, LevelMedium, LevelHigh:
		return Level(s), nil
	default:
		return "", fmt.Errorf("invalid level: %q", s)
	}
}

func unknownField(field string) error {
	return fmt.Errorf("%w: %q", ErrUnknownField, field)
}

func invalidValue(field, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidFieldValue, field, value)
}

func checkLevel(field string, l Level) error {
	if _, err := ParseLevel(string(l)); err != nil {
		return invalidValue(field, string(l))
	}
	return nil
}

func setLevel(dst *Level, field, value string) error {
	l, err := ParseLevel(value)
	if err != nil {
		return invalidValue(field, value)
	}
	*dst = l
	return nil
}

// Statement は仮説・調査質問・参加者選定条件などの1行テキストを表す。
type Statement struct {
	Text string `json:"text"`
}

func (s Statement) Fields() []string { return []string{"text"} }

func (s Statement) Set(field, value string) (Statement, error) {
	switch field {
	case "text":
		s.Text = value
	default:
		return s, unknownField(field)
	}
	return s, nil
}

// Participant は調査参加者のプロフィール。
type Participant struct {
	Name       string `json:"name"`
	Age        string `json:"age"`
	Role       string `json:"role"`
	Experience string `json:"experience"`
}

func (p Participant) Fields() []string { return []string{"name", "age", "role", "experience"} }

func (p Participant) Set(field, value string) (Participant, error) {
	switch field {
	case "name":
		p.Name = value
	case "age":
		p.Age = value
	case "role":
		p.Role = value
	case "experience":
		p.Experience = value
	default:
		return p, unknownField(field)
	}
	return p, nil
}

// ResearchSession は調査セッションの予定を表す。
type ResearchSession struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Participant string `json:"participant"`
	Method      string `json:"method"`
}

func (s ResearchSession) Fields() []string { return []string{"date", "time", "participant", "method"} }

func (s ResearchSession) Set(field, value string) (ResearchSession, error) {
	switch field {
	case "date":
		s.Date = value
	case "time":
		s.Time = value
	case "participant":
		s.Participant = value
	case "method":
		s.Method = value
	default:
		return s, unknownField(field)
	}
	return s, nil
}

// Task は調査準備のチェックリスト項目。
type Task struct {
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
}

func (t Task) Fields() []string { return []string{"task", "completed"} }

func (t Task) Set(field, value string) (Task, error) {
	switch field {
	case "task":
		t.Task = value
	case "completed":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return t, invalidValue(field, value)
		}
		t.Completed = b
	default:
		return t, unknownField(field)
	}
	return t, nil
}

// Toggled は完了フラグを反転したTaskを返す。
func (t Task) Toggled() Task {
	t.Completed = !t.Completed
	return t
}

// Observation はセッション中の観察記録。
type Observation struct {
	Participant string `json:"participant"`
	Timestamp   string `json:"timestamp"`
	Observation string `json:"observation"`
	Severity    Level  `json:"severity"`
}

func (o Observation) Fields() []string {
	return []string{"participant", "timestamp", "observation", "severity"}
}

func (o Observation) Set(field, value string) (Observation, error) {
	switch field {
	case "participant":
		o.Participant = value
	case "timestamp":
		o.Timestamp = value
	case "observation":
		o.Observation = value
	case "severity":
		if err := setLevel(&o.Severity, field, value); err != nil {
			return o, err
		}
	default:
		return o, unknownField(field)
	}
	return o, nil
}

// Validate はseverityが3段階評価のいずれかであることを確認する。
func (o Observation) Validate() error {
	return checkLevel("severity", o.Severity)
}

// Quote は参加者の発言の引用。
type Quote struct {
	Participant string `json:"participant"`
	Quote       string `json:"quote"`
}

func (q Quote) Fields() []string { return []string{"participant", "quote"} }

func (q Quote) Set(field, value string) (Quote, error) {
	switch field {
	case "participant":
		q.Participant = value
	case "quote":
		q.Quote = value
	default:
		return q, unknownField(field)
	}
	return q, nil
}

// Insight は分析から得られた知見。
type Insight struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Impact  Level  `json:"impact"`
}

func (i Insight) Fields() []string { return []string{"title", "summary", "impact"} }

func (i Insight) Set(field, value string) (Insight, error) {
	switch field {
	case "title":
		i.Title = value
	case "summary":
		i.Summary = value
	case "impact":
		if err := setLevel(&i.Impact, field, value); err != nil {
			return i, err
		}
	default:
		return i, unknownField(field)
	}
	return i, nil
}

// Validate はimpactが3段階評価のいずれかであることを確認する。
func (i Insight) Validate() error {
	return checkLevel("impact", i.Impact)
}

// Theme はアフィニティ分析で抽出されたテーマと出現回数。
type Theme struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (t Theme) Fields() []string { return []string{"name", "count"} }

func (t Theme) Set(field, value string) (Theme, error) {
	switch field {
	case "name":
		t.Name = value
	case "count":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return t, invalidValue(field, value)
		}
		t.Count = n
	default:
		return t, unknownField(field)
	}
	return t, nil
}

// Validate は出現回数が負でないことを確認する。
func (t Theme) Validate() error {
	if t.Count < 0 {
		return invalidValue("count", strconv.Itoa(t.Count))
	}
	return nil
}

// Recommendation は改善提案。
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    Level  `json:"priority"`
	Effort      Level  `json:"effort"`
}

func (r Recommendation) Fields() []string {
	return []string{"title", "description", "priority", "effort"}
}

func (r Recommendation) Set(field, value string) (Recommendation, error) {
	switch field {
	case "title":
		r.Title = value
	case "description":
		r.Description = value
	case "priority":
		if err := setLevel(&r.Priority, field, value); err != nil {
			return r, err
		}
	case "effort":
		if err := setLevel(&r.Effort, field, value); err != nil {
			return r, err
		}
	default:
		return r, unknownField(field)
	}
	return r, nil
}

// Validate はpriorityとeffortが3段階評価のいずれかであることを確認する。
func (r Recommendation) Validate() error {
	if err := checkLevel("priority", r.Priority); err != nil {
		return err
	}
	return checkLevel("effort", r.Effort)
}

// QuickWin は優先度High・工数Lowの提案かどうかを返す。
func (r Recommendation) QuickWin() bool {
	return r.Priority == LevelHigh && r.Effort == LevelLow
}

// compile-time interface check
var (
	_ Record[Statement]       = Statement{}
	_ Record[Participant]     = Participant{}
	_ Record[ResearchSession] = ResearchSession{}
	_ Record[Task]            = Task{}
	_ Toggler[Task]           = Task{}
	_ Record[Observation]     = Observation{}
	_ Validator               = Observation{}
	_ Record[Quote]           = Quote{}
	_ Record[Insight]         = Insight{}
	_ Validator               = Insight{}
	_ Record[Theme]           = Theme{}
	_ Validator               = Theme{}
	_ Record[Recommendation]  = Recommendation{}
	_ Validator               = Recommendation{}
)

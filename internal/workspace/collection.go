package workspace

import (
	"encoding/json"
	"fmt"

	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/record"
)

// collection はレコード種別ごとのrecord.Storeを種別に依存しない形で扱う。
// 戻り値のanyは種別ごとのレコード型（またはそのスライス）で、JSONにそのまま変換できる。
type collection interface {
	items() any
	length() int
	add() any
	removeAt(index int) error
	updateField(index int, field, value string) (any, error)
	toggle(index int) (any, error)
	encode() (json.RawMessage, error)
	restore(raw json.RawMessage) error
}

type typedCollection[R model.Record[R]] struct {
	store      *record.Store[R]
	newDefault func() R
	toggleFn   func(*record.Store[R], int) (R, error)
}

func newTyped[R model.Record[R]](kind model.RecordKind, seed []R, newDefault func() R) *typedCollection[R] {
	return &typedCollection[R]{
		store:      record.NewStore(kind, seed),
		newDefault: newDefault,
	}
}

func (c *typedCollection[R]) items() any { return c.store.Items() }

func (c *typedCollection[R]) length() int { return c.store.Len() }

func (c *typedCollection[R]) add() any { return c.store.Add(c.newDefault()) }

func (c *typedCollection[R]) removeAt(index int) error { return c.store.RemoveAt(index) }

func (c *typedCollection[R]) updateField(index int, field, value string) (any, error) {
	r, err := c.store.UpdateField(index, field, value)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *typedCollection[R]) toggle(index int) (any, error) {
	if c.toggleFn == nil {
		return nil, fmt.Errorf("%s: %w", c.store.Kind(), model.ErrNotToggleable)
	}
	r, err := c.toggleFn(c.store, index)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *typedCollection[R]) encode() (json.RawMessage, error) {
	return json.Marshal(c.store.Items())
}

// restore は保存済みのJSON配列で内容を置き換える。
// レコード内の未知のフィールドは無視する。Setで受け付けない値を含む場合は
// 内容を変更せずにエラーを返す。
func (c *typedCollection[R]) restore(raw json.RawMessage) error {
	var items []R
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("failed to decode %s: %w", c.store.Kind(), err)
	}
	for i, item := range items {
		v, ok := any(item).(model.Validator)
		if !ok {
			continue
		}
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid %s[%d]: %w", c.store.Kind(), i, err)
		}
	}
	c.store.Replace(items)
	return nil
}

func zero[R any]() R {
	var r R
	return r
}

// newCollection は種別ごとの初期データと既定レコードを持つcollectionを生成する。
func newCollection(kind model.RecordKind) (collection, error) {
	switch kind {
	case model.KindHypotheses:
		return newTyped(kind, record.SeedHypotheses(), zero[model.Statement]), nil
	case model.KindQuestions:
		return newTyped(kind, record.SeedQuestions(), zero[model.Statement]), nil
	case model.KindCriteria:
		return newTyped(kind, record.SeedCriteria(), zero[model.Statement]), nil
	case model.KindParticipants:
		return newTyped(kind, record.SeedParticipants(), zero[model.Participant]), nil
	case model.KindSessions:
		return newTyped(kind, record.SeedSessions(), zero[model.ResearchSession]), nil
	case model.KindTasks:
		c := newTyped(kind, record.SeedTasks(), zero[model.Task])
		c.toggleFn = record.Toggle[model.Task]
		return c, nil
	case model.KindObservations:
		return newTyped(kind, record.SeedObservations(), record.DefaultObservation), nil
	case model.KindQuotes:
		return newTyped(kind, record.SeedQuotes(), zero[model.Quote]), nil
	case model.KindInsights:
		return newTyped(kind, record.SeedInsights(), record.DefaultInsight), nil
	case model.KindThemes:
		return newTyped(kind, record.SeedThemes(), zero[model.Theme]), nil
	case model.KindRecommendations:
		return newTyped(kind, record.SeedRecommendations(), record.DefaultRecommendation), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownRecordKind, kind)
	}
}

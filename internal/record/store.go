// Package record はレコード種別ごとの順序付きコレクションと、その追加・削除・更新操作を提供する。
//
// Storeは変更のたびに新しいスライスを生成する。Itemsで取得したスライスは
// 以降の操作で書き換えられないため、変更検知のための比較に使用できる。
package record

import (
	"fmt"

	"github.com/hitoshi/uxtemplate/internal/model"
)

// Store は1つのレコード種別の順序付きコレクション。
// 挿入順が表示順であり、ソートキーは持たない。
// 並行アクセスの排他は呼び出し側（workspace）が行う。
type Store[R model.Record[R]] struct {
	kind  model.RecordKind
	items []R
}

// NewStore は初期内容seedを持つStoreを生成する。seedはコピーされる。
func NewStore[R model.Record[R]](kind model.RecordKind, seed []R) *Store[R] {
	items := make([]R, len(seed))
	copy(items, seed)
	return &Store[R]{kind: kind, items: items}
}

// Kind はレコード種別を返す。
func (s *Store[R]) Kind() model.RecordKind {
	return s.kind
}

// Items は現在のレコード列を返す。返したスライスは以降変更されない。
func (s *Store[R]) Items() []R {
	return s.items
}

// Len はレコード数を返す。
func (s *Store[R]) Len() int {
	return len(s.items)
}

// Add はdefaultRecordを末尾に追加し、追加したレコードを返す。常に成功する。
func (s *Store[R]) Add(defaultRecord R) R {
	next := make([]R, len(s.items), len(s.items)+1)
	copy(next, s.items)
	s.items = append(next, defaultRecord)
	return defaultRecord
}

// RemoveAt は指定位置のレコードを削除する。残りのレコードの相対順序は保たれる。
// 範囲外の場合はErrIndexOutOfRangeを返し、内容は変更しない。
func (s *Store[R]) RemoveAt(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	next := make([]R, 0, len(s.items)-1)
	next = append(next, s.items[:index]...)
	next = append(next, s.items[index+1:]...)
	s.items = next
	return nil
}

// UpdateField は指定位置のレコードのフィールドを1つ置き換え、更新後のレコードを返す。
// 範囲外の場合はErrIndexOutOfRange、スキーマにないフィールドの場合はErrUnknownFieldを返す。
// エラー時は内容を変更しない。
func (s *Store[R]) UpdateField(index int, field, value string) (R, error) {
	var zero R
	if err := s.checkIndex(index); err != nil {
		return zero, err
	}
	updated, err := s.items[index].Set(field, value)
	if err != nil {
		return zero, fmt.Errorf("%s[%d]: %w", s.kind, index, err)
	}
	s.replace(index, updated)
	return updated, nil
}

// Update は指定位置のレコードをfnの戻り値で置き換える。
// フィールド名を型で指定できるGoの呼び出し側向け。
func (s *Store[R]) Update(index int, fn func(R) R) (R, error) {
	var zero R
	if err := s.checkIndex(index); err != nil {
		return zero, err
	}
	updated := fn(s.items[index])
	s.replace(index, updated)
	return updated, nil
}

// Replace はレコード列全体を置き換える。永続化スナップショットからの復元に使用する。
func (s *Store[R]) Replace(items []R) {
	next := make([]R, len(items))
	copy(next, items)
	s.items = next
}

func (s *Store[R]) replace(index int, r R) {
	next := make([]R, len(s.items))
	copy(next, s.items)
	next[index] = r
	s.items = next
}

func (s *Store[R]) checkIndex(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%s[%d] (len %d): %w", s.kind, index, len(s.items), model.ErrIndexOutOfRange)
	}
	return nil
}

// Toggle は完了フラグを持つレコードのフラグを反転し、更新後のレコードを返す。
func Toggle[R interface {
	model.Record[R]
	model.Toggler[R]
}](s *Store[R], index int) (R, error) {
	return s.Update(index, func(r R) R { return r.Toggled() })
}

package workspace

import (
	"fmt"
	"sync"

	"github.com/hitoshi/uxtemplate/internal/model"
)

// ViewSelector は表示中のタブを1つだけ保持する。初期値はoverview。
// レコードの内容には関与しない。
type ViewSelector struct {
	mu     sync.RWMutex
	active model.View
}

// NewViewSelector はoverviewを選択した状態のViewSelectorを生成する。
func NewViewSelector() *ViewSelector {
	return &ViewSelector{active: model.ViewOverview}
}

// Active は表示中のタブを返す。
func (s *ViewSelector) Active() model.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Select はタブを切り替える。定義済みのタブ以外はErrUnknownViewを返し、選択は変わらない。
func (s *ViewSelector) Select(v model.View) error {
	if _, err := model.ParseView(string(v)); err != nil {
		return fmt.Errorf("select view: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = v
	return nil
}

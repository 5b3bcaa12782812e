package model

import "encoding/json"

// Snapshot は永続化されるワークスペースの内容。
// Recordsはレコード種別名からJSON配列への対応で、未知の種別も読み書きで保持する。
type Snapshot struct {
	Identity *Identity                  `json:"identity,omitempty"`
	Records  map[string]json.RawMessage `json:"records"`
	Methods  []string                   `json:"methods,omitempty"`
}

// DecodeSnapshot はJSONからSnapshotを復元する。未知のフィールドは無視する。
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Records == nil {
		s.Records = make(map[string]json.RawMessage)
	}
	return &s, nil
}

// Encode はSnapshotをJSONに変換する。
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/uxtemplate/internal/middleware"
	"github.com/hitoshi/uxtemplate/internal/model"
)

// RecordsHandler はレコードストアのHTTPハンドラー。
type RecordsHandler struct {
	workspaces WorkspaceSource
	errors     errorWriter
}

// NewRecordsHandler はRecordsHandlerを生成する。
func NewRecordsHandler(workspaces WorkspaceSource, opts Options) *RecordsHandler {
	return &RecordsHandler{
		workspaces: workspaces,
		errors:     opts.errorWriter(),
	}
}

// --- レスポンス型 ---

// recordListResponse はレコード一覧のレスポンス。
type recordListResponse struct {
	Kind    model.RecordKind `json:"kind"`
	Records any              `json:"records"`
}

// recordResponse は単一レコードのレスポンス。
type recordResponse struct {
	Kind   model.RecordKind `json:"kind"`
	Record any              `json:"record"`
}

// updateFieldRequest はフィールド更新リクエストのボディ。
// valueは文字列のほか、数値や真偽値をそのまま指定してもよい。
type updateFieldRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// List はレコード一覧を返す。
// GET /api/records/{kind}
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	ec := errorContext{Endpoint: "records.list"}
	kind, ok := h.parseKind(w, r, &ec)
	if !ok {
		return
	}

	items, err := ws.List(r.Context(), kind)
	if err != nil {
		h.errors.write(w, r, err, ec)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, recordListResponse{Kind: kind, Records: items})
}

// Add は既定値のレコードを末尾に追加する。
// POST /api/records/{kind}
func (h *RecordsHandler) Add(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	ec := errorContext{Endpoint: "records.add"}
	kind, ok := h.parseKind(w, r, &ec)
	if !ok {
		return
	}

	added, err := ws.Add(r.Context(), kind)
	if err != nil {
		h.errors.write(w, r, err, ec)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, recordResponse{Kind: kind, Record: added})
}

// Remove は指定位置のレコードを削除する。
// DELETE /api/records/{kind}/{index}
func (h *RecordsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	ec := errorContext{Endpoint: "records.remove"}
	kind, index, ok := h.parseTarget(w, r, &ec)
	if !ok {
		return
	}

	if err := ws.RemoveAt(r.Context(), kind, index); err != nil {
		h.errors.write(w, r, err, ec)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateField は指定位置のレコードのフィールドを1つ更新する。
// PATCH /api/records/{kind}/{index}
func (h *RecordsHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	ec := errorContext{Endpoint: "records.update"}
	kind, index, ok := h.parseTarget(w, r, &ec)
	if !ok {
		return
	}

	var req updateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "body must be {\"field\": ..., \"value\": ...}")
		return
	}
	if req.Field == "" {
		writeInvalidRequest(w, "field is required")
		return
	}
	ec.Field = req.Field

	value, err := fieldValue(req.Value)
	if err != nil {
		writeInvalidRequest(w, "value must be a string, number or boolean")
		return
	}

	updated, err := ws.UpdateField(r.Context(), kind, index, req.Field, value)
	if err != nil {
		h.errors.write(w, r, err, ec)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, recordResponse{Kind: kind, Record: updated})
}

// Toggle は完了フラグを反転する。
// POST /api/records/{kind}/{index}/toggle
func (h *RecordsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	ec := errorContext{Endpoint: "records.toggle"}
	kind, index, ok := h.parseTarget(w, r, &ec)
	if !ok {
		return
	}

	toggled, err := ws.Toggle(r.Context(), kind, index)
	if err != nil {
		h.errors.write(w, r, err, ec)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, recordResponse{Kind: kind, Record: toggled})
}

func (h *RecordsHandler) parseKind(w http.ResponseWriter, r *http.Request, ec *errorContext) (model.RecordKind, bool) {
	raw := chi.URLParam(r, "kind")
	ec.RawKind = raw
	kind, err := model.ParseRecordKind(raw)
	if err != nil {
		h.errors.write(w, r, err, *ec)
		return "", false
	}
	ec.Kind = kind
	return kind, true
}

func (h *RecordsHandler) parseTarget(w http.ResponseWriter, r *http.Request, ec *errorContext) (model.RecordKind, int, bool) {
	kind, ok := h.parseKind(w, r, ec)
	if !ok {
		return "", 0, false
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeInvalidRequest(w, "index must be an integer")
		return "", 0, false
	}
	ec.Index = index
	return kind, index, true
}

// fieldValue はJSONの値をレコードのSetに渡す文字列に変換する。
// 文字列はそのまま、数値と真偽値はJSON表記のまま返す。
func fieldValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", model.ErrInvalidFieldValue
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return string(raw), nil
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/uxtemplate/internal/middleware"
	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/workspace"
)

// WorkspaceSource はクライアントIDに対応するWorkspaceを返す。workspace.Managerが実装する。
type WorkspaceSource interface {
	Get(clientID string) *workspace.Workspace
}

// resolveWorkspace はリクエストのクライアントIDからWorkspaceを取得する。
// クライアントIDがない場合は400を書き込みfalseを返す。
func resolveWorkspace(w http.ResponseWriter, r *http.Request, source WorkspaceSource) (*workspace.Workspace, bool) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		writeInvalidRequest(w, "client id is missing")
		return nil, false
	}
	return source.Get(clientID), true
}

// WorkspaceHandler はタブ、調査手法、集計値のHTTPハンドラー。
type WorkspaceHandler struct {
	workspaces WorkspaceSource
	errors     errorWriter
}

// NewWorkspaceHandler はWorkspaceHandlerを生成する。
func NewWorkspaceHandler(workspaces WorkspaceSource, opts Options) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces: workspaces,
		errors:     opts.errorWriter(),
	}
}

// viewResponse は表示中のタブのレスポンス。
type viewResponse struct {
	View  model.View   `json:"view"`
	Label string       `json:"label"`
	Views []model.View `json:"views"`
}

// selectViewRequest はタブ切り替えリクエストのボディ。
type selectViewRequest struct {
	View string `json:"view"`
}

// toggleMethodRequest は調査手法の切り替えリクエストのボディ。
type toggleMethodRequest struct {
	Method string `json:"method"`
}

func newViewResponse(v model.View) viewResponse {
	return viewResponse{View: v, Label: v.Label(), Views: model.Views()}
}

// GetView は表示中のタブを返す。
// GET /api/view
func (h *WorkspaceHandler) GetView(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newViewResponse(ws.ActiveView()))
}

// SelectView はタブを切り替える。
// PUT /api/view
func (h *WorkspaceHandler) SelectView(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}

	var req selectViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "body must be {\"view\": ...}")
		return
	}

	if err := ws.SelectView(r.Context(), model.View(req.View)); err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "view.select", RawView: req.View})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newViewResponse(ws.ActiveView()))
}

// Methods は調査手法の選択状態を返す。
// GET /api/methods
func (h *WorkspaceHandler) Methods(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}

	selection, err := ws.Methods(r.Context())
	if err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "methods.list"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, selection)
}

// ToggleMethod は調査手法の選択を切り替える。
// POST /api/methods/toggle
func (h *WorkspaceHandler) ToggleMethod(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}

	var req toggleMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "body must be {\"method\": ...}")
		return
	}

	selection, err := ws.ToggleMethod(r.Context(), req.Method)
	if err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "methods.toggle", Field: "method"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, selection)
}

// Stats は全タブの集計値を返す。
// GET /api/stats
func (h *WorkspaceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ws, ok := resolveWorkspace(w, r, h.workspaces)
	if !ok {
		return
	}

	s, err := ws.Stats(r.Context())
	if err != nil {
		h.errors.write(w, r, err, errorContext{Endpoint: "stats"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}

// compile-time interface check
var _ WorkspaceSource = (*workspace.Manager)(nil)

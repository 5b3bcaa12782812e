package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/uxtemplate/internal/model"
)

// sessionLoadingRetryAfter はセッション読み込み中の503に付与するRetry-After（秒）。
const sessionLoadingRetryAfter = "1"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// Retryableは同じリクエストを後で再送すれば成功しうるかを示す。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Retryable bool   `json:"retryable"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// セッション読み込み中の503にはRetry-Afterを付与する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if apiErr.Code == model.ErrCodeSessionLoading && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", sessionLoadingRetryAfter)
	}
	WriteJSON(w, statusCode, ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		Retryable: isRetryable(statusCode, apiErr.Code),
	})
}

// isRetryable はIdPの拒否・到達不能、読み込み中、レート制限、サーバー障害を再試行可能とみなす。
// 記録の範囲外やフィールド不正などの呼び出し側の誤りは再試行しても結果が変わらない。
func isRetryable(statusCode int, code string) bool {
	switch {
	case code == model.ErrCodeAuthFailure:
		return true
	case statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// WriteJSON はステータスコードとJSONボディを書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

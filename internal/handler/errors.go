package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/uxtemplate/internal/middleware"
	"github.com/hitoshi/uxtemplate/internal/model"
)

// errorContext はAPIErrorのメッセージに含めるリクエスト上の対象。
type errorContext struct {
	Kind     model.RecordKind
	RawKind  string
	Index    int
	Field    string
	RawView  string
	Endpoint string
}

// Options はハンドラー共通の設定。
type Options struct {
	Logger *slog.Logger
	// Production がtrueの場合、呼び出し側の契約違反をWARNで記録する。falseではERROR。
	Production bool
}

func (o Options) errorWriter() errorWriter {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return errorWriter{logger: logger, production: o.Production}
}

// errorWriter はドメインエラーをHTTPステータスと統一エラーレスポンスに変換する。
type errorWriter struct {
	logger     *slog.Logger
	production bool
}

// write はerrをレスポンスに書き込む。
// 呼び出し側の契約違反は本番以外ではERROR、本番ではWARNで記録する。
func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error, ec errorContext) {
	status, apiErr, violation := mapError(err, ec)
	if apiErr == nil {
		e.logger.Error("internal server error",
			slog.String("endpoint", ec.Endpoint),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	if violation {
		level := slog.LevelError
		if e.production {
			level = slog.LevelWarn
		}
		e.logger.Log(r.Context(), level, "contract violation",
			slog.String("endpoint", ec.Endpoint),
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// mapError はerrに対応するHTTPステータスとAPIErrorを返す。
// violationは呼び出し側の契約違反（不正なインデックスやフィールド名など）であることを示す。
// 未知のエラーにはnilを返す。
func mapError(err error, ec errorContext) (status int, apiErr *model.APIError, violation bool) {
	switch {
	case errors.Is(err, model.ErrSessionLoading), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, model.NewSessionLoadingError(), false
	case errors.Is(err, model.ErrNotSignedIn):
		return http.StatusUnauthorized, model.NewUnauthorizedError(), false
	case errors.Is(err, model.ErrAuthFailure):
		return http.StatusUnauthorized, model.NewAuthFailureError(), false
	case errors.Is(err, model.ErrAccountExists):
		return http.StatusConflict, model.NewAccountExistsError(), false
	case errors.Is(err, model.ErrInvalidAccount):
		return http.StatusBadRequest, model.NewInvalidAccountError(err.Error()), false
	case errors.Is(err, model.ErrSignInSuperseded):
		return http.StatusConflict, model.NewSignInSupersededError(), false
	case errors.Is(err, model.ErrIndexOutOfRange):
		return http.StatusNotFound, model.NewIndexOutOfRangeError(ec.Kind, ec.Index), true
	case errors.Is(err, model.ErrUnknownField):
		return http.StatusBadRequest, model.NewUnknownFieldError(ec.Kind, ec.Field), true
	case errors.Is(err, model.ErrInvalidFieldValue):
		return http.StatusBadRequest, model.NewInvalidFieldValueError(ec.Field), true
	case errors.Is(err, model.ErrUnknownRecordKind):
		return http.StatusBadRequest, model.NewUnknownRecordKindError(ec.RawKind), true
	case errors.Is(err, model.ErrNotToggleable):
		return http.StatusBadRequest, model.NewNotToggleableError(ec.Kind), true
	case errors.Is(err, model.ErrUnknownView):
		return http.StatusBadRequest, model.NewUnknownViewError(ec.RawView), true
	}
	return http.StatusInternalServerError, nil, false
}

// writeInvalidRequest はリクエストボディやパスパラメータが解釈できない場合の400を書き込む。
func writeInvalidRequest(w http.ResponseWriter, reason string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
}

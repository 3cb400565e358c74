package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind はエラーの分類です
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindInactive        Kind = "inactive"
	KindConflict        Kind = "conflict"
	KindRateLimited     Kind = "rate_limited"
	KindUnauthorized    Kind = "unauthorized"
	KindDatabase        Kind = "database"
	KindExternalService Kind = "external_service"
	KindInternal        Kind = "internal"
)

// エラーコード
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidID            = "INVALID_ID"
	CodePresetNotFound       = "PRESET_NOT_FOUND"
	CodePresetInactive       = "PRESET_INACTIVE"
	CodeProductNotFound      = "PRODUCT_NOT_FOUND"
	CodeReservationNotFound  = "RESERVATION_NOT_FOUND"
	CodeFormSettingsNotFound = "FORM_SETTINGS_NOT_FOUND"
	CodeDuplicateCode        = "DUPLICATE_PRODUCT_CODE"
	CodeAlreadyCancelled     = "ALREADY_CANCELLED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeDatabase             = "DATABASE_ERROR"
	CodeExternalService      = "EXTERNAL_SERVICE_ERROR"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error はアプリケーション全体で使うエラー型です
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Details はバリデーションエラーの一覧や重複コードなど、呼び出し側に返す付加情報です
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails は付加情報を設定したコピーを返します
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

func Validation(messages []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: "入力内容に誤りがあります",
		Details: messages,
	}
}

func InvalidID(raw string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidID,
		Message: "IDが不正です",
		Details: []string{fmt.Sprintf("id must be a positive integer: %q", raw)},
	}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func PresetNotFound(id int64) *Error {
	return NotFound(CodePresetNotFound, fmt.Sprintf("プリセット(ID: %d)が見つかりません", id))
}

func Inactive(code, message string) *Error {
	return &Error{Kind: KindInactive, Code: code, Message: message}
}

func Conflict(code, message string, details any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Details: details}
}

func RateLimited() *Error {
	return &Error{
		Kind:    KindRateLimited,
		Code:    CodeRateLimited,
		Message: "リクエストが多すぎます。しばらくしてから再度お試しください",
	}
}

func InvalidSignature() *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Code:    CodeInvalidSignature,
		Message: "署名が不正です",
	}
}

func Database(op string, err error) *Error {
	return &Error{
		Kind:    KindDatabase,
		Code:    CodeDatabase,
		Message: "データベースエラーが発生しました",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

func ExternalService(service string, err error) *Error {
	return &Error{
		Kind:    KindExternalService,
		Code:    CodeExternalService,
		Message: "外部サービスとの通信に失敗しました",
		Err:     fmt.Errorf("%s: %w", service, err),
	}
}

func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "予期しないエラーが発生しました",
		Err:     err,
	}
}

// As はerrから*Errorを取り出します。見つからない場合はInternalとして包みます
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// KindOf はエラーの分類を返します
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus はエラーに対応するHTTPステータスコードを返します
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInactive:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsServerSide はサーバ側の障害として詳細を隠すべきエラーかどうかを返します
func IsServerSide(err error) bool {
	switch KindOf(err) {
	case KindDatabase, KindExternalService, KindInternal:
		return true
	}
	return false
}

// Messages はバリデーションメッセージを集約するためのヘルパーです
type Messages []string

func (m *Messages) Add(format string, args ...any) {
	*m = append(*m, fmt.Sprintf(format, args...))
}

func (m Messages) Err() error {
	if len(m) == 0 {
		return nil
	}
	return Validation(m)
}

func (m Messages) String() string {
	return strings.Join(m, ", ")
}

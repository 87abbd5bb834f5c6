// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeFeedNotDetected  = "FEED_NOT_DETECTED"
	ErrCodeDuplicateFeed    = "DUPLICATE_FEED"
	ErrCodeDuplicateKeyword = "DUPLICATE_KEYWORD"
	ErrCodeKeywordNotFound  = "KEYWORD_NOT_FOUND"
	ErrCodeArticleNotFound  = "ARTICLE_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeRefreshCooldown  = "REFRESH_COOLDOWN"
	ErrCodeEmptyKeywordSet  = "EMPTY_KEYWORD_SET"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeFeedNotFound     = "FEED_NOT_FOUND"
	ErrCodeDuplicateUser    = "DUPLICATE_USER"
)

// NewFeedNotFoundError は存在しないフィードに対するエラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewDuplicateUserError は重複するユーザー名またはメールアドレスに対するエラーを生成する。
func NewDuplicateUserError(username, email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  fmt.Sprintf("ユーザー名またはメールアドレスが既に使用されています: %s / %s", username, email),
		Category: "user",
		Action:   "別のユーザー名またはメールアドレスを指定してください。",
	}
}

// NewEmptyKeywordError は空のキーワードに対するエラーを生成する。
func NewEmptyKeywordError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyKeywordSet,
		Message:  "キーワードが入力されていません。",
		Category: "validation",
		Action:   "1文字以上のキーワードを入力してください。",
	}
}

// NewFetchFailedError はフィード取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "フィードのURLと提供元サイトの稼働状況を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる正しいURLを入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているフィードのURLを入力してください。プライベートIPへのアクセスは許可されていません。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "feed",
		Action:   "フィードのURLを直接入力するか、ジャーナルのページURLを確認してください。",
	}
}

// NewDuplicateFeedError は登録済みフィードの再登録エラーを生成する。
func NewDuplicateFeedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFeed,
		Message:  fmt.Sprintf("このフィードは既に登録されています: %s", url),
		Category: "feed",
		Action:   "フィード一覧から該当フィードを確認してください。",
	}
}

// NewDuplicateKeywordError は重複キーワードエラーを生成する。
func NewDuplicateKeywordError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateKeyword,
		Message:  fmt.Sprintf("このキーワードは既に登録されています: %s", name),
		Category: "validation",
		Action:   "キーワード一覧から該当キーワードを確認してください。",
	}
}

// NewKeywordNotFoundError はキーワード未検出エラーを生成する。
func NewKeywordNotFoundError(keywordID string) *APIError {
	return &APIError{
		Code:     ErrCodeKeywordNotFound,
		Message:  fmt.Sprintf("指定されたキーワードが見つかりません: %s", keywordID),
		Category: "validation",
		Action:   "キーワードIDを確認してください。",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(articleID string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", articleID),
		Category: "feed",
		Action:   "記事IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "user",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewRefreshCooldownError は更新クールダウン中エラーを生成する。
// remainingMinutesは再実行可能になるまでの残り分数。
func NewRefreshCooldownError(remainingMinutes int) *APIError {
	return &APIError{
		Code:     ErrCodeRefreshCooldown,
		Message:  fmt.Sprintf("フィードの更新はまだ実行できません。あと%d分お待ちください。", remainingMinutes),
		Category: "feed",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

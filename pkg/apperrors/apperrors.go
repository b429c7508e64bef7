// Package apperrors classifies pipeline failures into coarse codes with
// user-safe Japanese messages, and masks secrets before anything reaches
// a log line. Raw backend error text is never shown to end users.
package apperrors

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Error codes, from most to least specific.
const (
	CodeQuota             = "QUOTA"
	CodeAPIAuth           = "API_AUTH"
	CodeRateCredit        = "RATE_CREDIT"
	CodeTimeoutNetwork    = "TIMEOUT_NETWORK"
	CodeToolOutputInvalid = "TOOL_OUTPUT_INVALID"
	CodeURLFetchFailed    = "URL_FETCH_FAILED"
	CodePolicyViolation   = "POLICY_VIOLATION"
	CodeUnknown           = "UNKNOWN"
)

var userMessages = map[string]string{
	CodeQuota:             "使用上限に達しました。管理者にお問い合わせください。",
	CodeAPIAuth:           "設定に問題があります。管理者にお問い合わせください。",
	CodeRateCredit:        "ただいま混み合っています。時間をおいて再度お試しください。",
	CodeTimeoutNetwork:    "通信に失敗しました。時間をおいて再度お試しください。",
	CodeToolOutputInvalid: "生成に失敗しました。時間をおいて再度お試しください。",
	CodeURLFetchFailed:    "参考情報の取得に失敗しました。URLを見直して再度お試しください。",
	CodePolicyViolation:   "生成結果が表現ルールに抵触しました。再度お試しください。",
	CodeUnknown:           "処理に失敗しました。時間をおいて再度お試しください。",
}

// NewErrorID returns a short operator-facing ID, e.g. ERR-20260831-A1B2.
// Timestamps use JST because that is where the operators read the logs.
func NewErrorID() string {
	jst := time.Now().UTC().Add(9 * time.Hour)
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("ERR-%s-%s", jst.Format("20060102"), suffix)
}

// ToCode maps an error to a coarse code by inspecting its message.
func ToCode(err error) string {
	if err == nil {
		return CodeUnknown
	}
	msg := err.Error()
	m := strings.ToLower(msg)

	switch {
	case strings.Contains(m, "quota") || strings.Contains(msg, "上限"):
		return CodeQuota
	case strings.Contains(m, "api key") || strings.Contains(m, "anthropic_api_key") ||
		strings.Contains(m, "unauthorized") || strings.Contains(m, "authentication"):
		return CodeAPIAuth
	case strings.Contains(m, "rate limit") || strings.Contains(m, "too many requests") ||
		strings.Contains(m, "credit balance is too low") || strings.Contains(m, "billing"):
		return CodeRateCredit
	case strings.Contains(m, "timeout") || strings.Contains(m, "timed out") ||
		strings.Contains(m, "connection") || strings.Contains(m, "network"):
		return CodeTimeoutNetwork
	case strings.Contains(m, "tool output") || strings.Contains(m, "keys="):
		return CodeToolOutputInvalid
	case strings.Contains(m, "reference_url") || strings.Contains(m, "url fetch") ||
		strings.Contains(msg, "参考情報"):
		return CodeURLFetchFailed
	case strings.Contains(m, "banned phrase") || strings.Contains(msg, "表現ルール"):
		return CodePolicyViolation
	}
	return CodeUnknown
}

// UserMessage renders the user-visible message for an error, with the
// error ID appended so support can correlate it to logs.
func UserMessage(err error, errorID string) string {
	tmpl, ok := userMessages[ToCode(err)]
	if !ok {
		tmpl = userMessages[CodeUnknown]
	}
	return fmt.Sprintf("%s（エラーID: %s）", tmpl, errorID)
}

var maskPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`sk-ant-[A-Za-z0-9\-_]+`), "sk-ant-***"},
	{regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\s,;]+)`), "$1***"},
	{regexp.MustCompile(`(?i)(authorization\s*[:=]\s*bearer\s+)([^\s,;]+)`), "$1***"},
	{regexp.MustCompile(`(?i)(bearer\s+)([^\s,;]+)`), "$1***"},
	{regexp.MustCompile(`(?i)(token\s*[:=]\s*)([^\s,;]+)`), "$1***"},
}

// Mask removes API keys and bearer tokens from text destined for logs.
func Mask(text string) string {
	masked := text
	for _, p := range maskPatterns {
		masked = p.re.ReplaceAllString(masked, p.repl)
	}
	return masked
}

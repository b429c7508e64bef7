package apperrors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorIDFormat(t *testing.T) {
	id := NewErrorID()
	require.True(t, strings.HasPrefix(id, "ERR-"))

	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], 8, "date segment should be YYYYMMDD")
	assert.Len(t, parts[2], 4)
	assert.Equal(t, strings.ToUpper(parts[2]), parts[2])
}

func TestToCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"quota english", errors.New("monthly quota exceeded"), CodeQuota},
		{"quota japanese", errors.New("生成回数が上限に達しました"), CodeQuota},
		{"auth", errors.New("ANTHROPIC_API_KEY is not set"), CodeAPIAuth},
		{"rate", errors.New("429 too many requests"), CodeRateCredit},
		{"timeout", errors.New("context deadline exceeded: request timed out"), CodeTimeoutNetwork},
		{"tool output", errors.New("tool output invalid: keys=[foo]"), CodeToolOutputInvalid},
		{"policy", errors.New("banned phrase detected: 絶対買い"), CodePolicyViolation},
		{"unknown", errors.New("something odd"), CodeUnknown},
		{"nil", nil, CodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToCode(tc.err))
		})
	}
}

func TestUserMessageNeverExposesRawError(t *testing.T) {
	err := errors.New("POST https://api.anthropic.com: 500 internal server error")
	msg := UserMessage(err, "ERR-20260831-TEST")

	assert.NotContains(t, msg, "api.anthropic.com")
	assert.Contains(t, msg, "ERR-20260831-TEST")
}

func TestMask(t *testing.T) {
	in := "request failed api_key=sk-ant-abc123DEF Authorization: Bearer tok_456"
	out := Mask(in)

	assert.NotContains(t, out, "abc123DEF")
	assert.NotContains(t, out, "tok_456")
	assert.Contains(t, out, "***")
}

package trust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRegisteredDomain(t *testing.T) {
	reg := DefaultRegistry()

	allowed, host, policy := reg.Resolve("https://cartier.com/x")
	require.True(t, allowed)
	assert.Equal(t, "cartier.com", host)
	require.NotNil(t, policy)
	assert.Equal(t, TierA, policy.Tier)
}

func TestResolveSubdomain(t *testing.T) {
	reg := DefaultRegistry()

	allowed, host, policy := reg.Resolve("https://shop.cartier.com/x")
	require.True(t, allowed)
	assert.Equal(t, "shop.cartier.com", host)
	require.NotNil(t, policy)
	assert.Equal(t, "cartier.com", policy.Pattern)
}

func TestResolveLookalikeDomainRejected(t *testing.T) {
	reg := DefaultRegistry()

	allowed, host, policy := reg.Resolve("https://evilcartier.com/x")
	assert.False(t, allowed)
	assert.Equal(t, "evilcartier.com", host)
	assert.Nil(t, policy)
}

func TestResolveNormalizesHost(t *testing.T) {
	reg := DefaultRegistry()

	allowed, host, _ := reg.Resolve("https://WWW.Hodinkee.COM/articles/some-review")
	require.True(t, allowed)
	assert.Equal(t, "hodinkee.com", host)
}

func TestResolveRejectsMalformedInput(t *testing.T) {
	reg := DefaultRegistry()

	cases := []string{
		"",
		"   ",
		"ftp://cartier.com/x",
		"not a url at all",
		"https://",
	}
	for _, raw := range cases {
		allowed, _, policy := reg.Resolve(raw)
		assert.False(t, allowed, "input %q should be rejected", raw)
		assert.Nil(t, policy)
	}
}

func TestPatternsByLang(t *testing.T) {
	reg := DefaultRegistry()

	en := reg.PatternsByLang("en")
	assert.Contains(t, en, "hodinkee.com")
	assert.Contains(t, en, "cartier.com") // tagged "both"
	assert.NotContains(t, en, "webchronos.net")
}

func TestLoadRegistryMergesOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := `sources:
  - pattern: example-watch-blog.jp
    tier: E
    allowed_uses: [context]
    lang: ja
  - pattern: hodinkee.com
    tier: B
    allowed_uses: [context]
    lang: en
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	allowed, _, policy := reg.Resolve("https://example-watch-blog.jp/entry/1")
	require.True(t, allowed)
	assert.Equal(t, TierE, policy.Tier)

	// File entry overrides the built-in tier.
	_, _, hod := reg.Resolve("https://hodinkee.com/a")
	require.NotNil(t, hod)
	assert.Equal(t, TierB, hod.Tier)
}

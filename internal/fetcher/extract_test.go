package fetcher

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func para(n int) string {
	return strings.Repeat("この段落には時計の紹介文が含まれています。", n)
}

func TestGenericStrategyPicksArticle(t *testing.T) {
	html := `<html><body>
		<nav>メニュー</nav>
		<article><p>` + para(40) + `</p></article>
		<footer>フッター</footer>
	</body></html>`

	text, method := (&genericStrategy{}).Extract(parseDoc(t, html), 600)
	assert.Equal(t, "selector:article", method)
	assert.Contains(t, text, "時計の紹介文")
	assert.NotContains(t, text, "メニュー")
	assert.NotContains(t, text, "フッター")
}

func TestGenericStrategyScoresCandidatesByLength(t *testing.T) {
	// "main" exists but is nearly empty; ".entry-content" holds the body.
	html := `<html><body>
		<main><p>短い案内文がひとつだけあります。</p></main>
		<div class="entry-content"><p>` + para(60) + `</p></div>
	</body></html>`

	text, method := (&genericStrategy{}).Extract(parseDoc(t, html), 600)
	assert.Equal(t, "selector:.entry-content", method)
	assert.Greater(t, len(text), 600)
}

func TestGenericStrategyWholeDocumentFallback(t *testing.T) {
	html := `<html><body>
		<div><p>` + para(40) + `</p></div>
	</body></html>`

	text, method := (&genericStrategy{}).Extract(parseDoc(t, html), 600)
	assert.Equal(t, "fallback:document", method)
	assert.Contains(t, text, "時計の紹介文")
}

func TestBestBlockStrategyIgnoresEmptyMainWrapper(t *testing.T) {
	// Real content lives in a sibling div of a near-empty main element.
	html := `<html><body>
		<main><div class="wrapper"></div></main>
		<div id="contents">
			<aside>広告</aside>
			<p>` + para(50) + `</p>
		</div>
	</body></html>`

	text, method := (&bestBlockStrategy{}).Extract(parseDoc(t, html), 600)
	assert.Contains(t, method, "noisy_host:block_")
	assert.Contains(t, text, "時計の紹介文")
	assert.NotContains(t, text, "広告")
}

func TestStrategyTableResolution(t *testing.T) {
	table := NewStrategyTable()

	assert.Equal(t, "best_block", table.For("webchronos.net").Name())
	assert.Equal(t, "best_block", table.For("sub.webchronos.net").Name())
	assert.Equal(t, "generic", table.For("hodinkee.com").Name())
}

func TestCollectPartsSkipsShortFragments(t *testing.T) {
	html := `<html><body><article>
		<p>短い</p>
		<p>こちらは十分な長さを持つ本文の段落で、抽出対象になります。</p>
	</article></body></html>`

	doc := parseDoc(t, html)
	text := collectParts(doc.Find("article"))
	assert.NotContains(t, text, "短い")
	assert.Contains(t, text, "抽出対象")
}

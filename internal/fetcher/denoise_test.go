package fetcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanDropsBoilerplateLines(t *testing.T) {
	d := NewDenoiser(DefaultDenoiseConfig())

	text := strings.Join([]string{
		"このモデルはステンレススチールケースを採用し、日常使いに適した防水性能を備えています。",
		"シェアする",
		"プライバシーポリシー",
		"ムーブメントは自動巻きで、パワーリザーブは70時間です。長期間の使用にも安心できる設計です。",
	}, "\n")

	cleaned, changed, cut := d.Clean(text)
	assert.True(t, changed)
	assert.Empty(t, cut)
	assert.NotContains(t, cleaned, "シェアする")
	assert.NotContains(t, cleaned, "プライバシーポリシー")
	assert.Contains(t, cleaned, "ステンレススチールケース")
	assert.Contains(t, cleaned, "パワーリザーブは70時間")
}

func TestCleanCutsAtRelatedArticlesHeading(t *testing.T) {
	d := NewDenoiser(DefaultDenoiseConfig())

	text := strings.Join([]string{
		"本文の段落です。この時計の設計思想について詳しく解説していきます。視認性も良好です。",
		"関連記事",
		"オメガの歴史を振り返る",
		"グランドセイコーの最新モデルまとめ",
	}, "\n")

	cleaned, changed, cut := d.Clean(text)
	assert.True(t, changed)
	assert.Equal(t, "関連記事", cut)
	assert.Contains(t, cleaned, "設計思想")
	assert.NotContains(t, cleaned, "オメガの歴史")
	assert.NotContains(t, cleaned, "最新モデルまとめ")
}

func TestCleanNeverRemovesGenuineLeadingContent(t *testing.T) {
	d := NewDenoiser(DefaultDenoiseConfig())

	// A long genuine paragraph that happens to mention a cut phrase must
	// survive: only boilerplate-length lines trigger the cut.
	lead := "この記事は関連記事のまとめではなく、SBGA211というモデルそのものを丁寧に紹介するレビューです。" +
		"スプリングドライブの滑らかな運針と、チタンケースの軽さが最大の魅力といえるでしょう。"
	text := lead + "\n関連記事\nその他のモデル紹介"

	cleaned, _, cut := d.Clean(text)
	assert.Contains(t, cleaned, "スプリングドライブの滑らかな運針")
	assert.Equal(t, "関連記事", cut)
	assert.NotContains(t, cleaned, "その他のモデル紹介")
}

func TestCleanDropsBreadcrumbs(t *testing.T) {
	d := NewDenoiser(DefaultDenoiseConfig())

	text := "ホーム > 時計 > オメガ\n本文はこちらです。スピードマスターの魅力を紹介します。手巻きクロノグラフの傑作です。"
	cleaned, changed, _ := d.Clean(text)
	assert.True(t, changed)
	assert.NotContains(t, cleaned, "ホーム >")
	assert.Contains(t, cleaned, "スピードマスター")
}

func TestCleanNoChange(t *testing.T) {
	d := NewDenoiser(DefaultDenoiseConfig())

	text := "とても落ち着いた本文です。ノイズは含まれていません。装着感についても触れておきます。"
	cleaned, changed, cut := d.Clean(text)
	assert.False(t, changed)
	assert.Empty(t, cut)
	assert.Equal(t, text, cleaned)
}

func TestLoadDenoiseConfigExtendsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "denoise.yaml")
	content := `denoise:
  drop_phrases: ["この記事を印刷"]
  cut_phrases: ["次に読むべき記事"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadDenoiseConfig(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.DropPhrases, "この記事を印刷")
	assert.Contains(t, cfg.DropPhrases, "シェアする") // defaults kept
	assert.Contains(t, cfg.CutPhrases, "次に読むべき記事")
	assert.Equal(t, 80, cfg.MaxTriggerLineLen)
}

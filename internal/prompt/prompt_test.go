package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/article"
)

func TestNormalizeFactsTranslatesAndSuffixes(t *testing.T) {
	facts := map[string]string{
		"movement":           "Automatic",
		"case_material":      "stainless_steel",
		"dial_color":         "Blue",
		"bracelet_strap":     "bracelet",
		"water_resistance_m": "100",
		"case_size_mm":       "41",
		"case_thickness_mm":  "12.5 mm",
		"warranty_years":     "5",
	}

	nf := NormalizeFacts(facts)
	assert.Equal(t, "自動巻き", nf["movement"])
	assert.Equal(t, "ステンレススチール", nf["case_material"])
	assert.Equal(t, "ブルー", nf["dial_color"])
	assert.Equal(t, "ブレスレット", nf["bracelet_strap"])
	assert.Equal(t, "100m防水", nf["water_resistance_m"])
	assert.Equal(t, "41mm", nf["case_size_mm"])
	assert.Equal(t, "12.5mm", nf["case_thickness_mm"])
	assert.Equal(t, "5年", nf["warranty_years"])
}

func TestNormalizeFactsLeavesUnknownValues(t *testing.T) {
	nf := NormalizeFacts(map[string]string{
		"movement":           "スプリングドライブ",
		"water_resistance_m": "日常生活防水",
	})
	assert.Equal(t, "スプリングドライブ", nf["movement"])
	assert.Equal(t, "日常生活防水", nf["water_resistance_m"])
}

func TestNormalizeFactsDoesNotMutateInput(t *testing.T) {
	in := map[string]string{"movement": "automatic"}
	NormalizeFacts(in)
	assert.Equal(t, "automatic", in["movement"])
}

func TestSpecsTemplateOrderAndOmission(t *testing.T) {
	out := SpecsTemplate(map[string]string{
		"movement":  "自動巻き",
		"price_jpy": "1,100,000円",
		"remarks":   "国内正規品",
		"buckle":    "",
	})

	lines := strings.Split(out, "\n")
	assert.Equal(t, []string{
		"・定価：1,100,000円",
		"・ムーブメント：自動巻き",
		"・備考：国内正規品",
	}, lines)
}

func TestBuildSystemUsesReferenceBudget(t *testing.T) {
	withRef := BuildSystem("luxury", true)
	assert.Contains(t, withRef, "1500〜2000文字")
	assert.Contains(t, withRef, "背景・文脈を厚めに扱ってよい")

	noRef := BuildSystem("luxury", false)
	assert.Contains(t, noRef, "800〜1200文字")
	assert.Contains(t, noRef, "深掘りを抑制し")
}

func TestBuildSystemUnknownToneFallsBackToPractical(t *testing.T) {
	got := BuildSystem("poetic", true)
	want := BuildSystem("practical", true)
	assert.Equal(t, want, got)
}

func testPayload() *article.GenerationPayload {
	return &article.GenerationPayload{
		Product: article.Product{Brand: "OMEGA", Reference: "310.30.42.50.01.001"},
		Facts: map[string]string{
			"movement": "manual winding",
		},
		Style:     article.Style{Tone: "practical"},
		StaffNote: "実機を触ると、リューズの巻き心地がとても滑らかでした。",
	}
}

func TestBuildUserIncludesCoreSections(t *testing.T) {
	a := NewAssembler(trust.DefaultRegistry())
	bundle := article.ReferenceBundle{
		ChosenURL:         "https://www.omegawatches.jp/watch/x",
		ChosenReason:      "リファレンス一致のため採用",
		CombinedText:      strings.Repeat("参考本文。", 120),
		CombinedCharCount: 600,
		PerURLDebug:       []article.FetchResult{{RefHit: true}},
	}

	out := a.BuildUser(testPayload(), bundle, nil)
	assert.Contains(t, out, "- brand: OMEGA")
	assert.Contains(t, out, "- reference: 310.30.42.50.01.001")
	assert.Contains(t, out, "リューズの巻き心地")
	assert.Contains(t, out, "・ムーブメント：手巻き")
	assert.Contains(t, out, "- source_domain: omegawatches.jp")
	assert.Contains(t, out, "- source_category: A")
	assert.Contains(t, out, "本文抜粋（複数URLの結合）")
	assert.NotContains(t, out, "追加制約")
}

func TestBuildUserWithoutReferenceText(t *testing.T) {
	a := NewAssembler(trust.DefaultRegistry())
	out := a.BuildUser(testPayload(), article.ReferenceBundle{}, nil)
	assert.Contains(t, out, "採用表示用URL（代表）: (未指定)")
	assert.Contains(t, out, "本文: (なし)")
}

func TestBuildUserAddsConstraintWhenNoRefHit(t *testing.T) {
	a := NewAssembler(trust.DefaultRegistry())
	bundle := article.ReferenceBundle{
		ChosenURL:         "https://webchronos.net/features/x",
		CombinedText:      strings.Repeat("一般的なブランド背景の記事本文。", 60),
		CombinedCharCount: 900,
		PerURLDebug:       []article.FetchResult{{RefHit: false}},
	}

	out := a.BuildUser(testPayload(), bundle, nil)
	assert.Contains(t, out, "型番への言及が確認できませんでした")
	assert.Contains(t, out, "ブランドや一般的な背景の補足に限定")
}

func TestBuildUserNamesRefMissURLs(t *testing.T) {
	a := NewAssembler(trust.DefaultRegistry())
	bundle := article.ReferenceBundle{
		ChosenURL:         "https://www.omegawatches.jp/watch/310-30",
		CombinedText:      strings.Repeat("十分な長さの参考本文。", 60),
		CombinedCharCount: 660,
		PerURLDebug: []article.FetchResult{
			{URL: "https://www.omegawatches.jp/watch/310-30", RefHit: true},
			{URL: "https://www.hodinkee.com/articles/family-overview", RefHit: false},
		},
	}
	missURLs := []string{"https://www.hodinkee.com/articles/family-overview"}

	out := a.BuildUser(testPayload(), bundle, missURLs)
	assert.Contains(t, out, "[参考資料の扱いに関する追加制約]")
	assert.Contains(t, out, "  - https://www.hodinkee.com/articles/family-overview")
	assert.Contains(t, out, "定性的な補足に限定")
	assert.NotContains(t, out, "  - https://www.omegawatches.jp/watch/310-30")
}

func TestBuildUserEmptyStaffNote(t *testing.T) {
	a := NewAssembler(trust.DefaultRegistry())
	p := testPayload()
	p.StaffNote = "  "
	out := a.BuildUser(p, article.ReferenceBundle{}, nil)
	assert.Contains(t, out, "(未入力)")
}

func TestBuildUserTargetChars(t *testing.T) {
	a := NewAssembler(trust.DefaultRegistry())
	p := testPayload()
	p.Constraints.TargetIntroChars = 1400
	out := a.BuildUser(p, article.ReferenceBundle{}, nil)
	assert.Contains(t, out, "目標文字数（参考）：1400文字")
}

func TestBuildRewriteUser(t *testing.T) {
	base := "ベースプロンプト"
	prior := article.ArticleDraft{IntroText: "前回の紹介文です。", SpecsText: "・防水：100m防水"}

	out := BuildRewriteUser(base, prior)
	assert.True(t, strings.HasPrefix(out, base))
	assert.Contains(t, out, "言い換え再生成の指示")
	assert.Contains(t, out, "前回の紹介文です。")
	assert.NotContains(t, out, "・防水：100m防水")
}

func TestHasReferenceTextThreshold(t *testing.T) {
	assert.False(t, HasReferenceText(article.ReferenceBundle{CombinedCharCount: 399}))
	assert.True(t, HasReferenceText(article.ReferenceBundle{CombinedCharCount: 400}))
}

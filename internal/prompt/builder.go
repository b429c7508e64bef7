// Package prompt assembles the system and user prompts sent to the
// generation backend: tone profiles, fact normalization, the specs
// template and the reference block with source policy annotations.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/article"
)

// HasReferenceThreshold is the minimum combined reference length, in
// runes, at which prompts switch to the "with reference" depth budget.
const HasReferenceThreshold = 400

// Assembler builds prompts. The trust registry supplies the source
// policy annotation for the representative reference URL.
type Assembler struct {
	registry *trust.Registry
}

func NewAssembler(registry *trust.Registry) *Assembler {
	return &Assembler{registry: registry}
}

// HasReferenceText reports whether a combined reference text is long
// enough to count as real source material.
func HasReferenceText(bundle article.ReferenceBundle) bool {
	return bundle.CombinedCharCount >= HasReferenceThreshold
}

// BuildSystem delegates to the package-level builder; kept as a method
// so callers only hold the Assembler.
func (a *Assembler) BuildSystem(tone string, hasReferenceText bool) string {
	return BuildSystem(tone, hasReferenceText)
}

// BuildUser renders the user prompt: product identity, tone, options,
// the staff note, normalized canonical specs, the specs template the
// model must echo, and the combined reference block. missURLs lists
// sufficient sources whose body never mentioned the reference code;
// when non-empty they are named in a constraint block that limits them
// to qualitative use.
func (a *Assembler) BuildUser(p *article.GenerationPayload, bundle article.ReferenceBundle, missURLs []string) string {
	factsNorm := NormalizeFacts(p.Facts)
	specsTemplate := SpecsTemplate(factsNorm)

	factsJSON, err := json.MarshalIndent(factsNorm, "", "  ")
	if err != nil {
		factsJSON = []byte("{}")
	}

	staffNote := strings.TrimSpace(p.StaffNote)
	if staffNote == "" {
		staffNote = "(未入力)"
	}

	var targetNote string
	if p.Constraints.TargetIntroChars > 0 {
		targetNote = fmt.Sprintf("- 目標文字数（参考）：%d文字\n", p.Constraints.TargetIntroChars)
	}

	var b strings.Builder
	b.WriteString("以下の商品について、intro_text と specs_text を作成してください。\n\n")
	fmt.Fprintf(&b, "[商品]\n- brand: %s\n- reference: %s\n\n", p.Product.Brand, p.Product.Reference)
	fmt.Fprintf(&b, "[トーン]\n%s\n\n", Profile(p.Style.Tone).Key)
	fmt.Fprintf(&b, "[オプション]\n- include_brand_profile: %t\n- include_wearing_scenes: %t\n\n",
		p.Options.IncludeBrandProfile, p.Options.IncludeWearingScenes)
	fmt.Fprintf(&b, "[editor_note（スタッフの主観・経験・逸話。intro_textに必ず反映）]\n%s\n\n", staffNote)
	fmt.Fprintf(&b, "[canonical_specs（確定事実）]\n%s\n\n", factsJSON)
	fmt.Fprintf(&b, "[specs_text の出力テンプレ（この形式で必ず出力）]\n%s\n\n", specsTemplate)
	b.WriteString(a.referenceBlock(bundle))
	b.WriteString("\n[重要ルール]\n" +
		"- intro_text には editor_note の内容を必ず含める（未入力の場合は触れない）\n" +
		"- 語り手は「正規時計店スタッフ」。一人称の使い方はトーン規定に従う\n" +
		"- 事実の優先順位：canonical_specs > remarks > reference_url本文\n" +
		"- 矛盾がある場合は必ず上位を採用する\n" +
		"- reference_url本文の文章表現をコピーしない（同義の言い換えにする）\n" +
		"- specs_text は必ず出力する（空にしない）\n" +
		"- specs_text は上のテンプレをそのまま使う（順序・形式を変えない）\n" +
		targetNote)

	if len(missURLs) > 0 {
		b.WriteString("\n[参考資料の扱いに関する追加制約]\n" +
			"- 次のURLの本文にはこの型番への言及が確認できませんでした：\n")
		for _, u := range missURLs {
			b.WriteString("  - " + u + "\n")
		}
		b.WriteString("- 上記URLの本文は雰囲気・背景・ブランド文脈などの定性的な補足に限定して使用する\n" +
			"- このモデル固有の事実は canonical_specs と remarks のみから書く\n")
	} else if !a.refHitAnywhere(bundle) && HasReferenceText(bundle) {
		b.WriteString("\n[参考資料の扱いに関する追加制約]\n" +
			"- 参考資料本文にこの型番への言及が確認できませんでした\n" +
			"- 参考資料はブランドや一般的な背景の補足に限定して使用する\n" +
			"- このモデル固有の事実は canonical_specs と remarks のみから書く\n")
	}

	return b.String()
}

// referenceBlock formats the combined reference excerpt with the source
// policy annotation of the representative URL.
func (a *Assembler) referenceBlock(bundle article.ReferenceBundle) string {
	chosenURL := strings.TrimSpace(bundle.ChosenURL)
	display := chosenURL
	if display == "" {
		display = "(未指定)"
	}

	var policyLine string
	if chosenURL != "" {
		allowed, host, policy := a.registry.Resolve(chosenURL)
		if allowed && policy != nil {
			policyLine = fmt.Sprintf("- source_domain: %s\n- source_category: %s\n- allowed_use: %s\n",
				host, policy.Tier, strings.Join(policy.AllowedUses, ", "))
		} else {
			if host == "" {
				host = "(invalid)"
			}
			policyLine = fmt.Sprintf("- source_domain: %s\n- source_category: (untrusted)\n- allowed_use: none\n", host)
		}
	}

	if strings.TrimSpace(bundle.CombinedText) != "" {
		return fmt.Sprintf("[参考資料（スタッフが指定したURL群の本文抜粋）]\n採用表示用URL（代表）: %s\n%s本文抜粋（複数URLの結合）:\n%s\n",
			display, policyLine, bundle.CombinedText)
	}
	return fmt.Sprintf("[参考資料]\n採用表示用URL（代表）: %s\n%s本文: (なし)\n", display, policyLine)
}

func (a *Assembler) refHitAnywhere(bundle article.ReferenceBundle) bool {
	for _, d := range bundle.PerURLDebug {
		if d.RefHit {
			return true
		}
	}
	return false
}

// BuildRewriteUser wraps a user prompt with the paraphrase pass
// instructions: keep facts and structure, change expression so the
// wording diverges from the source text.
func BuildRewriteUser(basePrompt string, prior article.ArticleDraft) string {
	return basePrompt + fmt.Sprintf(`
[言い換え再生成の指示]
前回生成した intro_text が参考資料本文と表現が近すぎました。
以下の前回出力を踏まえ、事実・構成・トーンは維持したまま、
文の構造と言い回しを大きく変えて書き直してください。
- 同じ言い回し・同じ文順の再利用は禁止
- 事実の追加・削除は禁止
- specs_text は前回と同一でよい

[前回の intro_text]
%s
`, prior.IntroText)
}

package prompt

import (
	"strconv"
	"strings"
)

// fieldLabel pairs a canonical fact key with its Japanese spec label.
// The order here is the order of the specs_text template and must not
// change: the model is instructed to reproduce it verbatim.
type fieldLabel struct {
	key   string
	label string
}

var fieldLabelsOrder = []fieldLabel{
	{"price_jpy", "定価"},
	{"collection", "コレクション"},
	{"movement", "ムーブメント"},
	{"movement_caliber", "キャリバー"},
	{"case_material", "ケース素材"},
	{"case_size_mm", "ケース径"},
	{"case_thickness_mm", "ケース厚"},
	{"lug_width_mm", "ラグ幅"},
	{"dial_color", "文字盤カラー"},
	{"bracelet_strap", "ベルト"},
	{"buckle", "バックル"},
	{"water_resistance_m", "防水"},
	{"warranty_years", "保証"},
	{"remarks", "備考"},
}

// Controlled-vocabulary translations for fields that arrive in English
// from the product master.
var braceletMap = map[string]string{
	"bracelet": "ブレスレット",
	"strap":    "ストラップ",
}

var movementMap = map[string]string{
	"manual winding": "手巻き",
	"manual":         "手巻き",
	"hand-wound":     "手巻き",
	"hand wound":     "手巻き",
	"automatic":      "自動巻き",
	"self-winding":   "自動巻き",
	"self winding":   "自動巻き",
	"quartz":         "クォーツ",
}

var caseMaterialMap = map[string]string{
	"stainless_steel": "ステンレススチール",
	"stainless steel": "ステンレススチール",
	"steel":           "ステンレススチール",
	"titanium":        "チタン",
	"ceramic":         "セラミック",
}

var dialColorMap = map[string]string{
	"black":  "ブラック",
	"white":  "ホワイト",
	"blue":   "ブルー",
	"silver": "シルバー",
	"gray":   "グレー",
	"green":  "グリーン",
}

// NormalizeFacts trims every value, translates controlled vocabulary to
// Japanese and attaches unit suffixes (mm, m防水, 年) to numeric fields.
// The input map is not modified.
func NormalizeFacts(facts map[string]string) map[string]string {
	nf := make(map[string]string, len(facts))
	for k, v := range facts {
		nf[k] = strings.TrimSpace(v)
	}

	if v := nf["bracelet_strap"]; v != "" {
		if mapped, ok := braceletMap[strings.ToLower(v)]; ok {
			nf["bracelet_strap"] = mapped
		}
	}
	if v := nf["movement"]; v != "" {
		if mapped, ok := movementMap[strings.ToLower(v)]; ok {
			nf["movement"] = mapped
		}
	}
	if v := nf["case_material"]; v != "" {
		if mapped, ok := caseMaterialMap[strings.ToLower(v)]; ok {
			nf["case_material"] = mapped
		}
	}
	if v := nf["dial_color"]; v != "" {
		if mapped, ok := dialColorMap[strings.ToLower(v)]; ok {
			nf["dial_color"] = mapped
		}
	}

	if v := nf["water_resistance_m"]; v != "" {
		clean := strings.TrimSpace(strings.NewReplacer("m", "", "M", "").Replace(v))
		if _, err := strconv.Atoi(clean); err == nil {
			nf["water_resistance_m"] = clean + "m防水"
		}
	}

	for _, key := range []string{"case_size_mm", "case_thickness_mm", "lug_width_mm"} {
		v := nf[key]
		if v == "" {
			continue
		}
		clean := strings.TrimSpace(strings.NewReplacer("mm", "", "MM", "").Replace(v))
		if _, err := strconv.ParseFloat(clean, 64); err == nil {
			nf[key] = clean + "mm"
		}
	}

	if v := nf["warranty_years"]; v != "" {
		clean := strings.TrimSpace(strings.TrimSuffix(v, "年"))
		if _, err := strconv.Atoi(clean); err == nil {
			nf["warranty_years"] = clean + "年"
		}
	}

	return nf
}

// SpecsTemplate renders the fixed label:value template from normalized
// facts. Empty fields are omitted; order follows fieldLabelsOrder.
func SpecsTemplate(normalized map[string]string) string {
	var lines []string
	for _, fl := range fieldLabelsOrder {
		v := strings.TrimSpace(normalized[fl.key])
		if v == "" {
			continue
		}
		lines = append(lines, "・"+fl.label+"："+v)
	}
	return strings.Join(lines, "\n")
}

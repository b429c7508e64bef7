package fetcher

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DenoiseConfig is data, not logic: the trigger lists are maintained by
// operators as sites change, and the YAML file extends the defaults.
type DenoiseConfig struct {
	// DropPhrases mark boilerplate lines (nav labels, cookie banners,
	// copyright footers). A short line containing one is removed.
	DropPhrases []string `yaml:"drop_phrases"`
	// CutPhrases mark section headings after which article body ends
	// (related-article blocks). Text is truncated at the first match.
	CutPhrases []string `yaml:"cut_phrases"`
	// MaxTriggerLineLen bounds how long a line may be and still count as
	// boilerplate; genuine paragraphs mentioning a phrase stay intact.
	MaxTriggerLineLen int `yaml:"max_trigger_line_len"`
}

// DefaultDenoiseConfig covers the Japanese and English boilerplate seen
// on the registered source sites. The lists are not assumed complete.
func DefaultDenoiseConfig() DenoiseConfig {
	return DenoiseConfig{
		DropPhrases: []string{
			// ja
			"カテゴリー", "タグ一覧", "シェアする", "この記事をシェア", "ツイート",
			"トップへ戻る", "ページトップ", "記事一覧", "メニュー",
			"プライバシーポリシー", "利用規約", "お問い合わせ",
			"クッキー", "Cookieを使用",
			// en
			"Privacy Policy", "Terms of Use", "Cookie Policy",
			"Share this article", "Subscribe to our newsletter",
			"Sign up for our newsletter", "Follow us",
			"All Rights Reserved", "Copyright ©",
		},
		CutPhrases: []string{
			// ja
			"関連記事", "あわせて読みたい", "合わせて読みたい", "おすすめ記事",
			"こちらの記事もおすすめ", "人気記事ランキング",
			// en
			"Related Articles", "Related Posts", "You may also like",
			"Recommended for you", "More from",
		},
		MaxTriggerLineLen: 80,
	}
}

type denoiseFile struct {
	Denoise DenoiseConfig `yaml:"denoise"`
}

// LoadDenoiseConfig merges YAML-defined phrases over the defaults.
func LoadDenoiseConfig(path string) (DenoiseConfig, error) {
	cfg := DefaultDenoiseConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read denoise config %s: %w", path, err)
	}
	var file denoiseFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, fmt.Errorf("parse denoise config %s: %w", path, err)
	}
	cfg.DropPhrases = append(cfg.DropPhrases, file.Denoise.DropPhrases...)
	cfg.CutPhrases = append(cfg.CutPhrases, file.Denoise.CutPhrases...)
	if file.Denoise.MaxTriggerLineLen > 0 {
		cfg.MaxTriggerLineLen = file.Denoise.MaxTriggerLineLen
	}
	return cfg, nil
}

// Denoiser strips boilerplate lines and truncates at related-article
// headings.
type Denoiser struct {
	cfg DenoiseConfig
}

// NewDenoiser builds a denoiser over the given configuration.
func NewDenoiser(cfg DenoiseConfig) *Denoiser {
	if cfg.MaxTriggerLineLen <= 0 {
		cfg.MaxTriggerLineLen = DefaultDenoiseConfig().MaxTriggerLineLen
	}
	return &Denoiser{cfg: cfg}
}

// Clean applies both passes. It returns the cleaned text, whether
// anything changed, and the cut phrase that fired (empty when none did).
//
// Cut phrases only match boilerplate-length lines, so a genuine leading
// paragraph that happens to mention "関連記事" is never removed.
func (d *Denoiser) Clean(text string) (cleaned string, changed bool, cutTrigger string) {
	lines := strings.Split(text, "\n")
	var kept []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		isShort := utf8.RuneCountInString(trimmed) <= d.cfg.MaxTriggerLineLen

		if isShort {
			if phrase := d.matchPhrase(trimmed, d.cfg.CutPhrases); phrase != "" {
				// Everything after a related-article heading is
				// structurally not article body.
				cutTrigger = phrase
				changed = true
				break
			}
			if d.matchPhrase(trimmed, d.cfg.DropPhrases) != "" || isBreadcrumb(trimmed) {
				changed = true
				continue
			}
		}
		kept = append(kept, trimmed)
	}

	cleaned = strings.Join(kept, "\n")
	if !changed {
		changed = cleaned != strings.TrimSpace(text)
	}
	return cleaned, changed, cutTrigger
}

func (d *Denoiser) matchPhrase(line string, phrases []string) string {
	for _, p := range phrases {
		if p != "" && strings.Contains(line, p) {
			return p
		}
	}
	return ""
}

// isBreadcrumb detects navigation trails like "ホーム > 時計 > オメガ":
// short lines stitched together with two or more separators.
func isBreadcrumb(line string) bool {
	seps := strings.Count(line, " > ") +
		strings.Count(line, " › ") +
		strings.Count(line, " » ") +
		strings.Count(line, "｜")
	return seps >= 2
}

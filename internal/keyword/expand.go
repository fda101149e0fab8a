package keyword

import (
	"slices"
)

// Affixes used by cmd/keywords to widen the base lists.
var (
	QueryPrefixes    = []string{"cách", "vì", "tại", "hiểu", "tìm", "nghiên cứu", "phân tích", "đánh giá", "tổng hợp", "tra cứu"}
	QuerySuffixes    = []string{"về", "của", "liên quan", "với", "đối với", "trong", "ngoài", "tại"}
	EmotionModifiers = []string{"rất", "hơi", "cực kỳ", "khá", "chút", "quá", "thật", "vô cùng", "hoàn toàn"}
	PersonalModifier = []string{"từng", "hay", "thường", "không", "luôn", "chưa", "vừa", "đã từng", "đang", "sẽ"}
)

// Expansion describes how one base list is widened.
type Expansion struct {
	Prefixes  []string
	Suffixes  []string
	Modifiers []string
}

// ExpansionFor returns the affix plan used for k.
func ExpansionFor(k Kind) Expansion {
	switch k {
	case KindDirectQuery:
		return Expansion{Prefixes: QueryPrefixes, Suffixes: QuerySuffixes}
	case KindEmotion:
		return Expansion{Modifiers: EmotionModifiers}
	case KindPersonal:
		return Expansion{Modifiers: PersonalModifier}
	}
	return Expansion{}
}

// Expand returns base followed by affixed variants, de-duplicated, capped at limit.
// Output is deterministic: base entries first in their order, then variants
// sorted. A limit <= 0 means no cap.
//
// Variants never make classification broader than base does because every
// variant contains its base keyword as a substring; they exist so the CSVs
// document the phrasings seen in practice.
func Expand(base []string, e Expansion, limit int) []string {
	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base))
	add := func(w string) {
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	for _, w := range base {
		add(w)
	}

	var variants []string
	pre := append([]string{""}, e.Prefixes...)
	suf := append([]string{""}, e.Suffixes...)
	mod := append([]string{""}, e.Modifiers...)
	for _, w := range base {
		for _, p := range pre {
			for _, s := range suf {
				for _, m := range mod {
					v := join(m, join(p, w, s), "")
					if v != w {
						variants = append(variants, v)
					}
				}
			}
		}
	}
	slices.Sort(variants)
	for _, v := range variants {
		add(v)
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func join(prefix, word, suffix string) string {
	out := word
	if prefix != "" {
		out = prefix + " " + out
	}
	if suffix != "" {
		out = out + " " + suffix
	}
	return out
}

package memory

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// topicStopWords are function words excluded from topic extraction. Queries
// and answers are predominantly Russian; English topics still pass the
// length filter.
var topicStopWords = map[string]bool{
	"что": true, "как": true, "где": true, "когда": true, "почему": true,
	"какой": true, "это": true, "то": true, "на": true, "в": true,
	"и": true, "с": true, "для": true, "по": true, "из": true, "за": true,
	"при": true, "до": true, "после": true, "через": true,
	"может": true, "можно": true, "нужно": true, "есть": true, "был": true,
	"будет": true, "иметь": true, "быть": true,
	"очень": true, "также": true, "даже": true, "если": true, "или": true,
	"так": true, "все": true, "его": true, "она": true,
	"они": true, "вы": true, "мы": true, "их": true, "него": true,
	"нее": true, "них": true, "тем": true, "чем": true, "чего": true,
	"кого": true, "кому": true, "кем": true, "о": true, "об": true,
	"про": true, "под": true, "над": true, "между": true,
}

// Go's \b is ASCII-only and never fires next to Cyrillic letters, so word
// boundaries are spelled out as non-letter groups with an inner capture.
var (
	nonTopicRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	// Two or three consecutive Cyrillic words of four letters or more form a
	// noun phrase.
	nounPhraseRe = regexp.MustCompile(`(?:^|[^\p{L}])([А-Яа-я]{4,}(?:\s+[А-Яа-я]{4,}){1,2})`)

	// Domain vocabulary gets a weight bonus so legal and organizational terms
	// dominate topic sets even at low frequency.
	domainRes = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|[^\p{L}])(закон|статья|документ|процедура|требование|норматив)\p{L}*`),
		regexp.MustCompile(`(?:^|[^\p{L}])(система|технология|архитектура|интерфейс|компонент)\p{L}*`),
		regexp.MustCompile(`(?:^|[^\p{L}])(организация|департамент|управление|отдел|служба)\p{L}*`),
	}
)

const (
	minTopicRunes  = 4   // words shorter than this are noise
	longTopicRunes = 7   // words this long get the specificity bonus
	longTopicBoost = 1.2
	domainBonus    = 0.3
)

// extractTopicsWeighted pulls weighted topic terms from text. Weights are
// frequency-normalized per text, so they compare within one extraction only.
func extractTopicsWeighted(text string) map[string]float64 {
	clean := nonTopicRe.ReplaceAllString(strings.ToLower(text), "")
	freq := map[string]int{}
	maxFreq := 1
	for _, w := range strings.Fields(clean) {
		if len([]rune(w)) < minTopicRunes || topicStopWords[w] {
			continue
		}
		freq[w]++
		if freq[w] > maxFreq {
			maxFreq = freq[w]
		}
	}

	topics := map[string]float64{}
	for w, f := range freq {
		weight := float64(f) / float64(maxFreq)
		if len([]rune(w)) >= longTopicRunes {
			weight *= longTopicBoost
		}
		topics[w] = clamp1(weight)
	}

	for _, m := range nounPhraseRe.FindAllStringSubmatch(text, -1) {
		p := strings.TrimSpace(strings.ToLower(m[1]))
		if len([]rune(p)) > 6 {
			topics[p] = clamp1(0.8 + float64(len(strings.Fields(p)))*0.1)
		}
	}

	lower := strings.ToLower(text)
	for _, re := range domainRes {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			stem := m[1]
			if !topicStopWords[stem] {
				topics[stem] = clamp1(topics[stem] + domainBonus)
			}
		}
	}
	return topics
}

func extractTopics(text string) map[string]bool {
	out := map[string]bool{}
	for t := range extractTopicsWeighted(text) {
		out[t] = true
	}
	return out
}

// semanticHash fingerprints a turn by its ten leading topic terms. Turns
// about the same things collide on purpose.
func semanticHash(query, response string) string {
	terms := make([]string, 0, 16)
	for t := range extractTopics(strings.ToLower(query + " " + response)) {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	if len(terms) > 10 {
		terms = terms[:10]
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(strings.Join(terms, ""))))
}

// topicSimilarity blends Jaccard overlap with a bonus for near-identical
// terms, so morphological variants of the same word still count.
func topicSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	jaccard := float64(inter) / float64(union)

	bonus := 0.0
	for t1 := range a {
		for t2 := range b {
			if t1 == t2 {
				continue
			}
			if r := editRatio(t1, t2); r > 0.6 {
				bonus += r * 0.1
			}
		}
	}
	return clamp1(jaccard + bonus)
}

// classifyTransition names a topic change by how much of the old set survives.
func classifyTransition(old, next map[string]bool) string {
	if len(old) == 0 {
		return "initial"
	}
	inter := 0
	for t := range old {
		if next[t] {
			inter++
		}
	}
	union := len(old) + len(next) - inter
	ratio := float64(inter) / float64(union)
	switch {
	case ratio > 0.7:
		return "continuation"
	case ratio > 0.3:
		return "evolution"
	default:
		return "shift"
	}
}

// editRatio is a similarity ratio in [0,1] over runes: twice the longest
// common subsequence divided by the total length.
func editRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// textSimilarity compares two texts by word overlap and length ratio. It is
// the fallback when semantic hashes differ.
func textSimilarity(a, b string) float64 {
	wordsA := fieldSet(strings.ToLower(a))
	wordsB := fieldSet(strings.ToLower(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	inter := 0
	for w := range wordsA {
		if wordsB[w] {
			inter++
		}
	}
	union := len(wordsA) + len(wordsB) - inter
	jaccard := float64(inter) / float64(union)

	la, lb := len([]rune(a)), len([]rune(b))
	lengthRatio := float64(min(la, lb)) / float64(max(la, lb))
	return jaccard*0.8 + lengthRatio*0.2
}

func fieldSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

// Every entity pattern carries exactly one capture group so extraction can
// take the group and ignore the boundary characters around it.
var entityRes = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[^\p{L}])([А-Я][а-я]+(?:\s+[А-Я][а-я]+){1,3})(?:[^\p{L}]|$)`),
	regexp.MustCompile(`(?:^|[^\p{L}])([А-Я]{2,})(?:[^\p{L}]|$)`),
	regexp.MustCompile(`(?:^|[^\p{N}])(\d+(?:\.\d+)?\s*%)`),
	regexp.MustCompile(`(?:^|[^\p{N}])(\d+(?:\.\d+)?\s*(?:рублей?|долларов?|евро|тенге))(?:[^\p{L}]|$)`),
	regexp.MustCompile(`(?:^|[^\p{N}.])(\d{1,2}[.\-]\d{1,2}[.\-]\d{2,4})(?:[^\p{N}]|$)`),
	regexp.MustCompile(`(?:^|[^\p{L}])((?:статья|пункт|раздел|глава)\s+\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(№\s*\d+(?:[-/]\d+)*)`),
	regexp.MustCompile(`\b([A-Z]{2,}(?:-[A-Z0-9]+)*)\b`),
}

var quotedRe = regexp.MustCompile(`["«]([^"«»]+)["»]`)

// extractEntities pulls named entities, figures, dates and document
// references from text, longest first.
func extractEntities(text string) []string {
	var raw []string
	for _, re := range entityRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			raw = append(raw, m[1])
		}
	}
	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		raw = append(raw, m[1])
	}

	seen := map[string]bool{}
	var out []string
	for _, e := range raw {
		e = strings.TrimSpace(e)
		lower := strings.ToLower(e)
		if len([]rune(e)) <= 2 || seen[lower] || isAllDigits(e) {
			continue
		}
		seen[lower] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len([]rune(out[i])) > len([]rune(out[j]))
	})
	if len(out) > 15 {
		out = out[:15]
	}
	return out
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func setToSlice(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

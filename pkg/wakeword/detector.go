// Package wakeword detects a spoken wake word in transcribed text.
// Speech-to-text rarely spells the wake word cleanly, so detection
// layers exact matching over fuzzy, phonetic (Soundex), and split-word
// matching against a set of known variations.
package wakeword

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Detection methods, strongest first.
const (
	MethodExact     = "exact"
	MethodFuzzy     = "fuzzy"
	MethodPhonetic  = "phonetic"
	MethodMultiword = "multiword"
)

// Result describes a detection attempt.
type Result struct {
	Detected    bool    `json:"detected"`
	Method      string  `json:"method,omitempty"`
	MatchedWord string  `json:"matched_word,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Status reports detector configuration for diagnostics.
type Status struct {
	WakeWord            string   `json:"wake_word"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	PhoneticMatching    bool     `json:"phonetic_matching"`
	Variations          []string `json:"variations"`
}

// Words that sound close enough to trip fuzzy matching but never mean
// the wake word.
var fuzzyBlacklist = map[string]struct{}{
	"important":   {},
	"department":  {},
	"compartment": {},
	"treatment":   {},
	"argument":    {},
	"document":    {},
	"movement":    {},
	"moment":      {},
	"parent":      {},
	"apparent":    {},
	"statement":   {},
	"element":     {},
	"agreement":   {},
	"improvement": {},
	"development": {},
	"government":  {},
}

var (
	wordRe           = regexp.MustCompile(`\b\w+\b`)
	punctRe          = regexp.MustCompile(`[^\w\s]`)
	spaceRe          = regexp.MustCompile(`\s+`)
	nonAlphaRe       = regexp.MustCompile(`[^a-z]`)
	leadConnectiveRe = regexp.MustCompile(`(?i)^(,|and then|then)\s*`)
)

// Detector matches transcribed text against a wake word.
type Detector struct {
	wakeWord  string
	threshold float64
	phonetic  bool

	mu         sync.RWMutex
	variations map[string]struct{}
	soundex    map[string]struct{}
}

// Option configures a Detector.
type Option func(*Detector)

// WithSimilarityThreshold sets the minimum fuzzy-match score (0 to 1).
func WithSimilarityThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithPhoneticMatching toggles Soundex matching.
func WithPhoneticMatching(enabled bool) Option {
	return func(d *Detector) {
		d.phonetic = enabled
	}
}

// WithVariations adds extra aliases for the wake word.
func WithVariations(variations ...string) Option {
	return func(d *Detector) {
		for _, v := range variations {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				d.variations[v] = struct{}{}
			}
		}
	}
}

// NewDetector creates a detector for wakeWord. The default similarity
// threshold is 0.6 with phonetic matching enabled.
func NewDetector(wakeWord string, opts ...Option) *Detector {
	d := &Detector{
		wakeWord:   strings.ToLower(strings.TrimSpace(wakeWord)),
		threshold:  0.6,
		phonetic:   true,
		variations: make(map[string]struct{}),
		soundex:    make(map[string]struct{}),
	}
	d.variations[d.wakeWord] = struct{}{}

	for _, opt := range opts {
		opt(d)
	}

	d.addBuiltinVariations()
	for v := range d.variations {
		d.indexSoundex(v)
	}

	return d
}

// addBuiltinVariations seeds misspellings and phonetic drifts that
// speech-to-text produces for the wake word.
func (d *Detector) addBuiltinVariations() {
	if d.wakeWord == "apartment" {
		for _, v := range []string{
			"apartement", "apartament", "appartment", "apartmant",
			"apartmint", "apartent", "apertment", "apratment",
			"a part mint", "a part ment", "apart mint", "apart ment",
		} {
			d.variations[v] = struct{}{}
		}
	}

	substitutions := map[string][]string{
		"a":     {"ah", "uh", "e"},
		"e":     {"a", "i", "uh"},
		"i":     {"e", "ee", "ih"},
		"o":     {"oh", "uh", "aw"},
		"u":     {"uh", "oo", "ah"},
		"ment":  {"mint", "mant", "munt"},
		"part":  {"port", "pert"},
		"apart": {"a part", "aport"},
	}
	for original, replacements := range substitutions {
		if !strings.Contains(d.wakeWord, original) {
			continue
		}
		for _, replacement := range replacements {
			d.variations[strings.ReplaceAll(d.wakeWord, original, replacement)] = struct{}{}
		}
	}
}

func (d *Detector) indexSoundex(variation string) {
	clean := nonAlphaRe.ReplaceAllString(variation, "")
	if clean != "" {
		d.soundex[soundex(clean)] = struct{}{}
	}
}

// AddVariation registers another alias at runtime.
func (d *Detector) AddVariation(variation string) {
	v := strings.ToLower(strings.TrimSpace(variation))
	if v == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.variations[v]; ok {
		return
	}
	d.variations[v] = struct{}{}
	d.indexSoundex(v)
}

// Detect checks transcribed text for the wake word.
func (d *Detector) Detect(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	lower := strings.ToLower(strings.TrimSpace(text))
	words := wordRe.FindAllString(lower, -1)

	// Exact matches win outright.
	for _, word := range words {
		if _, ok := d.variations[word]; ok {
			return Result{Detected: true, Method: MethodExact, MatchedWord: word, Confidence: 1.0}
		}
	}

	if r := d.fuzzyMatch(words); r.Detected {
		return r
	}
	if d.phonetic {
		if r := d.phoneticMatch(words); r.Detected {
			return r
		}
	}
	return d.multiwordMatch(lower)
}

func (d *Detector) fuzzyMatch(words []string) Result {
	bestScore := 0.0
	bestWord := ""

	for _, word := range words {
		if _, blacklisted := fuzzyBlacklist[word]; blacklisted {
			continue
		}
		for variation := range d.variations {
			// Short words fuzz into everything.
			if len(word) < 4 || len(variation) < 4 {
				continue
			}
			if word[0] != variation[0] {
				continue
			}

			score := matchRatio(word, variation)

			// Longer words must match more tightly.
			minScore := d.threshold
			if len(word) > 6 && minScore < 0.75 {
				minScore = 0.75
			}

			if score > bestScore && score >= minScore {
				bestScore = score
				bestWord = word
			}
		}
	}

	if bestScore >= d.threshold {
		return Result{Detected: true, Method: MethodFuzzy, MatchedWord: bestWord, Confidence: bestScore}
	}
	return Result{}
}

func (d *Detector) phoneticMatch(words []string) Result {
	for _, word := range words {
		if len(word) < 3 {
			continue
		}
		if _, ok := d.soundex[soundex(word)]; ok {
			return Result{Detected: true, Method: MethodPhonetic, MatchedWord: word, Confidence: 0.8}
		}
	}
	return Result{}
}

func (d *Detector) multiwordMatch(text string) Result {
	clean := punctRe.ReplaceAllString(text, " ")
	clean = strings.TrimSpace(spaceRe.ReplaceAllString(clean, " "))

	for variation := range d.variations {
		if !strings.Contains(variation, " ") {
			continue
		}
		if score := matchRatio(clean, variation); score >= d.threshold {
			return Result{Detected: true, Method: MethodMultiword, MatchedWord: variation, Confidence: score}
		}
	}
	return Result{}
}

// ExtractCommand returns the command portion following the matched wake
// word. When the wake word cannot be located, the full text is returned
// so the utterance is not lost.
func (d *Detector) ExtractCommand(fullText, matchedWord string) string {
	lower := strings.ToLower(fullText)
	matched := strings.ToLower(matchedWord)

	idx := strings.Index(lower, matched)
	if idx == -1 {
		// Fuzzy and phonetic matches may not appear verbatim; fall back
		// to a word scan.
		d.mu.RLock()
		defer d.mu.RUnlock()

		words := wordRe.FindAllString(lower, -1)
		for i, word := range words {
			_, known := d.variations[word]
			if word == matched || known {
				return strings.Join(words[i+1:], " ")
			}
		}
		return fullText
	}

	command := strings.TrimSpace(fullText[idx+len(matched):])
	command = leadConnectiveRe.ReplaceAllString(command, "")
	return strings.TrimSpace(command)
}

// Status returns the detector configuration.
func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	variations := make([]string, 0, len(d.variations))
	for v := range d.variations {
		variations = append(variations, v)
	}
	sort.Strings(variations)

	return Status{
		WakeWord:            d.wakeWord,
		SimilarityThreshold: d.threshold,
		PhoneticMatching:    d.phonetic,
		Variations:          variations,
	}
}

// soundex returns the 4-character Soundex code: first letter kept,
// consonants mapped to digits, vowels and runs of equal digits dropped.
func soundex(word string) string {
	word = strings.ToLower(word)
	if word == "" {
		return "0000"
	}

	codes := map[byte]byte{
		'b': '1', 'f': '1', 'p': '1', 'v': '1',
		'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
		'd': '3', 't': '3',
		'l': '4',
		'm': '5', 'n': '5',
		'r': '6',
	}

	first := word[0]
	if first >= 'a' && first <= 'z' {
		first -= 'a' - 'A'
	}
	result := []byte{first}
	for i := 1; i < len(word); i++ {
		code, ok := codes[word[i]]
		if !ok {
			continue
		}
		if result[len(result)-1] != code {
			result = append(result, code)
		}
	}

	for len(result) < 4 {
		result = append(result, '0')
	}
	return string(result[:4])
}

// matchRatio is Ratcliff/Obershelp similarity: twice the matched
// character count over the total length of both strings.
func matchRatio(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingChars(a, b)) / float64(len(a)+len(b))
}

func matchingChars(a, b string) int {
	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

func longestCommonBlock(a, b string) (ai, bi, size int) {
	// lengths[j] holds the common-suffix length ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					ai = i - size
					bi = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}

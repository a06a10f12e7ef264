package guardian

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// CategoryBlockedTerm is the category reported by TermPipeline.
const CategoryBlockedTerm = "blocked_term"

const defaultReplacement = "***"

// TermPipeline flags whole-word, case-insensitive occurrences of
// Config.BlockedTerms. Compiled patterns are cached per term list.
type TermPipeline struct {
	mu    sync.Mutex
	key   string
	regex *regexp.Regexp
}

func NewTermPipeline() *TermPipeline { return &TermPipeline{} }

func (p *TermPipeline) CheckProgressive(ctx context.Context, text string, cfg Config) ([]Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	re := p.compile(cfg.BlockedTerms)
	if re == nil || text == "" {
		return nil, nil
	}
	repl := cfg.Replacement
	if repl == "" {
		repl = defaultReplacement
	}
	var out []Action
	for _, loc := range re.FindAllStringIndex(text, -1) {
		out = append(out, Action{Start: loc[0], End: loc[1], Category: CategoryBlockedTerm, Replacement: repl})
	}
	return out, nil
}

func (p *TermPipeline) compile(terms []string) *regexp.Regexp {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, regexp.QuoteMeta(t))
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	// longest first so overlapping terms prefer the longer match
	sort.Slice(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	key := strings.Join(cleaned, "|")

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.regex != nil && p.key == key {
		return p.regex
	}
	p.key = key
	p.regex = regexp.MustCompile(`(?i)\b(?:` + key + `)\b`)
	return p.regex
}

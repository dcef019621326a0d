// Package match asks the language model which market record a listing is.
package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"gpu-hunter/pkg/llm"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/retry"
)

const (
	// MaxOptions is how many candidates are offered to the model at once.
	MaxOptions = 10
	maxTokens  = 10
)

var (
	errUnparseable = errors.New("no option number in answer")
	errDeclined    = errors.New("model found no matching option")

	optionRegex = regexp.MustCompile(`\b(\d{1,2})\b`)
	noneRegex   = regexp.MustCompile(`(?i)\bnone\b`)
	leadingNone = regexp.MustCompile("(?i)^[\\s*\"'`]*none\\b")
)

type Selector struct {
	Model llm.Completer
	Retry retry.Policy
}

func New(model llm.Completer) *Selector {
	return &Selector{Model: model, Retry: retry.Default}
}

// SelectBest returns the candidate the model considers the same product as
// the listing. It reports false without calling the model when there are no
// candidates, and false when the model fails, declines, or names an option
// that was not offered.
func (s *Selector) SelectBest(ctx context.Context, listing models.Listing, candidates []models.MarketCandidate) (models.MarketCandidate, bool) {
	if len(candidates) == 0 {
		return models.MarketCandidate{}, false
	}

	options := Shortlist(listing.Title, candidates)

	var index int
	err := s.Retry.Do(ctx, "market matching", func() error {
		answer, err := s.Model.Complete(ctx, Prompt(listing, options), maxTokens)
		if err != nil {
			return err
		}
		index, err = ParseAnswer(answer, len(options))
		return err
	})
	if err != nil {
		log.Printf("[MATCH] %q: %v", listing.Title, fmt.Errorf("%w: %w", models.ErrMatchingFailed, err))
		return models.MarketCandidate{}, false
	}

	return options[index], true
}

// ParseAnswer returns the 0-based index of the option named in answer. NONE
// and out of range numbers are final; an answer without any number is
// reported as unparseable so it can be retried. An answer opening with NONE is
// a refusal even when it goes on to mention option numbers.
func ParseAnswer(answer string, options int) (int, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, llm.ErrEmptyResponse
	}

	if leadingNone.MatchString(answer) {
		return 0, retry.Permanent(errDeclined)
	}

	m := optionRegex.FindStringSubmatch(answer)
	if m == nil {
		if noneRegex.MatchString(answer) {
			return 0, retry.Permanent(errDeclined)
		}
		return 0, fmt.Errorf("%w: %q", errUnparseable, answer)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errUnparseable, answer)
	}
	if n < 1 || n > options {
		return 0, retry.Permanent(fmt.Errorf("option %d not among the %d offered", n, options))
	}
	return n - 1, nil
}

// Shortlist keeps at most MaxOptions candidates. When there are more, the
// ones whose title is closest to the listing title are kept, in order of
// similarity; ties keep dataset order.
func Shortlist(title string, candidates []models.MarketCandidate) []models.MarketCandidate {
	if len(candidates) <= MaxOptions {
		return candidates
	}

	type scored struct {
		candidate  models.MarketCandidate
		similarity float64
	}

	needle := strings.ToLower(title)
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{
			candidate:  c,
			similarity: matchr.JaroWinkler(needle, strings.ToLower(c.Title), false),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})

	out := make([]models.MarketCandidate, MaxOptions)
	for i := range out {
		out[i] = ranked[i].candidate
	}
	return out
}

// Prompt builds the matching prompt listing each option as "n. title - price".
func Prompt(listing models.Listing, options []models.MarketCandidate) string {
	var b strings.Builder

	b.WriteString("You are matching a secondhand GPU listing to reference market prices.\n\n")
	b.WriteString("LISTING TO MATCH:\n")
	fmt.Fprintf(&b, "Title: %s\n", listing.Title)
	if listing.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncate(listing.Description, 300))
	}

	b.WriteString("\nMARKET OPTIONS:\n")
	for i, o := range options {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, o.Title, o.Price)
	}

	b.WriteString(`
INSTRUCTIONS:
- Pick the market option that is the same GPU as the listing
- Consider GPU model numbers, memory size, and brand
- Return only the number of the best matching option
- If none of the options is the same GPU, return NONE

Answer:`)
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

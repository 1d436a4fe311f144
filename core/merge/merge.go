package merge

import (
	"fmt"
	"strings"
)

// lengthDominanceFactor is the ratio above which the longer answer is
// considered strictly more informative and the shorter one is dropped.
const lengthDominanceFactor = 1.5

// Candidate is one provider's completed answer, tagged with the provider's
// stable name for attribution in the merged output.
type Candidate struct {
	Provider string
	Content  string
}

// Final merges two completed answers into one deliverable text.
//
// The heuristic, in order:
//
//  1. If either candidate is empty (after trimming), the other wins verbatim.
//  2. If one answer is more than 50% longer than the other, the longer one
//     wins and a one-line note names the provider whose answer was omitted.
//  3. Otherwise both answers are kept, concatenated under provider labels.
//
// Length is a proxy for information content, nothing more. The function never
// attempts to reconcile contradictory answers.
func Final(a, b Candidate) string {
	aContent := strings.TrimSpace(a.Content)
	bContent := strings.TrimSpace(b.Content)

	if aContent == "" {
		return bContent
	}

	if bContent == "" {
		return aContent
	}

	if float64(len(aContent)) > lengthDominanceFactor*float64(len(bContent)) {
		return withOmissionNote(aContent, b.Provider)
	}

	if float64(len(bContent)) > lengthDominanceFactor*float64(len(aContent)) {
		return withOmissionNote(bContent, a.Provider)
	}

	return fmt.Sprintf("[%s]\n%s\n\n[%s]\n%s", a.Provider, aContent, b.Provider, bContent)
}

// withOmissionNote appends the one-line attribution note for the provider
// whose answer was dropped.
func withOmissionNote(content, omittedProvider string) string {
	return fmt.Sprintf("%s\n\n(note: a substantially shorter answer from %s was omitted)", content, omittedProvider)
}

package merger

import (
	"strings"

	"github.com/sokinpui/cssmerge/internal/parser"
	"github.com/sokinpui/cssmerge/model"
)

// Marker separates the baseline from the appended blocks. It must stay
// byte-for-byte stable so merged files can be compared across runs.
const Marker = "\n\n/* ============================================\n" +
	"   MERGED NEW FEATURES\n" +
	"   ============================================ */\n\n"

// Result is the outcome of a merge.
type Result struct {
	// Text is the baseline followed by Marker and the novel blocks.
	Text string
	// Indexed is the number of distinct non-empty keys in the baseline.
	Indexed int
	// Candidates is the number of blocks scanned from the candidate.
	Candidates int
	// Skipped counts candidate blocks dropped for having an empty key.
	Skipped int
	// Novel holds the appended candidate blocks in candidate order.
	Novel []model.Block
}

// KeySet is the set of normalized selector keys present in a document.
type KeySet map[string]struct{}

// NewKeySet indexes the non-empty keys of blocks.
func NewKeySet(blocks []model.Block) KeySet {
	keys := make(KeySet, len(blocks))
	for _, b := range blocks {
		if b.Key == "" {
			continue
		}
		keys[b.Key] = struct{}{}
	}
	return keys
}

// Has reports whether key is in the set.
func (k KeySet) Has(key string) bool {
	_, ok := k[key]
	return ok
}

// NovelBlocks returns the blocks whose key is non-empty and absent from keys,
// preserving their order, along with how many empty-key blocks were skipped.
func NovelBlocks(keys KeySet, blocks []model.Block) (novel []model.Block, skipped int) {
	for _, b := range blocks {
		if b.Key == "" {
			skipped++
			continue
		}
		if keys.Has(b.Key) {
			continue
		}
		novel = append(novel, b)
	}
	return novel, skipped
}

// Merge appends to baseline every candidate block whose selector is not
// already present in baseline. Block bodies are never compared: a selector
// that exists in both documents keeps the baseline's version.
func Merge(baseline, candidate string) Result {
	keys := NewKeySet(parser.ScanBlocks(baseline))
	candidateBlocks := parser.ScanBlocks(candidate)
	novel, skipped := NovelBlocks(keys, candidateBlocks)

	texts := make([]string, len(novel))
	for i, b := range novel {
		texts[i] = b.Text
	}

	var sb strings.Builder
	sb.Grow(len(baseline) + len(Marker) + len(candidate))
	sb.WriteString(baseline)
	sb.WriteString(Marker)
	sb.WriteString(strings.Join(texts, "\n"))

	return Result{
		Text:       sb.String(),
		Indexed:    len(keys),
		Candidates: len(candidateBlocks),
		Skipped:    skipped,
		Novel:      novel,
	}
}

// NovelKeys lists the keys of the appended blocks.
func (r Result) NovelKeys() []string {
	keys := make([]string, len(r.Novel))
	for i, b := range r.Novel {
		keys[i] = b.Key
	}
	return keys
}

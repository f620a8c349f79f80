package model

// Block is one rule group scanned from a stylesheet: the selector text and
// its brace-delimited body, kept verbatim so it can be re-emitted as is.
type Block struct {
	Selector string // Raw text preceding the opening brace.
	Key      string // Normalized selector, used for equality only.
	Text     string // Selector plus body, e.g. ".a { color: red; }".
}

// FileChange represents a single planned write of a merged document.
type FileChange struct {
	Path    string
	Content []string
}

// Summary holds the results of an operation for display.
type Summary struct {
	Baseline   string
	Candidate  string
	Output     string
	Indexed    int      // Distinct selector keys indexed from the baseline.
	Candidates int      // Blocks scanned from the candidate.
	Skipped    int      // Candidate blocks with an empty key.
	Novel      int      // Candidate blocks appended to the baseline.
	NovelKeys  []string // Keys of the appended blocks, in candidate order.
	Written    []string
	Failed     []string
	DryRun     bool
	Diff       string
	Message    string
	Jobs       []Summary // Per-job results of a manifest run.
}

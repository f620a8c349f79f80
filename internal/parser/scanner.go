package parser

import (
	"iter"

	"github.com/sokinpui/cssmerge/model"
)

// scanState is the scanner's position relative to the block structure.
type scanState int

const (
	// stateSeeking looks for the next opening brace; blockStart marks where
	// the upcoming block's selector text begins.
	stateSeeking scanState = iota
	// stateInBlock walks a block body until depth returns to zero.
	stateInBlock
)

// Scanner splits a stylesheet into top-level brace-delimited blocks.
// Nested groups (e.g. @media wrappers) stay inside their enclosing block.
//
// A Scanner is single use: once Next reports false it stays exhausted.
type Scanner struct {
	text       string
	pos        int
	blockStart int
	openIdx    int
	depth      int
	state      scanState

	dangling int
}

// NewScanner returns a Scanner positioned at the start of text.
func NewScanner(text string) *Scanner {
	return &Scanner{text: text, dangling: -1}
}

// Next returns the next complete block. It reports false at end of input.
// A block still open when the input ends is dropped, not returned.
func (s *Scanner) Next() (model.Block, bool) {
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		s.pos++

		switch s.state {
		case stateSeeking:
			if c != '{' {
				continue
			}
			s.openIdx = s.pos - 1
			s.depth = 1
			s.state = stateInBlock

		case stateInBlock:
			switch c {
			case '{':
				s.depth++
			case '}':
				s.depth--
			}
			if s.depth > 0 {
				continue
			}
			block := s.emit()
			s.blockStart = s.pos
			s.state = stateSeeking
			return block, true
		}
	}

	if s.state == stateInBlock {
		s.dangling = s.blockStart
		s.state = stateSeeking
		s.depth = 0
		s.blockStart = len(s.text)
	}
	return model.Block{}, false
}

// Dangling reports the offset of a block whose braces never balanced
// before the end of input. It is only meaningful once Next returned false.
func (s *Scanner) Dangling() (int, bool) {
	return s.dangling, s.dangling >= 0
}

func (s *Scanner) emit() model.Block {
	selector := s.text[s.blockStart:s.openIdx]
	return model.Block{
		Selector: selector,
		Key:      NormalizeSelector(selector),
		Text:     s.text[s.blockStart:s.pos],
	}
}

// Blocks yields the blocks of text in document order.
func Blocks(text string) iter.Seq[model.Block] {
	return func(yield func(model.Block) bool) {
		s := NewScanner(text)
		for {
			b, ok := s.Next()
			if !ok || !yield(b) {
				return
			}
		}
	}
}

// ScanBlocks returns every complete top-level block of text in order.
func ScanBlocks(text string) []model.Block {
	var blocks []model.Block
	for b := range Blocks(text) {
		blocks = append(blocks, b)
	}
	return blocks
}

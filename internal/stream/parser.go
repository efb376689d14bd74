package stream

import (
	"github.com/tidwall/gjson"
)

// Parser is the pull-style "push chunk, pop events" object described
// in SPEC_FULL.md's design notes: callers drive it from a read loop by
// calling Feed with newly-read bytes and then draining Next() until it
// returns false, then finally calling Finish at end-of-stream.
//
// A Parser is single-iteration-scoped: construct a fresh one per
// iteration so its Tree starts empty, matching spec.md's "sealed per
// iteration" Iteration lifecycle.
type Parser struct {
	dialect Dialect
	decode  Decoder
	framer  Framer
	tree    *Tree
	pending []Event
}

// NewParser constructs a Parser for the given vendor dialect.
func NewParser(dialect Dialect) *Parser {
	return &Parser{dialect: dialect, decode: DecoderFor(dialect), tree: NewTree()}
}

// Tree returns the subagent tree accumulated so far. Safe to call at
// any point; call it after Finish for the sealed, force-closed result.
func (p *Parser) Tree() *Tree { return p.tree }

// Feed appends chunk to the line framer and queues every event it
// yields. Call Next() afterwards to drain them.
func (p *Parser) Feed(chunk []byte) {
	for _, line := range p.framer.Feed(chunk) {
		p.consumeLine(line)
	}
}

// Finish flushes any trailing partial line and force-closes orphaned
// subagent nodes. Call Next() afterwards to drain the final events.
func (p *Parser) Finish() {
	if line, ok := p.framer.Flush(); ok {
		p.consumeLine(line)
	}
	p.tree.Close()
}

// Next pops the next queued event, or returns ok=false if none remain
// right now (more may arrive after the next Feed/Finish call).
func (p *Parser) Next() (Event, bool) {
	if len(p.pending) == 0 {
		return Event{}, false
	}
	e := p.pending[0]
	p.pending = p.pending[1:]
	return e, true
}

func (p *Parser) consumeLine(line string) {
	if line == "" {
		return // empty lines are silently dropped
	}

	cleaned, hasBrace := preClean(line)
	if !hasBrace {
		p.pending = append(p.pending, Event{Kind: KindLineText, LineText: cleaned})
		return
	}

	structured, err := p.decode([]byte(cleaned))
	if err != nil {
		// Both branches emit a ParseError; nothing is recovered from
		// the line. gjson.Valid only picks the reason text, separating
		// well-formed JSON the dialect decoder rejected from a line
		// that is not valid JSON at all.
		if gjson.Valid(cleaned) {
			p.pending = append(p.pending, Event{
				Kind: KindParseError,
				ParseErr: &ParseError{Raw: cleaned, Reason: err.Error()},
			})
			return
		}
		p.pending = append(p.pending, Event{
			Kind:     KindParseError,
			ParseErr: &ParseError{Raw: cleaned, Reason: "invalid json: " + err.Error()},
		})
		return
	}

	for i := range structured {
		se := structured[i]
		if perr := p.tree.Apply(se); perr != nil {
			p.pending = append(p.pending, Event{Kind: KindParseError, ParseErr: perr})
			continue
		}
		p.pending = append(p.pending, Event{Kind: KindStructured, Structured: &se})
	}
}

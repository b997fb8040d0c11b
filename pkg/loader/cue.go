package loader

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// CUEParser compiles CUE plus files.
type CUEParser struct {
	ctx *cue.Context
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{
		ctx: cuecontext.New(),
	}
}

// Position locates a diagnostic inside a file.
type Position struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Parse compiles a CUE document and decodes it into plain Go values.
// The returned positions describe every CUE error, if any.
func (cp *CUEParser) Parse(filename string, src []byte) (interface{}, []Position, error) {
	val := cp.ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, cp.positions(err), cp.describe(err)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, cp.positions(err), cp.describe(err)
	}

	var doc interface{}
	if err := val.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return doc, nil, nil
}

// positions converts CUE errors into positions.
func (cp *CUEParser) positions(err error) []Position {
	var out []Position
	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		if len(pos) == 0 {
			continue
		}
		out = append(out, Position{
			File:   pos[0].Filename(),
			Line:   pos[0].Line(),
			Column: pos[0].Column(),
		})
	}
	return out
}

func (cp *CUEParser) describe(err error) error {
	return fmt.Errorf("%s", strings.TrimSpace(errors.Details(err, nil)))
}

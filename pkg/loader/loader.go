// Package loader executes plus files and returns their exports.
//
// Starlark files (.star) export their public globals. CUE, YAML and JSON/JSONC
// documents are exported as a whole under "default". All formats produce the
// value model documented on engine.Exports.
package loader

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

// Supported plus file formats, keyed by extension.
const (
	FormatStarlark = "star"
	FormatCUE      = "cue"
	FormatYAML     = "yaml"
	FormatJSON     = "json"
)

// Extensions lists the file extensions a plus file may have, in probing order.
var Extensions = []string{"star", "cue", "yaml", "yml", "json", "jsonc"}

// Format returns the format of a file, or "" when unsupported.
func Format(filePath string) string {
	switch strings.TrimPrefix(path.Ext(filePath), ".") {
	case "star":
		return FormatStarlark
	case "cue":
		return FormatCUE
	case "yaml", "yml":
		return FormatYAML
	case "json", "jsonc":
		return FormatJSON
	}
	return ""
}

// Options configures a Loader.
type Options struct {
	// Timeout bounds Starlark execution, per file and per function call.
	Timeout time.Duration

	Logger  *telemetry.Logger
	Tracer  *telemetry.Tracer
	Metrics *telemetry.Metrics
}

// Loader implements engine.ModuleLoader over an afero filesystem.
type Loader struct {
	fs       afero.Fs
	starlark *StarlarkEvaluator
	cue      *CUEParser
	logger   *telemetry.Logger
	tracer   *telemetry.Tracer
	metrics  *telemetry.Metrics
}

// New creates a loader reading files from fs.
func New(fs afero.Fs, opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = telemetry.Nop()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NoopTracer()
	}
	return &Loader{
		fs:       fs,
		starlark: NewStarlarkEvaluator(opts.Timeout),
		cue:      NewCUEParser(),
		logger:   opts.Logger.NewComponentLogger("loader"),
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
	}
}

// Load reads and executes a plus file.
func (l *Loader) Load(ctx context.Context, file engine.FilePath) (exports engine.Exports, err error) {
	show := file.ShowToUser()
	format := Format(file.Abs)

	ctx, span := l.tracer.StartLoadSpan(ctx, show, format)
	defer func() { telemetry.EndSpan(span, err) }()

	if format == "" {
		return nil, engine.NewLoadError(show, fmt.Errorf("unsupported file extension %q", path.Ext(file.Abs)))
	}

	src, err := afero.ReadFile(l.fs, file.Abs)
	if err != nil {
		return nil, engine.NewLoadError(show, err)
	}

	exports, err = l.execute(ctx, format, show, src)
	if err != nil {
		return nil, err
	}

	l.metrics.RecordFileLoaded(format)
	l.logger.WithFile(show).Debugf("loaded %d export(s)", len(exports))
	return exports, nil
}

func (l *Loader) execute(ctx context.Context, format, show string, src []byte) (engine.Exports, error) {
	if format == FormatStarlark {
		exports, err := l.starlark.Evaluate(ctx, show, src)
		if err != nil {
			return nil, engine.NewLoadError(show, err)
		}
		return exports, nil
	}

	var doc interface{}
	var err error
	switch format {
	case FormatCUE:
		var positions []Position
		doc, positions, err = l.cue.Parse(show, src)
		if err != nil {
			loadErr := engine.NewLoadError(show, err)
			if len(positions) > 0 {
				loadErr = loadErr.
					WithDetail("line", positions[0].Line).
					WithDetail("column", positions[0].Column)
			}
			return nil, loadErr
		}
	case FormatYAML:
		doc, err = parseYAML(src)
	case FormatJSON:
		doc, err = parseJSON(src)
	}
	if err != nil {
		return nil, engine.NewLoadError(show, err)
	}

	value, err := normalize(doc)
	if err != nil {
		return nil, engine.NewLoadError(show, err)
	}
	return engine.Exports{"default": value}, nil
}

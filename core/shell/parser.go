// Package shell turns raw command lines into pipeline stages.
//
// The grammar is deliberately small:
//
//	line     := stage ( "|" stage )* [ "&" ]
//	stage    := word+ with optional "<" PATH and ">" PATH
//
// Words are separated by whitespace only. There is no quoting, escaping or
// expansion, so `echo "a b"` passes the two words `"a` and `b"`.
package shell

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// BackgroundMarker as the last word of a line runs it without waiting.
	BackgroundMarker = "&"
	// PipeSeparator splits a line into stages.
	PipeSeparator = "|"
	// RedirectIn reads a stage's standard input from the following path.
	RedirectIn = "<"
	// RedirectOut writes a stage's standard output to the following path.
	RedirectOut = ">"
)

var (
	// ErrEmptyLine is returned for lines with no words, callers treat it as a no-op.
	ErrEmptyLine = errors.New("empty line")
	// ErrMalformedPipeline is returned when a stage has no command.
	ErrMalformedPipeline = errors.New("malformed pipeline")
	// ErrMissingRedirectTarget is returned when < or > isn't followed by a path.
	ErrMissingRedirectTarget = errors.New("missing redirection target")
)

// Redirect is one redirection operator and its target.
type Redirect struct {
	Op   string
	Path string
}

// Stage is a single program invocation within a pipeline.
type Stage struct {
	// Args holds the program name followed by its arguments.
	Args []string
	// Stdin is the effective input redirection path, empty if none.
	Stdin string
	// Stdout is the effective output redirection path, empty if none.
	Stdout string
	// Redirects lists every redirection in the order written. Each target
	// is opened in turn; the last one of each kind is the one used.
	Redirects []Redirect
	// Background is only meaningful on the final stage of a line.
	Background bool
}

// Redirections is the ordered list of targets to open. Stages built by
// hand without Redirects fall back to Stdin then Stdout.
func (s *Stage) Redirections() []Redirect {
	if len(s.Redirects) > 0 {
		return s.Redirects
	}

	var out []Redirect
	if s.Stdin != "" {
		out = append(out, Redirect{Op: RedirectIn, Path: s.Stdin})
	}
	if s.Stdout != "" {
		out = append(out, Redirect{Op: RedirectOut, Path: s.Stdout})
	}
	return out
}

// Name is the program the stage runs.
func (s *Stage) Name() string {
	if len(s.Args) == 0 {
		return ""
	}
	return s.Args[0]
}

// Pipeline is an ordered, non-empty chain of stages parsed from one line.
type Pipeline struct {
	// Text is an owned copy of the line that produced the pipeline.
	Text   string
	Stages []*Stage
}

// Background reports whether the pipeline should run without the shell
// waiting on it. Only single stage lines may run in the background; a
// trailing & on a piped line is ignored and the pipeline runs in the
// foreground.
func (p *Pipeline) Background() bool {
	return len(p.Stages) == 1 && p.Stages[0].Background
}

// Pipes is the number of inter-stage pipes the pipeline needs.
func (p *Pipeline) Pipes() int {
	if len(p.Stages) == 0 {
		return 0
	}
	return len(p.Stages) - 1
}

// Tokenize splits a line on whitespace. If the final word is the background
// marker it is removed and background is true.
func Tokenize(line string) (words []string, background bool) {
	words = strings.Fields(line)
	if n := len(words); n > 0 && words[n-1] == BackgroundMarker {
		words = words[:n-1]
		background = true
	}
	return words, background
}

// Parse splits a line into stages and resolves each stage's redirections.
// Nothing is executed; any syntax problem is reported before a process could
// be created.
func Parse(line string) (*Pipeline, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil, ErrEmptyLine
	}

	parts := strings.Split(text, PipeSeparator)
	out := &Pipeline{Text: strings.Clone(text)}
	for i, part := range parts {
		var words []string
		var background bool
		if i == len(parts)-1 {
			words, background = Tokenize(part)
		} else {
			words = strings.Fields(part)
		}

		if len(words) == 0 {
			if len(parts) == 1 {
				// The line was a lone "&".
				return nil, fmt.Errorf("%w: nothing to run", ErrMalformedPipeline)
			}
			return nil, fmt.Errorf("%w: stage %d is empty", ErrMalformedPipeline, i+1)
		}

		stage, err := ParseStage(words)
		if err != nil {
			return nil, err
		}
		stage.Background = background
		out.Stages = append(out.Stages, stage)
	}

	return out, nil
}

// ParseStage removes redirection operators and their targets from words.
// Every redirection is kept in order; when an operator appears more than
// once the last target wins.
func ParseStage(words []string) (*Stage, error) {
	stage := &Stage{}
	for i := 0; i < len(words); i++ {
		switch op := words[i]; op {
		case RedirectIn, RedirectOut:
			if i+1 >= len(words) || isOperator(words[i+1]) {
				return nil, fmt.Errorf("%w after %q", ErrMissingRedirectTarget, op)
			}
			i++
			stage.Redirects = append(stage.Redirects, Redirect{Op: op, Path: words[i]})
			if op == RedirectIn {
				stage.Stdin = words[i]
			} else {
				stage.Stdout = words[i]
			}
		default:
			stage.Args = append(stage.Args, words[i])
		}
	}

	if len(stage.Args) == 0 {
		return nil, fmt.Errorf("%w: redirection without a command", ErrMalformedPipeline)
	}
	return stage, nil
}

func isOperator(word string) bool {
	switch word {
	case RedirectIn, RedirectOut, PipeSeparator, BackgroundMarker:
		return true
	}
	return false
}

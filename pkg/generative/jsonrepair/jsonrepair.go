// Package jsonrepair decodes JSON produced by generative models.
//
// Model output is frequently almost-JSON: wrapped in a markdown fence,
// sprinkled with zero-width or control characters, or carrying raw line
// breaks inside string values. Decode tries the text as-is and then through
// progressively more aggressive cleanup passes, stopping at the first that
// parses. Each pass is a plain string function and can be used on its own.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stage names the cleanup level at which a document parsed.
type Stage string

const (
	StageStrict    Stage = "strict"
	StageSanitized Stage = "sanitized"
	StageASCII     Stage = "ascii"
	StageCollapsed Stage = "collapsed"
)

// ErrMalformedOutput matches every *MalformedOutputError.
var ErrMalformedOutput = errors.New("jsonrepair: malformed generative output")

// MalformedOutputError reports output that no stage could decode. Raw is
// the untouched model text; Stage and Offset describe the last attempt.
type MalformedOutputError struct {
	Raw    string
	Stage  Stage
	Offset int64
	Err    error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("jsonrepair: output not decodable (last stage %s, offset %d): %v", e.Stage, e.Offset, e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

type pass struct {
	stage Stage
	apply func(string) string
}

var passes = []pass{
	{StageStrict, StripCodeFence},
	{StageSanitized, func(s string) string { return StripControlChars(StripFormatChars(NormalizeUnicode(s))) }},
	{StageASCII, ToASCII},
	{StageCollapsed, CollapseWhitespace},
}

// Decode unmarshals raw into v and returns the stage that succeeded.
// Passes are cumulative: each one runs on the output of the previous.
// v must be a non-nil pointer. The document is decoded into a fresh value
// that replaces *v only on success, so on any error v is left untouched.
func Decode(raw string, v any) (Stage, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return "", &json.InvalidUnmarshalError{Type: reflect.TypeOf(v)}
	}

	text := raw
	var last *MalformedOutputError
	for _, p := range passes {
		text = p.apply(text)
		if json.Valid([]byte(text)) {
			fresh := reflect.New(rv.Elem().Type())
			if err := json.Unmarshal([]byte(text), fresh.Interface()); err != nil {
				return p.stage, &MalformedOutputError{Raw: raw, Stage: p.stage, Offset: errorOffset(err), Err: err}
			}
			rv.Elem().Set(fresh.Elem())
			return p.stage, nil
		}
		var scratch any
		err := json.Unmarshal([]byte(text), &scratch)
		last = &MalformedOutputError{Raw: raw, Stage: p.stage, Offset: errorOffset(err), Err: err}
	}
	return last.Stage, last
}

func errorOffset(err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return -1
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*[ \t]*\r?\n?(.*?)\r?\n?```$")

// StripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, and trims outer whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// NormalizeUnicode applies NFKC normalization, folding compatibility
// characters such as non-breaking spaces and full-width punctuation.
func NormalizeUnicode(s string) string {
	return norm.NFKC.String(s)
}

// StripFormatChars removes Unicode format characters (category Cf), such
// as zero-width spaces and byte order marks.
func StripFormatChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// StripControlChars removes C0 and C1 control characters except newline,
// carriage return and tab.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

var asciiReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", "'", "”", "'", "„", "'",
	"–", "-", "—", "-", "−", "-",
	"•", "-", "…", "...",
)

// ToASCII folds accented letters to their base letter, replaces common
// typographic punctuation and drops any remaining non-ASCII rune. Curly
// double quotes become apostrophes so they cannot terminate a JSON string.
func ToASCII(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = asciiReplacer.Replace(folded)
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
}

// CollapseWhitespace replaces every run of whitespace, including line
// breaks inside string values, with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

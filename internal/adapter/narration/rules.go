package narration

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Verdict is the outcome of running a line through the rules.
type Verdict int

const (
	Keep Verdict = iota
	DropNoise
	DropDecoration
)

// Replacement rewrites every occurrence of From into To.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// DefaultNoisePatterns match transport and framework chatter that means
// nothing to a person watching the agent think.
var DefaultNoisePatterns = []string{
	// bare severity prefixes such as "INFO: starting" or "WARNING:root:retrying"
	`^(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|CRITICAL|FATAL)\s*:`,
	`(?i)\b(ssl|tls)\b.*\bhandshake\b`,
	// httpcore traces
	`\b(connect_tcp|start_tls|send_request_headers|send_request_body|receive_response_headers|receive_response_body|response_closed)\.(started|complete|failed)\b`,
	`^HTTP Request: `,
	// raw streamed chunk dumps
	`^data: [\[{]`,
	`(?i)^(raw )?chunk\s*[:=]`,
	`^ChatCompletionChunk\(`,
	// progress bars
	`\d{1,3}%\|[^|]*\|`,
	`^\[[#=>. -]{5,}\]`,
}

// DefaultReplacements are applied in a single pass. When two entries match
// at the same position the earlier one wins, so "subtask=" precedes "task=".
var DefaultReplacements = []Replacement{
	{From: "PLAN(", To: "計画("},
	{From: "subtask=", To: "サブタスク="},
	{From: "task=", To: "タスク="},
	{From: "sub_plans=", To: "サブ計画="},
	{From: "Decomposing", To: "分解中"},
	{From: "Executing", To: "実行中"},
	{From: "Reasoning", To: "推論中"},
	{From: "RESULT:", To: "結果:"},
	{From: "ANSWER:", To: "回答:"},
	{From: "QUESTION:", To: "質問:"},
}

// Rules decide which rendered log lines become narration and how they read.
type Rules struct {
	noise        []*regexp.Regexp
	replacements []Replacement
	replacer     *strings.Replacer
}

// NewRules compiles the given noise patterns and replacement table.
func NewRules(noise []string, replacements []Replacement) (*Rules, error) {
	r := &Rules{replacements: append([]Replacement(nil), replacements...)}
	for _, p := range noise {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid noise pattern %q: %w", p, err)
		}
		r.noise = append(r.noise, re)
	}

	oldnew := make([]string, 0, 2*len(replacements))
	for _, rep := range replacements {
		if rep.From == "" {
			return nil, errors.New("replacement with empty 'from' string")
		}
		oldnew = append(oldnew, rep.From, rep.To)
	}
	if len(oldnew) > 0 {
		r.replacer = strings.NewReplacer(oldnew...)
	}
	return r, nil
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	r, err := NewRules(DefaultNoisePatterns, DefaultReplacements)
	if err != nil {
		panic(err)
	}
	return r
}

type rulesFile struct {
	// Extend keeps the built-in rules and appends the file's entries after them.
	Extend       *bool         `yaml:"extend"`
	Noise        []string      `yaml:"noise"`
	Replacements []Replacement `yaml:"replacements"`
}

// LoadRules reads a YAML rules file. An empty path yields DefaultRules.
//
//	extend: true        # default; false replaces the built-in tables
//	noise:
//	  - '^Retrying'
//	replacements:
//	  - {from: "step=", to: "ステップ="}
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read narration rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse narration rules %s: %w", path, err)
	}

	noise, reps := f.Noise, f.Replacements
	if f.Extend == nil || *f.Extend {
		noise = append(append([]string(nil), DefaultNoisePatterns...), f.Noise...)
		reps = append(append([]Replacement(nil), DefaultReplacements...), f.Replacements...)
	}
	return NewRules(noise, reps)
}

// Apply filters and rewrites a rendered line. The returned text is only
// meaningful when the verdict is Keep.
func (r *Rules) Apply(line string) (string, Verdict) {
	trimmed := strings.TrimSpace(line)
	for _, re := range r.noise {
		if re.MatchString(trimmed) {
			return "", DropNoise
		}
	}
	if isDecoration(trimmed) {
		return "", DropDecoration
	}

	out := strings.TrimRightFunc(line, unicode.IsSpace)
	if r.replacer != nil {
		out = r.replacer.Replace(out)
	}
	if strings.TrimSpace(out) == "" {
		return "", DropDecoration
	}
	return out, Keep
}

// Replacements returns a copy of the replacement table in priority order.
func (r *Rules) Replacements() []Replacement {
	return append([]Replacement(nil), r.replacements...)
}

// isDecoration reports whether s holds nothing but whitespace, box-drawing,
// block or geometric glyphs, or ASCII rule characters.
func isDecoration(s string) bool {
	for _, c := range s {
		switch {
		case unicode.IsSpace(c):
		case c >= 0x2500 && c <= 0x25FF:
		case strings.ContainsRune("-=_*~#+|.:`'", c):
		default:
			return false
		}
	}
	return true
}

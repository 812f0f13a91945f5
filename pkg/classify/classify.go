// Package classify assigns a priority tier and a confidence score to an intake file.
//
// Priority comes from the first keyword tier with a match. Confidence is an
// additive score over independent signals, capped at 100:
//
//	allowed_extension  +30  extension is actionable
//	keyword_matches    +10  per tier with at least one match
//	keyword_density    +15  more than one distinct keyword
//	clear_filename     +10  name splits into more than two tokens
//	no_ambiguity       +15  always
//
// Classification never fails: unreadable content is classified as empty.
package classify

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// Signal names, in the order they are evaluated.
const (
	SignalAllowedExtension = "allowed_extension"
	SignalKeywordMatches   = "keyword_matches"
	SignalKeywordDensity   = "keyword_density"
	SignalClearFilename    = "clear_filename"
	SignalNoAmbiguity      = "no_ambiguity"
)

// Score weights.
const (
	weightAllowedExtension = 30
	weightPerTier          = 10
	weightDensity          = 15
	weightClearFilename    = 10
	weightNoAmbiguity      = 15
	maxConfidence          = 100
)

// Confidence labels.
const (
	LabelHigh   = "High"
	LabelMedium = "Medium"
	LabelLow    = "Low"
)

// DefaultMaxContentBytes caps how much of a file is read for keywords.
const DefaultMaxContentBytes = 1 << 20

var reasons = map[rules.Priority]string{
	rules.PriorityUrgent: "Contains urgent keywords (critical, emergency, immediate)",
	rules.PriorityHigh:   "Contains priority keywords (important, urgent, priority)",
	rules.PriorityMedium: "Contains review keywords (review, check, verify)",
	rules.PriorityLow:    "Standard processing priority",
}

// Result is the classification of one file.
type Result struct {
	Priority   rules.Priority
	Confidence int
	Label      string
	// Signals are the contributing rule names in evaluation order.
	Signals []string
	Reason  string
	// Keywords are the distinct keywords found, in tier order.
	Keywords []string
	// ContentError is set when the file could not be read.
	ContentError *mrerrors.ItemError
}

// Classifier scores files against a rule set.
type Classifier struct {
	rules    *rules.Rules
	maxBytes int64
	logger   logging.Logger
}

// Option configures the classifier.
type Option func(*Classifier)

// WithMaxContentBytes caps how much of each file is read.
func WithMaxContentBytes(n int64) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithLogger sets the logger used for unreadable-file warnings.
func WithLogger(l logging.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a classifier over r.
func New(r *rules.Rules, opts ...Option) *Classifier {
	c := &Classifier{
		rules:    r,
		maxBytes: DefaultMaxContentBytes,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify scores content that belongs to filename.
func (c *Classifier) Classify(content, filename string) Result {
	folded := rules.Fold(content)

	priority := rules.PriorityLow
	var keywords []string
	tiersMatched := 0

	for _, tier := range c.rules.Tiers {
		matched := false
		for _, kw := range tier.Keywords {
			if strings.Contains(folded, rules.Fold(kw)) {
				matched = true
				keywords = appendUnique(keywords, kw)
			}
		}
		if !matched {
			continue
		}
		tiersMatched++
		if priority == rules.PriorityLow {
			priority = tier.Priority
		}
	}

	score := 0
	var signals []string

	if c.rules.IsAllowed(filename) {
		score += weightAllowedExtension
		signals = append(signals, SignalAllowedExtension)
	}
	if tiersMatched > 0 {
		score += weightPerTier * tiersMatched
		signals = append(signals, SignalKeywordMatches)
	}
	if len(keywords) > 1 {
		score += weightDensity
		signals = append(signals, SignalKeywordDensity)
	}
	if len(FilenameTokens(filename)) > 2 {
		score += weightClearFilename
		signals = append(signals, SignalClearFilename)
	}
	score += weightNoAmbiguity
	signals = append(signals, SignalNoAmbiguity)

	score = clamp(score, 0, maxConfidence)

	return Result{
		Priority:   priority,
		Confidence: score,
		Label:      Label(score),
		Signals:    signals,
		Reason:     Reason(priority),
		Keywords:   keywords,
	}
}

// ClassifyFile reads up to the configured byte cap of path and classifies it.
// Read failures degrade to empty content and are reported in ContentError.
func (c *Classifier) ClassifyFile(path string) Result {
	name := filepath.Base(path)

	content, err := c.readContent(path)
	if err != nil {
		ie := mrerrors.ClassifyError(err, name)
		if ie.Code == mrerrors.ErrMoveFailed {
			ie.Code = mrerrors.ErrUnreadableContent
		}
		c.logger.Warn("Could not read file content, classifying as empty",
			logging.F("file", name), logging.F("code", string(ie.Code)), logging.Err(err))
		res := c.Classify("", name)
		res.ContentError = ie
		return res
	}
	return c.Classify(content, name)
}

func (c *Classifier) readContent(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.New("read " + path + ": is a directory")
	}

	buf, err := io.ReadAll(io.LimitReader(f, c.maxBytes))
	if err != nil {
		return "", err
	}
	if int64(len(buf)) == c.maxBytes {
		buf = trimPartialRune(buf)
	}
	return Decode(buf), nil
}

// trimPartialRune drops a UTF-8 sequence cut off by the read limit, but only
// when the remaining bytes are valid UTF-8.
func trimPartialRune(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	for cut := 1; cut < utf8.UTFMax && cut < len(b); cut++ {
		head, tail := b[:len(b)-cut], b[len(b)-cut:]
		if utf8.RuneStart(tail[0]) && !utf8.FullRune(tail) && utf8.Valid(head) {
			return head
		}
	}
	return b
}

// Decode converts raw file bytes to text. Valid UTF-8 is used as is;
// anything else is decoded as Windows-1252.
func Decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	return string(out)
}

// FilenameTokens splits a file name on underscores, hyphens and whitespace.
func FilenameTokens(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
}

// Label maps a confidence score to its label.
func Label(confidence int) string {
	switch {
	case confidence >= 80:
		return LabelHigh
	case confidence >= 50:
		return LabelMedium
	default:
		return LabelLow
	}
}

// Reason returns the human-readable justification for a priority.
func Reason(p rules.Priority) string {
	if r, ok := reasons[p]; ok {
		return r
	}
	return reasons[rules.PriorityLow]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

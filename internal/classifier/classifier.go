// Package classifier implements the prompt classifier (C2): a pure,
// deterministic function from a chat request's shape to a capability
// tag set. No network or shared state; safe to call from any goroutine.
package classifier

import (
	"regexp"
	"strings"

	"github.com/clawrouter/clawrouter/internal/catalog"
)

// longContextThresholdBytes is the ~32KB threshold from spec.md §4.1.
const longContextThresholdBytes = 32 * 1024

var (
	codeFencePattern = regexp.MustCompile("```")
	codeExtPattern   = regexp.MustCompile(`\.(go|py|js|ts|tsx|jsx|java|rb|rs|cpp|c|h|sh|sql|yaml|yml|json)\b`)
	codeIdentPattern = regexp.MustCompile(`\b(func|def|class|import|package|const|let|var)\b`)

	reasoningPattern = regexp.MustCompile(`(?i)\b(prove|proof|step by step|derive|reasoning|explain why)\b`)
	mathExprPattern  = regexp.MustCompile(`[0-9]\s*[\+\-\*/=]\s*[0-9]|sqrt\(|\\frac|∑|∫`)
)

// Message mirrors the minimal shape the classifier needs from a chat
// message; callers adapt their wire type into this.
type Message struct {
	Role       string
	Content    string
	NonText    bool // true if the message carries an image/audio part
}

// Input is everything the classifier looks at for one request.
type Input struct {
	Messages  []Message
	MaxTokens int
}

// Classify returns the capability tag set for a request. Evaluation
// order follows spec.md §4.1: vision short-circuits, long-context is
// additive, then code, then reasoning cues, else general.
func Classify(in Input) map[catalog.Capability]bool {
	tags := make(map[catalog.Capability]bool)

	var totalLen int
	var hasNonText bool
	var content strings.Builder

	for _, m := range in.Messages {
		totalLen += len(m.Content)
		if m.NonText {
			hasNonText = true
		}
		if m.Role == "user" || m.Role == "system" {
			content.WriteString(m.Content)
			content.WriteString("\n")
		}
	}

	text := content.String()

	switch {
	case hasNonText:
		tags[catalog.CapVision] = true
	case codeFencePattern.MatchString(text), codeExtPattern.MatchString(text), codeIdentPattern.MatchString(text):
		tags[catalog.CapCode] = true
	case reasoningPattern.MatchString(text), mathExprPattern.MatchString(text):
		tags[catalog.CapReasoning] = true
	}

	if totalLen > longContextThresholdBytes {
		tags[catalog.CapLongContext] = true
	}

	if len(tags) == 0 {
		tags[catalog.CapGeneral] = true
	}

	return tags
}

// HasCapability reports whether a tag set contains cap.
func HasCapability(tags map[catalog.Capability]bool, cap catalog.Capability) bool {
	return tags[cap]
}

package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clawrouter/clawrouter/internal/catalog"
)

func TestClassify_DefaultsToGeneral(t *testing.T) {
	tags := Classify(Input{Messages: []Message{{Role: "user", Content: "hello there"}}})
	assert.True(t, tags[catalog.CapGeneral])
	assert.False(t, tags[catalog.CapCode])
}

func TestClassify_DetectsCodeFence(t *testing.T) {
	tags := Classify(Input{Messages: []Message{{Role: "user", Content: "```go\nfunc main() {}\n```"}}})
	assert.True(t, tags[catalog.CapCode])
}

func TestClassify_DetectsCodeIdentifiers(t *testing.T) {
	tags := Classify(Input{Messages: []Message{{Role: "user", Content: "fix this: func Foo() error { return nil }"}}})
	assert.True(t, tags[catalog.CapCode])
}

func TestClassify_DetectsReasoningCues(t *testing.T) {
	tags := Classify(Input{Messages: []Message{{Role: "user", Content: "prove step by step that this converges"}}})
	assert.True(t, tags[catalog.CapReasoning])
}

func TestClassify_VisionShortCircuits(t *testing.T) {
	tags := Classify(Input{Messages: []Message{{Role: "user", Content: "```go\ncode\n```", NonText: true}}})
	assert.True(t, tags[catalog.CapVision])
	assert.False(t, tags[catalog.CapCode], "vision must short-circuit code/reasoning detection, not combine with it")
	assert.False(t, tags[catalog.CapReasoning])
}

func TestClassify_LongContextIsAdditive(t *testing.T) {
	longText := strings.Repeat("a", longContextThresholdBytes+1)
	tags := Classify(Input{Messages: []Message{{Role: "user", Content: longText}}})
	assert.True(t, tags[catalog.CapLongContext])
}

func TestClassify_SystemMessagesContributeToContent(t *testing.T) {
	tags := Classify(Input{Messages: []Message{
		{Role: "system", Content: "```python\nprint(1)\n```"},
		{Role: "user", Content: "ok"},
	}})
	assert.True(t, tags[catalog.CapCode])
}

func TestHasCapability(t *testing.T) {
	tags := map[catalog.Capability]bool{catalog.CapCode: true}
	assert.True(t, HasCapability(tags, catalog.CapCode))
	assert.False(t, HasCapability(tags, catalog.CapVision))
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripThinking(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no tags", "plain answer", "plain answer"},
		{"think block", "<think>step one\nstep two</think>the answer", "the answer"},
		{"thinking block", "<thinking>hmm</thinking>hello", "hello"},
		{"block in middle", "before <think>x</think>after", "before after"},
		{"multiple blocks", "<think>a</think>one<think>b</think>two", "onetwo"},
		{"unterminated block dropped", "visible<think>never closed", "visible"},
		{"angle bracket not a tag", "a < b and <this> stays", "a < b and <this> stays"},
		{"lookalike tag", "<thinker>stays</thinker>", "<thinker>stays</thinker>"},
		{"empty", "", ""},
		{"only block", "<think>everything</think>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripThinking(tt.in))
		})
	}
}

func TestThinkFilterSplitAcrossChunks(t *testing.T) {
	f := newThinkFilter()

	var out string
	// Tag split mid-token across three chunks.
	out += f.feed("hello <thi")
	out += f.feed("nk>hidden reasoning</th")
	out += f.feed("ink> world")
	out += f.flush()

	assert.Equal(t, "hello  world", out)
}

func TestThinkFilterPartialTagTurnsOutPlain(t *testing.T) {
	f := newThinkFilter()

	var out string
	out += f.feed("a <thin")
	out += f.feed("g of beauty")
	out += f.flush()

	assert.Equal(t, "a <thing of beauty", out)
}

func TestThinkFilterChunkedPlainText(t *testing.T) {
	f := newThinkFilter()

	var out string
	for _, chunk := range []string{"one ", "two ", "three"} {
		out += f.feed(chunk)
	}
	out += f.flush()

	assert.Equal(t, "one two three", out)
}

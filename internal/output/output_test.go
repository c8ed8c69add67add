package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_StatusLines(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing each kind of status
	w.Status("🔍", "Searching")
	w.Status("", "indented")
	w.Successf("Indexed %d chunks", 12)
	w.Warningf("%d files skipped", 2)
	w.Error("Failed to connect")

	// Then: icons and messages appear one per line
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"🔍 Searching",
		"   indented",
		"✅ Indexed 12 chunks",
		"⚠️  2 files skipped",
		"❌ Failed to connect",
	}, lines)
}

func TestWriter_CodeIndentsEveryLine(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("docrag index\ndocrag ask \"hi\"")

	assert.Equal(t, "\n  docrag index\n  docrag ask \"hi\"\n\n", buf.String())
}

func TestWriter_KeyValue(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).KeyValue("Chunks", 42)

	assert.Equal(t, "  Chunks:      42\n", buf.String())
}

func TestWriter_Result(t *testing.T) {
	// Given: a hit with multi-line text
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing it
	w.Result(1, "sky.txt#0", 0.91234, "The sky\n\nis   blue.")

	// Then: the snippet is flattened under the ranked header
	assert.Equal(t, "1. sky.txt#0 (score 0.912)\n   The sky is blue.\n", buf.String())
}

func TestWriter_Answer(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Answer("Blue.", []string{"sky.txt", "notes.md"})

	assert.Equal(t, "Blue.\n\nSources:\n  - sky.txt\n  - notes.md\n", buf.String())

	buf.Reset()
	New(buf).Answer("I don't know.", nil)
	assert.Equal(t, "I don't know.\n", buf.String())
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"short", "hello world", 20, "hello world"},
		{"whitespace collapsed", " a \n\t b ", 20, "a b"},
		{"cut with ellipsis", "abcdefghij", 5, "abcd…"},
		{"trailing space trimmed before ellipsis", "abc defgh", 5, "abc…"},
		{"unicode", "ünïcødé text", 4, "ünï…"},
		{"no limit", "abc", 0, "abc"},
		{"limit one", "abc", 1, "…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Snippet(tt.text, tt.n))
		})
	}
}

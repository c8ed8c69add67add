package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"strconv"
)

// Defaults match the document-oriented settings used by the CLI.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// Chunk is a retrievable unit of text cut from one Document.
// Lengths and offsets are counted in runes.
type Chunk struct {
	ID       string // SHA256(source_id + document + position)[:16]
	SourceID string
	// Document is the index of the originating Document in the Split input.
	Document int
	// Position is the ordinal of this chunk within its Document.
	Position int
	Text     string
	// OverlapWithPrevious is how many leading runes repeat the end of the previous chunk.
	OverlapWithPrevious int
	// Offset is the rune offset of Text within the Document content.
	Offset   int
	Metadata map[string]string
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	n := 0
	for range c.Text {
		n++
	}
	return n
}

// Clone returns a copy of c that shares no mutable state with it.
func (c Chunk) Clone() Chunk {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}

// Novel returns the part of Text not shared with the previous chunk.
func (c Chunk) Novel() string {
	if c.OverlapWithPrevious == 0 {
		return c.Text
	}
	runes := []rune(c.Text)
	return string(runes[c.OverlapWithPrevious:])
}

func chunkID(sourceID string, document, position int) string {
	h := sha256.Sum256([]byte(sourceID + "\x00" + strconv.Itoa(document) + "\x00" + strconv.Itoa(position)))
	return hex.EncodeToString(h[:])[:16]
}

package node

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpRecordString(t *testing.T) {
	assert.Equal(t, "Node 30 owns keys: 5 17", DumpRecord{ID: 30, Keys: []int{5, 17}}.String())
	assert.Equal(t, "Node 63 owns keys:", DumpRecord{ID: 63}.String())
}

func TestWriterEmitter(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewWriterEmitter(&buf)
	emitter.Emit(DumpRecord{ID: 1, Keys: []int{0, 1}})
	emitter.Emit(DumpRecord{ID: 63})
	assert.Equal(t, "Node 1 owns keys: 0 1\nNode 63 owns keys:\n", buf.String())
}

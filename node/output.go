package node

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// DumpRecord is what a node reports about itself on Dump.
type DumpRecord struct {
	ID        int
	Successor int
	Keys      []int
}

func (record DumpRecord) String() string {
	var sb strings.Builder
	sb.WriteString("Node ")
	sb.WriteString(strconv.Itoa(record.ID))
	sb.WriteString(" owns keys:")
	for _, k := range record.Keys {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(k))
	}
	return sb.String()
}

type Emitter interface {
	Emit(record DumpRecord)
}

type EmitterFunc func(record DumpRecord)

func (f EmitterFunc) Emit(record DumpRecord) {
	f(record)
}

// WriterEmitter prints one line per record. Nodes emit concurrently, so
// writes are serialized.
type WriterEmitter struct {
	mx sync.Mutex
	w  io.Writer
}

func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{w: w}
}

func (emitter *WriterEmitter) Emit(record DumpRecord) {
	emitter.mx.Lock()
	defer emitter.mx.Unlock()
	fmt.Fprintln(emitter.w, record.String())
}

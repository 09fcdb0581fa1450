package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JWilliamson45/chord/client"
	"github.com/JWilliamson45/chord/node"
	"github.com/JWilliamson45/chord/richclose"
	"github.com/JWilliamson45/chord/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCommander struct {
	nodes int
	full  bool
	calls []string
}

func (f *fakeCommander) AddNode(ctx context.Context) (int, error) {
	if f.full {
		return -1, client.ErrRingFull
	}
	f.nodes++
	return f.nodes, nil
}

func (f *fakeCommander) AddNodeWithID(ctx context.Context, id int) error {
	f.calls = append(f.calls, "addnode")
	return nil
}

func (f *fakeCommander) AddKey(ctx context.Context, key int) error {
	f.calls = append(f.calls, "addkey")
	if key == 9 {
		return client.ErrKeyExists
	}
	return nil
}

func (f *fakeCommander) DeleteKey(ctx context.Context, key int) error {
	f.calls = append(f.calls, "delkey")
	return client.ErrNoSuchKey
}

func (f *fakeCommander) Dump(ctx context.Context) error {
	f.calls = append(f.calls, "dump")
	return nil
}

func (f *fakeCommander) ToggleDebug(ctx context.Context) (bool, error) {
	return true, nil
}

func runMenu(t *testing.T, cmd Commander, input string) string {
	var out bytes.Buffer
	require.NoError(t, NewMenu(strings.NewReader(input), &out, cmd).Run(context.Background()))
	return strings.TrimPrefix(out.String(), menuText)
}

func TestMenuMessages(t *testing.T) {
	cmd := &fakeCommander{}
	out := runMenu(t, cmd, "addkey\n9\naddkey 70\ndelkey 4\nfoo\n\ndebug\nexit\naddkey 1\n")

	assert.Equal(t, promptAddKey+
		"Unable to add key: <9> is already in the DHT\n"+
		inputError+
		"Unable to delete key: <4> is not in the DHT\n"+
		unrecognizedCmd+
		"Debug messages enabled.\n", out)
	assert.Equal(t, []string{"addkey", "delkey"}, cmd.calls)
}

func TestMenuAddNode(t *testing.T) {
	cmd := &fakeCommander{}
	out := runMenu(t, cmd, "addnode\naddnode 12\naddnode x\n")
	assert.Equal(t, "New node added!\nNew node added!\n"+
		"Invalid input. You must enter a node id between 0-62, inclusive.\n", out)

	cmd.full = true
	out = runMenu(t, cmd, "addnode\n")
	assert.Equal(t, "Unable to add node: the DHT has reached the maximum number of nodes\n", out)
}

func TestMenuAgainstRing(t *testing.T) {
	var out bytes.Buffer
	r, err := ring.New(ring.Option{}.SetLogger(zap.NewNop()).SetOutput(node.NewWriterEmitter(&out)))
	require.NoError(t, err)
	defer richclose.CloseAndWait(r, time.Second)
	clt := client.New(r, client.Option{}.SetLogger(zap.NewNop()).SetSettleTimeout(2*time.Second))

	input := "addkey 5\naddnode 30\ndump\ndelkey 5\ndump\nexit\n"
	require.NoError(t, NewMenu(strings.NewReader(input), &out, clt).Run(context.Background()))

	assert.Equal(t, "New key <5> added!\n"+
		"New node added!\n"+
		"Node 30 owns keys: 5\n"+
		"Node 63 owns keys:\n"+
		"Key <5> deleted!\n"+
		"Node 30 owns keys:\n"+
		"Node 63 owns keys:\n", strings.TrimPrefix(out.String(), menuText))
}

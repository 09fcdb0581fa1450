package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JWilliamson45/chord/mailbox"
	"github.com/JWilliamson45/chord/message"
	"github.com/JWilliamson45/chord/telemetry"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeHandle struct {
	stopped chan struct{}
}

func (h fakeHandle) Stop()                    {}
func (h fakeHandle) Stopped() <-chan struct{} { return h.stopped }

type fakeSpawner struct {
	mx      sync.Mutex
	configs []Config
	err     error
}

func (spawner *fakeSpawner) Spawn(cfg Config) (Handle, error) {
	spawner.mx.Lock()
	defer spawner.mx.Unlock()
	if spawner.err != nil {
		return nil, spawner.err
	}
	spawner.configs = append(spawner.configs, cfg)
	return fakeHandle{stopped: make(chan struct{})}, nil
}

type collector struct {
	mx      sync.Mutex
	records []DumpRecord
}

func (c *collector) Emit(record DumpRecord) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.records = append(c.records, record)
}

func (c *collector) lines() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	var ret []string
	for _, r := range c.records {
		ret = append(ret, r.String())
	}
	return ret
}

type flag struct {
	on  bool
	set int
}

func (f *flag) SetDebug(on bool) {
	f.on = on
	f.set++
}

type fixture struct {
	fabric  *mailbox.Fabric
	spawner *fakeSpawner
	output  *collector
	debug   *flag
}

func newFixture() *fixture {
	return &fixture{
		fabric:  mailbox.NewFabric(),
		spawner: &fakeSpawner{},
		output:  &collector{},
		debug:   &flag{},
	}
}

func (f *fixture) node(id, successor int) *Node {
	return New(Config{ID: id, Successor: successor}, Option{
		Fabric:  f.fabric,
		Spawner: SpawnFunc(f.spawner.Spawn),
		Output:  EmitterFunc(f.output.Emit),
		Debug:   f.debug,
	})
}

func (f *fixture) drain(t *testing.T, id int) []message.Message {
	box, ok := f.fabric.Mailbox(id)
	require.True(t, ok)
	var ret []message.Message
	for {
		msg, ok := box.TryPop()
		if !ok {
			return ret
		}
		f.fabric.Done()
		ret = append(ret, msg)
	}
}

func TestMainAloneOwnsEverything(t *testing.T) {
	f := newFixture()
	main := f.node(message.Main, message.Unset)

	main.Handle(message.New(message.AddKey, 5, message.External))
	main.Handle(message.New(message.AddKey, 62, message.External))
	assert.Equal(t, []int{5, 62}, main.keys.Keys())

	main.Handle(message.New(message.DeleteKey, 5, message.External))
	assert.Equal(t, []int{62}, main.keys.Keys())

	main.Handle(message.New(message.Dump, 0, message.External))
	assert.Equal(t, []string{"Node 63 owns keys: 62"}, f.output.lines())
	assert.Equal(t, 0, f.fabric.Pending())
}

func TestFirstInsertion(t *testing.T) {
	f := newFixture()
	main := f.node(message.Main, message.Unset)
	main.keys.Add(5)
	main.keys.Add(40)

	main.Handle(message.New(message.AddNode, 30, message.External))

	require.Equal(t, []Config{{ID: 30, Successor: message.Main}}, f.spawner.configs)
	assert.Equal(t, 30, main.successor)
	assert.Equal(t, []message.Message{
		message.New(message.Announce, 30, message.Main),
	}, f.drain(t, message.Main))

	// the ramp up announce comes back to MAIN and hands key 5 to node 30
	main.Handle(message.New(message.Announce, 30, message.Main))
	assert.Equal(t, []int{40}, main.keys.Keys())
	assert.Equal(t, []message.Message{
		message.New(message.RedistKey, 5, message.Main),
	}, f.drain(t, 30))
}

func TestAddNodeInsertOrForward(t *testing.T) {
	f := newFixture()
	main := f.node(message.Main, 30)
	n30 := f.node(30, message.Main)

	// smaller than MAIN's successor: insert between MAIN and 30
	main.Handle(message.New(message.AddNode, 10, message.External))
	assert.Equal(t, 10, main.successor)
	assert.Equal(t, []Config{{ID: 10, Successor: 30}}, f.spawner.configs)
	assert.Equal(t, []message.Message{message.New(message.Announce, 10, message.Main)}, f.drain(t, 30))

	// larger: forwarded unchanged
	msg := message.New(message.AddNode, 40, message.External)
	main.Handle(msg)
	assert.Equal(t, []message.Message{msg}, f.drain(t, 10))

	n30.Handle(msg)
	assert.Equal(t, 40, n30.successor)
	assert.Equal(t, Config{ID: 40, Successor: message.Main}, f.spawner.configs[1])
	assert.Equal(t, []message.Message{message.New(message.Announce, 40, 30)}, f.drain(t, message.Main))
}

func TestSpawnFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture()
	f.spawner.err = errors.New("no more goroutines")
	main := f.node(message.Main, message.Unset)
	main.keys.Add(3)

	before := testutil.ToFloat64(telemetry.SpawnFailures)
	main.Handle(message.New(message.AddNode, 30, message.External))

	assert.Equal(t, message.Unset, main.successor)
	assert.Empty(t, f.drain(t, message.Main))
	assert.Equal(t, []int{3}, main.keys.Keys())
	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.SpawnFailures))
}

func TestAnnounceSendsCoveredKeysAscending(t *testing.T) {
	f := newFixture()
	n := f.node(50, message.Main)
	for _, k := range []int{45, 3, 20, 26, 50} {
		n.keys.Add(k)
	}

	n.Handle(message.New(message.Announce, 25, 10))

	assert.Equal(t, []int{26, 45, 50}, n.keys.Keys())
	assert.Equal(t, []message.Message{
		message.New(message.RedistKey, 3, 50),
		message.New(message.RedistKey, 20, 50),
	}, f.drain(t, message.Main))
}

func TestRedistKey(t *testing.T) {
	cases := []struct {
		name    string
		id      int
		key     int
		sender  int
		claimed bool
	}{
		{"id above sender", 40, 5, 30, false},
		{"key above id", 10, 20, 63, false},
		{"wrapped and covering", 10, 5, 63, true},
		{"equal key", 10, 10, 40, true},
		{"main claims", message.Main, 63, message.Main, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture()
			n := f.node(c.id, 44)
			msg := message.New(message.RedistKey, c.key, c.sender)
			n.Handle(msg)
			assert.Equal(t, c.claimed, n.keys.Contains(c.key))
			if c.claimed {
				assert.Empty(t, f.drain(t, 44))
			} else {
				assert.Equal(t, []message.Message{msg}, f.drain(t, 44))
			}
		})
	}
}

func TestKeyCommandsAtMain(t *testing.T) {
	f := newFixture()
	main := f.node(message.Main, 20)

	main.Handle(message.New(message.AddKey, 7, message.External))
	assert.Equal(t, []message.Message{message.New(message.AddKey, 7, message.Main)}, f.drain(t, 20))
	assert.True(t, main.keys.Empty())

	// back from the lap: MAIN is the owner of last resort
	main.Handle(message.New(message.AddKey, 61, message.Main))
	assert.True(t, main.keys.Contains(61))

	main.Handle(message.New(message.DeleteKey, 61, message.External))
	assert.Equal(t, []message.Message{message.New(message.DeleteKey, 61, message.Main)}, f.drain(t, 20))
	main.Handle(message.New(message.DeleteKey, 61, message.Main))
	assert.False(t, main.keys.Contains(61))

	// other senders are dropped
	main.Handle(message.New(message.AddKey, 8, 20))
	assert.False(t, main.keys.Contains(8))
	assert.Empty(t, f.drain(t, 20))
}

func TestKeyCommandsAtNode(t *testing.T) {
	f := newFixture()
	n := f.node(20, 40)

	n.Handle(message.New(message.AddKey, 20, message.Main))
	n.Handle(message.New(message.AddKey, 3, message.Main))
	assert.Equal(t, []int{3, 20}, n.keys.Keys())

	far := message.New(message.AddKey, 21, message.Main)
	n.Handle(far)
	assert.Equal(t, []message.Message{far}, f.drain(t, 40))

	n.Handle(message.New(message.DeleteKey, 3, message.Main))
	assert.Equal(t, []int{20}, n.keys.Keys())

	missing := message.New(message.DeleteKey, 4, message.Main)
	n.Handle(missing)
	assert.Equal(t, []message.Message{missing}, f.drain(t, 40))
}

func TestDumpLap(t *testing.T) {
	f := newFixture()
	main := f.node(message.Main, 30)
	n30 := f.node(30, message.Main)
	n30.keys.Add(5)

	main.Handle(message.New(message.Dump, 0, message.External))
	assert.Empty(t, f.output.lines())
	lap := f.drain(t, 30)
	require.Equal(t, []message.Message{message.New(message.Dump, 0, message.Main)}, lap)

	n30.Handle(lap[0])
	back := f.drain(t, message.Main)
	require.Equal(t, lap, back)
	main.Handle(back[0])

	assert.Equal(t, []string{
		"Node 30 owns keys: 5",
		"Node 63 owns keys:",
	}, f.output.lines())
}

func TestToggleDebug(t *testing.T) {
	f := newFixture()
	main := f.node(message.Main, message.Unset)

	main.Handle(message.New(message.ToggleDebug, 1, message.External))
	assert.True(t, f.debug.on)
	main.Handle(message.New(message.ToggleDebug, 0, message.External))
	assert.False(t, f.debug.on)
	assert.Equal(t, 2, f.debug.set)
}

func TestSendFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture()
	n := New(Config{ID: 5, Successor: message.Unset}, Option{Fabric: f.fabric}.SetLogger(zap.New(core)))

	n.Handle(message.New(message.AddKey, 9, message.Main))

	require.Equal(t, 1, logs.FilterMessage("send message").Len())
	assert.Equal(t, 0, f.fabric.Pending())
}

func TestRunServesBothMailboxes(t *testing.T) {
	f := newFixture()
	main := f.node(message.Main, message.Unset)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		main.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.fabric.Submit(message.New(message.AddKey, 11, message.External)))
	require.NoError(t, f.fabric.Send(message.Main, message.New(message.AddKey, 12, message.Main)))

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, f.fabric.WaitIdle(waitCtx))

	require.NoError(t, f.fabric.Submit(message.New(message.Dump, 0, message.External)))
	require.NoError(t, f.fabric.WaitIdle(waitCtx))

	assert.Equal(t, []string{"Node 63 owns keys: 11 12"}, f.output.lines())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expect run to return after cancel")
	}
}

func TestRunNodeServesOwnMailbox(t *testing.T) {
	f := newFixture()
	n := f.node(20, message.Main)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.fabric.Send(20, message.New(message.AddKey, 5, message.Main)))
	require.NoError(t, f.fabric.Send(20, message.New(message.AddKey, 30, message.Main)))
	require.NoError(t, f.fabric.Send(20, message.New(message.Dump, 0, message.Main)))

	mainBox, _ := f.fabric.Mailbox(message.Main)
	require.Eventually(t, func() bool {
		return mainBox.Len() == 2
	}, time.Second, 5*time.Millisecond)

	forwarded := f.drain(t, message.Main)
	require.Len(t, forwarded, 2)
	assert.Equal(t, message.AddKey, forwarded[0].Command)
	assert.Equal(t, 30, forwarded[0].Payload)
	assert.Equal(t, message.Dump, forwarded[1].Command)
	assert.Equal(t, []string{"Node 20 owns keys: 5"}, f.output.lines())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expect run to return after cancel")
	}
}

package headless

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

type CommandKind int

const (
	CommandBeginRendering CommandKind = iota
	CommandEndRendering
	CommandPipelineBarrier
)

func (k CommandKind) String() string {
	switch k {
	case CommandBeginRendering:
		return "BeginRendering"
	case CommandEndRendering:
		return "EndRendering"
	case CommandPipelineBarrier:
		return "PipelineBarrier"
	default:
		return "Unknown"
	}
}

// Command is one recorded command.
type Command struct {
	Kind      CommandKind
	Rendering scheduler.RenderingInfo
	SrcStage  scheduler.PipelineStage
	DstStage  scheduler.PipelineStage
	Deps      scheduler.DependencyFlags
	Barriers  []scheduler.ImageBarrier
}

type CommandBufferState int

const (
	CommandBufferStateReady CommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
)

var (
	ErrNotRecording = errors.New("command buffer is not recording")
	ErrInFlight     = errors.New("command buffer reused while in flight")
)

// CommandBuffer records commands into a slice so tests can inspect them.
type CommandBuffer struct {
	ID int

	mu       sync.Mutex
	state    CommandBufferState
	commands []Command
	begins   int
}

func (c *CommandBuffer) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CommandBufferStateSubmitted {
		return ErrInFlight
	}
	c.commands = c.commands[:0]
	c.state = CommandBufferStateRecording
	c.begins++
	return nil
}

func (c *CommandBuffer) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CommandBufferStateRecording {
		return ErrNotRecording
	}
	c.state = CommandBufferStateRecordingEnded
	return nil
}

func (c *CommandBuffer) BeginRendering(info *scheduler.RenderingInfo) {
	rendering := *info
	rendering.ColorAttachments = append([]scheduler.RenderingAttachment(nil), info.ColorAttachments...)
	c.record(Command{Kind: CommandBeginRendering, Rendering: rendering})
}

func (c *CommandBuffer) EndRendering() {
	c.record(Command{Kind: CommandEndRendering})
}

func (c *CommandBuffer) PipelineBarrier(src, dst scheduler.PipelineStage, deps scheduler.DependencyFlags, barriers []scheduler.ImageBarrier) {
	c.record(Command{
		Kind:     CommandPipelineBarrier,
		SrcStage: src,
		DstStage: dst,
		Deps:     deps,
		Barriers: append([]scheduler.ImageBarrier(nil), barriers...),
	})
}

func (c *CommandBuffer) record(cmd Command) {
	c.mu.Lock()
	c.commands = append(c.commands, cmd)
	c.mu.Unlock()
}

// Commands returns a copy of what has been recorded since the last Begin.
func (c *CommandBuffer) Commands() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Command(nil), c.commands...)
}

func (c *CommandBuffer) State() CommandBufferState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begins counts how many times the buffer has been opened for recording.
func (c *CommandBuffer) Begins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begins
}

func (c *CommandBuffer) setState(state CommandBufferState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Allocator hands out CommandBuffers and remembers all of them.
type Allocator struct {
	mu      sync.Mutex
	buffers []*CommandBuffer
	calls   int
	fail    error
}

func (a *Allocator) Allocate(count int) ([]scheduler.CommandBuffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return nil, a.fail
	}
	a.calls++
	out := make([]scheduler.CommandBuffer, count)
	for i := range out {
		cb := &CommandBuffer{ID: len(a.buffers)}
		a.buffers = append(a.buffers, cb)
		out[i] = cb
	}
	return out, nil
}

// Buffers returns every buffer allocated so far.
func (a *Allocator) Buffers() []*CommandBuffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*CommandBuffer(nil), a.buffers...)
}

// Calls counts Allocate calls that succeeded.
func (a *Allocator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// FailWith makes later Allocate calls return err.
func (a *Allocator) FailWith(err error) {
	a.mu.Lock()
	a.fail = err
	a.mu.Unlock()
}

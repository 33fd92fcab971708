// Package headless is a software implementation of the scheduler's device
// contracts. Submissions complete on a worker goroutine after a configurable
// latency, which makes it usable both for tests and for running the
// scheduler on machines without a GPU.
package headless

import (
	"time"

	"github.com/spaghettifunk/anima-scheduler/engine/renderer/scheduler"
)

type options struct {
	latency     time.Duration
	synchronous bool
	held        bool
	checkpoints []scheduler.Checkpoint
}

type Option func(*options)

// WithLatency delays each submission's completion.
func WithLatency(d time.Duration) Option {
	return func(o *options) {
		o.latency = d
	}
}

// WithSynchronous completes each submission before Submit returns.
func WithSynchronous() Option {
	return func(o *options) {
		o.synchronous = true
	}
}

// WithHeld keeps submissions pending until Queue.Release lets them run.
func WithHeld() Option {
	return func(o *options) {
		o.held = true
	}
}

// WithCheckpoints enables checkpoint reporting with the given markers.
func WithCheckpoints(cps ...scheduler.Checkpoint) Option {
	return func(o *options) {
		o.checkpoints = append([]scheduler.Checkpoint{}, cps...)
	}
}

type Device struct {
	queue     *Queue
	timeline  *Timeline
	allocator *Allocator
}

func New(opts ...Option) *Device {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	d := &Device{
		queue:     newQueue(o),
		timeline:  NewTimeline(),
		allocator: &Allocator{},
	}
	d.queue.track(d.timeline)
	return d
}

func (d *Device) Queue() scheduler.Queue {
	return d.queue
}

func (d *Device) Timeline() scheduler.Timeline {
	return d.timeline
}

func (d *Device) Allocator() scheduler.Allocator {
	return d.allocator
}

// HeadlessQueue exposes the concrete queue for inspection.
func (d *Device) HeadlessQueue() *Queue {
	return d.queue
}

func (d *Device) HeadlessTimeline() *Timeline {
	return d.timeline
}

func (d *Device) HeadlessAllocator() *Allocator {
	return d.allocator
}

// NewTimeline creates an extra timeline whose loss follows the device.
func (d *Device) NewTimeline() *Timeline {
	t := NewTimeline()
	d.queue.track(t)
	return t
}

// Close stops the queue worker. Pending submissions are abandoned.
func (d *Device) Close() {
	d.queue.close()
}

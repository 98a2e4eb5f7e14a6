// Package workerpool implements the single-threaded FIFO task-queue
// workers the DAG engine uses to enforce a single-writer-per-structure
// discipline (spec.md §5) without fine-grained locking: each Pool runs
// exactly one goroutine draining a buffered channel of tasks, so any code
// that only ever submits through the same Pool is automatically
// serialized against itself.
package workerpool

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mstonedag/node/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.WORK)

// Task is one unit of work submitted to a Pool.
type Task func()

// Pool is a single-threaded, FIFO task queue (spec.md §5). Submit returns
// as soon as the task is queued, blocking only while the queue already
// holds buffer tasks; the task runs later on the pool's one worker goroutine.
type Pool struct {
	name  string
	tasks chan namedTask
	quit  chan struct{}
	wg    sync.WaitGroup
}

type namedTask struct {
	id   uuid.UUID
	task Task
}

// New starts a Pool named name (used only for logging) with queue depth
// buffer.
func New(name string, buffer int) *Pool {
	p := &Pool{
		name:  name,
		tasks: make(chan namedTask, buffer),
		quit:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case nt := <-p.tasks:
			log.Tracef("%s: running task %s", p.name, nt.id)
			nt.task()
		case <-p.quit:
			// drain whatever is already queued before exiting, so Stop
			// after Wait never silently drops submitted work.
			for {
				select {
				case nt := <-p.tasks:
					nt.task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues task, blocking only while the queue is full. Each submission gets a
// correlation id for tracing, grounded on the teacher's use of
// google/uuid for request correlation elsewhere in the stack.
func (p *Pool) Submit(task Task) uuid.UUID {
	id := uuid.New()
	p.tasks <- namedTask{id: id, task: task}
	return id
}

// Wait blocks until the queue is empty and the running task (if any) has
// returned. It does not stop the pool.
func (p *Pool) Wait() {
	done := make(chan struct{})
	p.Submit(func() { close(done) })
	<-done
}

// Stop signals the worker to drain remaining tasks and exit, then blocks
// until it has done so.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

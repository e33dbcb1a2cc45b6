package main

import (
	"sync"

	"github.com/pkg/errors"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// A minimal in-process collective-communication layer: the four primitives
// the distributed strategy needs (scatter, broadcast, gather, barrier)
// plus a group-wide abort. Ranks run as goroutines but behave like
// isolated processes: every payload is copied on transfer, so no rank can
// reach another rank's memory except through a collective call.
//
// The transport is deliberately dumb: a matrix of buffered channels, one
// per (sender, receiver) pair. Each collective uses a channel at most once
// before the matching receive, so capacity 1 is enough, and rank ordering
// falls out of iterating the matrix in rank order.
//
// Failure model: there is no partial-failure tolerance. Abort poisons the
// whole group; every rank blocked in (or later entering) a collective
// call gets the abort error. This mirrors an MPI_Abort taking down the
// communicator rather than a single process.
//
// ===========================================================================

// ErrGroupAborted indicates the whole group was terminated abnormally.
// Every collective call in every rank returns it (wrapped with the abort
// cause) once any rank aborts.
var ErrGroupAborted = errors.New("collective: group aborted")

// Group is one communicator: a fixed set of ranks [0, size) that can only
// interact through collective calls.
type Group struct {
	size int

	// mail[from][to] carries one in-flight payload per direction.
	mail [][]chan []uint64

	abortOnce sync.Once
	abortErr  error
	aborted   chan struct{}
}

// NewGroup creates a communicator with the given number of ranks.
func NewGroup(size int) *Group {
	if size < 1 {
		panic("collective: group size must be at least 1")
	}
	mail := make([][]chan []uint64, size)
	for from := range mail {
		mail[from] = make([]chan []uint64, size)
		for to := range mail[from] {
			mail[from][to] = make(chan []uint64, 1)
		}
	}
	return &Group{
		size:    size,
		mail:    mail,
		aborted: make(chan struct{}),
	}
}

// Abort terminates the whole group abnormally with the given cause. The
// first cause wins; subsequent aborts are no-ops. Every rank currently
// blocked in a collective call is released with the abort error.
func (g *Group) Abort(cause error) {
	g.abortOnce.Do(func() {
		g.abortErr = cause
		close(g.aborted)
	})
}

// AbortErr returns the abort cause, or nil if the group is healthy.
func (g *Group) AbortErr() error {
	select {
	case <-g.aborted:
		return errors.Wrap(ErrGroupAborted, g.abortErr.Error())
	default:
		return nil
	}
}

// Comm is one rank's handle on the group.
type Comm struct {
	g    *Group
	rank int
}

// Comm returns the handle for the given rank.
func (g *Group) Comm(rank int) *Comm {
	if rank < 0 || rank >= g.size {
		panic("collective: rank out of range")
	}
	return &Comm{g: g, rank: rank}
}

// Rank returns this handle's rank.
func (c *Comm) Rank() int { return c.rank }

// Abort terminates the whole group with the given cause. Equivalent to
// Group.Abort; exposed on Comm so a rank can take the group down without
// holding the Group itself.
func (c *Comm) Abort(cause error) { c.g.Abort(cause) }

// Size returns the number of ranks in the group.
func (c *Comm) Size() int { return c.g.size }

// send delivers a copy of payload to rank `to`, or fails if the group
// aborts first. Copying is what keeps ranks isolated: the receiver can
// never alias the sender's buffer.
func (c *Comm) send(to int, payload []uint64) error {
	msg := make([]uint64, len(payload))
	copy(msg, payload)
	select {
	case c.g.mail[c.rank][to] <- msg:
		return nil
	case <-c.g.aborted:
		return c.g.AbortErr()
	}
}

// recv blocks for a payload from rank `from`, or fails if the group
// aborts first.
func (c *Comm) recv(from int) ([]uint64, error) {
	select {
	case msg := <-c.g.mail[from][c.rank]:
		return msg, nil
	case <-c.g.aborted:
		return nil, c.g.AbortErr()
	}
}

// Scatter distributes root's buf in equal contiguous blocks of count
// elements: block r goes to rank r. On the root, buf must hold
// size*count elements and the root's own block is returned directly
// (copied); on every other rank buf is ignored.
func (c *Comm) Scatter(root int, buf []uint64, count int) ([]uint64, error) {
	if err := c.g.AbortErr(); err != nil {
		return nil, err
	}
	if c.rank == root {
		if len(buf) < c.g.size*count {
			return nil, errors.Errorf("collective: scatter needs %d elements at root, have %d",
				c.g.size*count, len(buf))
		}
		for r := 0; r < c.g.size; r++ {
			if r == root {
				continue
			}
			if err := c.send(r, buf[r*count:(r+1)*count]); err != nil {
				return nil, err
			}
		}
		own := make([]uint64, count)
		copy(own, buf[root*count:(root+1)*count])
		return own, nil
	}
	return c.recv(root)
}

// Broadcast replicates root's buf verbatim to every rank. The root gets
// back a copy of its own buf so all ranks share the same ownership story
// (every rank owns what Broadcast returned).
func (c *Comm) Broadcast(root int, buf []uint64) ([]uint64, error) {
	if err := c.g.AbortErr(); err != nil {
		return nil, err
	}
	if c.rank == root {
		for r := 0; r < c.g.size; r++ {
			if r == root {
				continue
			}
			if err := c.send(r, buf); err != nil {
				return nil, err
			}
		}
		own := make([]uint64, len(buf))
		copy(own, buf)
		return own, nil
	}
	return c.recv(root)
}

// Gather collects every rank's block into root's out buffer in rank
// order: rank r's block lands at out[r*len(block)]. Only the root's out
// is written; other ranks pass nil.
func (c *Comm) Gather(root int, block []uint64, out []uint64) error {
	if err := c.g.AbortErr(); err != nil {
		return err
	}
	if c.rank != root {
		return c.send(root, block)
	}
	count := len(block)
	if len(out) < c.g.size*count {
		return errors.Errorf("collective: gather needs %d elements at root, have %d",
			c.g.size*count, len(out))
	}
	for r := 0; r < c.g.size; r++ {
		if r == root {
			copy(out[r*count:(r+1)*count], block)
			continue
		}
		msg, err := c.recv(r)
		if err != nil {
			return err
		}
		if len(msg) != count {
			return errors.Errorf("collective: gather got %d elements from rank %d, want %d",
				len(msg), r, count)
		}
		copy(out[r*count:(r+1)*count], msg)
	}
	return nil
}

// Barrier blocks until every rank has entered it (or the group aborts).
// Two phases over the mail matrix: every rank reports to rank 0, rank 0
// releases everyone.
func (c *Comm) Barrier() error {
	if err := c.g.AbortErr(); err != nil {
		return err
	}
	if c.rank == 0 {
		for r := 1; r < c.g.size; r++ {
			if _, err := c.recv(r); err != nil {
				return err
			}
		}
		for r := 1; r < c.g.size; r++ {
			if err := c.send(r, nil); err != nil {
				return err
			}
		}
		return nil
	}
	if err := c.send(0, nil); err != nil {
		return err
	}
	_, err := c.recv(0)
	return err
}

package main

import (
	_ "embed"
	"regexp"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// A simulated accelerator runtime with the same host-side surface an
// OpenCL-style offload needs: platform and device enumeration, building a
// program from kernel source, device-resident buffers, an in-order command
// queue, a 2-D grid launch scheduled in work-groups, and a blocking
// Finish() drain.
//
// The per-element compute kernel stays an external artifact: matmult.cl
// is embedded and "built" by binding each __kernel entry point to a host
// implementation by name. The orchestration (enumerate, copy-in, launch,
// drain, copy-out) is the part this repo is really about; the device
// itself is stand-in infrastructure, which is also what makes the offload
// strategy testable without real hardware.
//
// Execution model: Enqueue* calls validate and submit; nothing is
// guaranteed to have run until Finish() returns. Work-groups are 16×16
// tiles of the global range, each scheduled as its own task on the
// device's worker pool. Copy-out enqueued after a launch observes the
// launch's writes because the queue is in-order.
//
// Fault injection (FailBuild/FailLaunch on Device) exists so tests can
// exercise the candidate-fallback policy in matmul_device.go.
//
// ===========================================================================

//go:embed matmult.cl
var deviceKernelSource string

// deviceWorkGroupDim is the edge of the square work-group tile.
const deviceWorkGroupDim = 16

// Platform is one simulated vendor platform holding devices.
type Platform struct {
	Name    string
	Devices []*Device
}

// Device is one simulated execution unit.
type Device struct {
	Name string

	// Workers bounds how many work-groups run concurrently. Zero means
	// runtime.NumCPU().
	Workers int

	// FailBuild, when set, makes BuildProgram fail with this cause.
	FailBuild error

	// FailLaunch, when set, makes EnqueueKernel fail with this cause.
	FailLaunch error
}

// DefaultPlatforms enumerates the simulated platforms available in this
// process: a single host platform with one pooled device.
func DefaultPlatforms() []*Platform {
	return []*Platform{
		{
			Name: "host-sim",
			Devices: []*Device{
				{Name: "cpu-pool", Workers: runtime.NumCPU()},
			},
		},
	}
}

// kernelArgs is the argument block every kernel invocation receives.
type kernelArgs struct {
	mat1, mat2 *DeviceBuffer
	result     *DeviceBuffer
	m, n, w    int
}

// kernelFunc computes one output element (i, j).
type kernelFunc func(i, j int, args kernelArgs)

// matMultKernel is the host binding for the mat_mult entry point in
// matmult.cl: C[i,j] = Σ_k A[i,k]*B[k,j], result row stride m.
func matMultKernel(i, j int, args kernelArgs) {
	var tmp uint64
	for k := 0; k < args.w; k++ {
		tmp += args.mat1.data[i*args.w+k] * args.mat2.data[k*args.n+j]
	}
	args.result.data[i*args.m+j] = tmp
}

// kernelBindings maps __kernel entry-point names to host implementations.
var kernelBindings = map[string]kernelFunc{
	"mat_mult": matMultKernel,
}

var kernelEntryRe = regexp.MustCompile(`__kernel\s+void\s+(\w+)\s*\(`)

// Kernel is one built entry point of a program.
type Kernel struct {
	Name string
	fn   kernelFunc
}

// Program is the built form of a kernel source file.
type Program struct {
	Kernels []*Kernel
}

// BuildProgram builds source for the device, binding every __kernel
// entry point. An entry point with no host binding is a build failure,
// as is a source with no entry points at all.
func (d *Device) BuildProgram(source string) (*Program, error) {
	if d.FailBuild != nil {
		return nil, errors.Wrapf(d.FailBuild, "device %s: build failed", d.Name)
	}
	matches := kernelEntryRe.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return nil, errors.Errorf("device %s: no kernels found in source", d.Name)
	}
	p := &Program{}
	for _, m := range matches {
		name := m[1]
		fn, ok := kernelBindings[name]
		if !ok {
			return nil, errors.Errorf("device %s: no binding for kernel %q", d.Name, name)
		}
		p.Kernels = append(p.Kernels, &Kernel{Name: name, fn: fn})
	}
	return p, nil
}

// DeviceBuffer is device-resident memory. Host slices are copied in and
// out explicitly; the device never aliases host memory.
type DeviceBuffer struct {
	data []uint64
}

// NewBuffer allocates a device buffer of n elements.
func (d *Device) NewBuffer(n int) *DeviceBuffer {
	return &DeviceBuffer{data: make([]uint64, n)}
}

// CommandQueue is an in-order queue of device commands. Commands are
// submitted by the Enqueue* methods and run when Finish drains the
// queue; a failed command poisons everything submitted after it.
type CommandQueue struct {
	dev     *Device
	pending []func() error
}

// NewQueue creates a command queue on the device.
func (d *Device) NewQueue() *CommandQueue {
	return &CommandQueue{dev: d}
}

// EnqueueWrite submits a host → device copy.
func (q *CommandQueue) EnqueueWrite(dst *DeviceBuffer, src []uint64) error {
	if len(src) > len(dst.data) {
		return errors.Errorf("device %s: write of %d elements into buffer of %d",
			q.dev.Name, len(src), len(dst.data))
	}
	q.pending = append(q.pending, func() error {
		copy(dst.data, src)
		return nil
	})
	return nil
}

// EnqueueRead submits a device → host copy. Because the queue is
// in-order, a read enqueued after a kernel launch observes the launch's
// writes, but only once Finish has drained the queue.
func (q *CommandQueue) EnqueueRead(dst []uint64, src *DeviceBuffer) error {
	if len(src.data) > len(dst) {
		return errors.Errorf("device %s: read of %d elements into host slice of %d",
			q.dev.Name, len(src.data), len(dst))
	}
	q.pending = append(q.pending, func() error {
		copy(dst, src.data)
		return nil
	})
	return nil
}

// EnqueueKernel submits a 2-D grid launch of k over globalM × globalN
// invocations, scheduled in 16×16 work-groups on the device's worker
// pool. Launch validation failures are reported here, at submission.
func (q *CommandQueue) EnqueueKernel(k *Kernel, globalM, globalN int, args kernelArgs) error {
	if q.dev.FailLaunch != nil {
		return errors.Wrapf(q.dev.FailLaunch, "device %s: launch of %s failed", q.dev.Name, k.Name)
	}
	if globalM <= 0 || globalN <= 0 {
		return errors.Errorf("device %s: invalid global range %dx%d", q.dev.Name, globalM, globalN)
	}
	workers := q.dev.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	q.pending = append(q.pending, func() error {
		var g errgroup.Group
		g.SetLimit(workers)
		for i0 := 0; i0 < globalM; i0 += deviceWorkGroupDim {
			for j0 := 0; j0 < globalN; j0 += deviceWorkGroupDim {
				iMax := min(i0+deviceWorkGroupDim, globalM)
				jMax := min(j0+deviceWorkGroupDim, globalN)
				i0, j0 := i0, j0 // work-group origin, captured per tile
				g.Go(func() error {
					for i := i0; i < iMax; i++ {
						for j := j0; j < jMax; j++ {
							k.fn(i, j, args)
						}
					}
					return nil
				})
			}
		}
		return g.Wait()
	})
	return nil
}

// Finish drains the queue: it blocks until every submitted command has
// completed, in order, and returns the first failure. No submitted work
// is considered done, and no copy-out is valid, before Finish returns.
func (q *CommandQueue) Finish() error {
	cmds := q.pending
	q.pending = nil
	for _, cmd := range cmds {
		if err := cmd(); err != nil {
			return err
		}
	}
	return nil
}

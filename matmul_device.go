package main

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrDeviceExhausted indicates every candidate (platform, device,
// kernel) combination failed; it is the device strategy's only terminal
// failure.
var ErrDeviceExhausted = errors.New("device: no candidate succeeded")

// DeviceStrategy computes C = A·B by offloading to a device runtime:
// copy both operands in, launch one invocation per output element on a
// 2-D grid, drain, copy the result out.
//
// Candidates are tried in enumeration order; a failure on one candidate
// is logged and the next is tried, and the strategy succeeds as soon as
// any candidate completes the full copy-in → launch → drain → copy-out
// sequence. Which successful candidate produced the result is not part
// of the contract. On overall failure the host result buffer is left
// untouched.
type DeviceStrategy struct {
	// Platforms overrides platform enumeration; nil means
	// DefaultPlatforms. Tests use it to inject failing candidates.
	Platforms func() []*Platform
}

// Name implements Strategy.
func (DeviceStrategy) Name() string { return "device" }

// Multiply implements Strategy.
func (s DeviceStrategy) Multiply(cfg Config, a, b, c *Matrix) error {
	if err := CanMultiply(a, b); err != nil {
		return err
	}

	enumerate := s.Platforms
	if enumerate == nil {
		enumerate = DefaultPlatforms
	}
	platforms := enumerate()
	if len(platforms) == 0 {
		return errors.Wrap(ErrDeviceExhausted, "no platforms enumerated")
	}

	m, n, w := a.rows, b.cols, a.cols

	// Result lands in a staging buffer first; the caller's buffer is
	// only written once a candidate has fully succeeded.
	staging := make([]uint64, len(c.data))

	var lastErr error
	for _, plat := range platforms {
		for _, dev := range plat.Devices {
			prog, err := dev.BuildProgram(deviceKernelSource)
			if err != nil {
				klog.Warningf("device: %s/%s: %v", plat.Name, dev.Name, err)
				lastErr = err
				continue
			}
			for _, kern := range prog.Kernels {
				err := runDeviceCandidate(dev, kern, a, b, staging, m, n, w)
				if err != nil {
					klog.Warningf("device: kernel %s on %s/%s: %v", kern.Name, plat.Name, dev.Name, err)
					lastErr = err
					continue
				}
				copy(c.data, staging)
				klog.V(1).Infof("device: kernel %s executed on %s/%s", kern.Name, plat.Name, dev.Name)
				return nil
			}
		}
	}
	if lastErr != nil {
		return errors.Wrapf(ErrDeviceExhausted, "last candidate error: %v", lastErr)
	}
	return errors.Wrap(ErrDeviceExhausted, "no devices enumerated")
}

// runDeviceCandidate runs the full offload sequence on one candidate:
// both operands resident on the device before the launch, copy-out
// submitted after it, and nothing trusted until the drain returns.
func runDeviceCandidate(dev *Device, kern *Kernel, a, b *Matrix, out []uint64, m, n, w int) error {
	queue := dev.NewQueue()

	mat1 := dev.NewBuffer(m * w)
	mat2 := dev.NewBuffer(w * n)
	result := dev.NewBuffer(m * n)

	if err := queue.EnqueueWrite(mat1, a.data); err != nil {
		return err
	}
	if err := queue.EnqueueWrite(mat2, b.data); err != nil {
		return err
	}
	args := kernelArgs{mat1: mat1, mat2: mat2, result: result, m: m, n: n, w: w}
	if err := queue.EnqueueKernel(kern, m, n, args); err != nil {
		return err
	}
	if err := queue.EnqueueRead(out, result); err != nil {
		return err
	}
	return queue.Finish()
}

func init() {
	RegisterStrategy(DeviceStrategy{})
}

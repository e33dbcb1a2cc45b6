package main

import "time"

// TimedMultiply runs one strategy call and measures its wall-clock span.
// The bracket covers exactly the kernel's compute (including its data
// distribution and join/drain, which are part of the strategy) and
// nothing else: operand generation and printing happen outside, so the
// measurement is comparable across strategies.
//
// The duration is reported even on failure; it is only meaningful on
// success.
func TimedMultiply(s Strategy, cfg Config, a, b, c *Matrix) (time.Duration, error) {
	start := time.Now()
	err := s.Multiply(cfg, a, b, c)
	return time.Since(start), err
}

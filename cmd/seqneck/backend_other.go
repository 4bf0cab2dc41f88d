//go:build !windows

package main

import "errors"

var errWebGPUUnavailable = errors.New("webgpu backend is only available on windows")

func runOnWebGPU(task) error {
	return errWebGPUUnavailable
}

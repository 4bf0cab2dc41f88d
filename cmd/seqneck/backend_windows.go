//go:build windows

package main

import (
	"errors"
	"fmt"

	"github.com/born-ml/born/backend/webgpu"
)

func runOnWebGPU(t task) error {
	if !webgpu.IsAvailable() {
		return errors.New("webgpu: no compatible adapter found")
	}

	gpu, err := webgpu.New()
	if err != nil {
		return fmt.Errorf("webgpu: %w", err)
	}
	defer gpu.Release()

	return execute(t, gpu)
}

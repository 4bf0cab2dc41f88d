package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/olekukonko/tablewriter"

	"github.com/born-ml/seqneck/internal/config"
	"github.com/born-ml/seqneck/internal/neck"
	"github.com/born-ml/seqneck/internal/parallel"
)

// task is one command body, run against whichever backend the config selects.
type task struct {
	ctx    context.Context
	cfg    config.Config
	out    io.Writer
	logger *slog.Logger

	// forward is nil for describe.
	forward *forwardOptions
}

type forwardOptions struct {
	batch  int
	height int // 0 selects the height the neck expects
	width  int
	save   string

	repeat  int // independent batches decoded concurrently
	workers int
}

func dispatch(t task) error {
	switch t.cfg.Backend {
	case config.BackendWebGPU:
		return runOnWebGPU(t)
	default:
		return execute(t, cpu.New())
	}
}

func execute[B tensor.Backend](t task, backend B) error {
	dec, err := buildDecoder(t, backend)
	if err != nil {
		return err
	}

	if t.forward == nil {
		return describe(t, dec, backend)
	}
	return forward(t, dec, backend)
}

func buildDecoder[B tensor.Backend](t task, backend B) (neck.Decoder[B], error) {
	nc, err := t.cfg.Neck.Build()
	if err != nil {
		return nil, err
	}

	dec, err := neck.New(nc, backend)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("built neck", "kind", dec.Kind(), "backend", backend.Name(), "out_channels", dec.OutChannels())

	if t.cfg.Checkpoint != "" {
		if err := neck.LoadCheckpoint(dec, t.cfg.Checkpoint, backend); err != nil {
			return nil, err
		}
		t.logger.Info("loaded checkpoint", "path", t.cfg.Checkpoint)
	}
	return dec, nil
}

func describe[B tensor.Backend](t task, dec neck.Decoder[B], backend B) error {
	var params int
	for _, p := range dec.Parameters() {
		params += p.Tensor().Shape().NumElements()
	}

	fmt.Fprintf(t.out, "kind:         %s\n", dec.Kind())
	fmt.Fprintf(t.out, "backend:      %s\n", backend.Name())
	fmt.Fprintf(t.out, "in channels:  %d\n", t.cfg.Neck.InChannels)
	fmt.Fprintf(t.out, "out channels: %d\n", dec.OutChannels())
	fmt.Fprintf(t.out, "parameters:   %d\n", params)

	state := dec.StateDict()
	if len(state) == 0 {
		return nil
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	data := make([][]string, 0, len(names))
	for _, name := range names {
		shape := state[name].Shape()
		data = append(data, []string{name, fmt.Sprint([]int(shape)), strconv.Itoa(shape.NumElements())})
	}

	fmt.Fprintln(t.out)
	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"NAME", "SHAPE", "SIZE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func forward[B tensor.Backend](t task, dec neck.Decoder[B], backend B) error {
	opts := t.forward
	height := opts.height
	if height == 0 {
		height = naturalHeight(dec.Kind())
	}

	shape := tensor.Shape{opts.batch, t.cfg.Neck.InChannels, height, opts.width}
	inputs := make([]*tensor.Tensor[float32, B], opts.repeat)
	for i := range inputs {
		inputs[i] = tensor.Randn[float32](shape, backend)
	}

	outputs := make([]tensor.Shape, opts.repeat)
	start := time.Now()
	err := parallel.For(t.ctx, opts.repeat, func(_ context.Context, i int) error {
		y, err := dec.Decode(inputs[i])
		if err != nil {
			return err
		}
		outputs[i] = y.Shape()
		t.logger.Debug("decoded batch", "index", i, "output", []int(outputs[i]))
		return nil
	}, parallel.Config{Workers: opts.workers})
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	t.logger.Info("decoded", "input", []int(shape), "output", []int(outputs[0]), "batches", opts.repeat, "elapsed", time.Since(start))

	fmt.Fprintf(t.out, "output shape: %v\n", []int(outputs[0]))

	if opts.save != "" {
		if err := neck.SaveCheckpoint(dec, opts.save); err != nil {
			return err
		}
		t.logger.Info("saved checkpoint", "path", opts.save)
	}
	return nil
}

func naturalHeight(kind neck.Kind) int {
	if kind == neck.KindConvolutional {
		return neck.ConvDecoderHeight
	}
	return 1
}

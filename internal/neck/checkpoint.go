package neck

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ErrKindMismatch is returned when a checkpoint was written by a different
// decoder kind than the one it is loaded into.
var ErrKindMismatch = errors.New("checkpoint kind mismatch")

// Checkpoint metadata keys.
const (
	MetaInChannels  = "in_channels"
	MetaOutChannels = "out_channels"
)

// inChanneler is implemented by every decoder in this package.
type inChanneler interface {
	InChannels() int
}

// SaveCheckpoint writes the decoder state to a .born file. The model type is
// the decoder kind.
func SaveCheckpoint[B tensor.Backend](dec Decoder[B], path string) error {
	meta := map[string]string{
		MetaOutChannels: strconv.Itoa(dec.OutChannels()),
	}
	if ic, ok := dec.(inChanneler); ok {
		meta[MetaInChannels] = strconv.Itoa(ic.InChannels())
	}

	if err := nn.Save[B](dec, path, dec.Kind().String(), meta); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads a .born file written by SaveCheckpoint into dec.
//
// The file is read completely before dec is touched: a checkpoint of another
// kind fails with ErrKindMismatch and leaves dec unchanged.
func LoadCheckpoint[B tensor.Backend](dec Decoder[B], path string, backend B) error {
	var staged stagedState[B]
	header, err := nn.Load[B](path, backend, &staged)
	if err != nil {
		return fmt.Errorf("load checkpoint %s: %w", path, err)
	}

	if got, want := header.ModelType, dec.Kind().String(); got != want {
		return fmt.Errorf("load checkpoint %s: %w: file holds %q, decoder is %q", path, ErrKindMismatch, got, want)
	}

	if err := dec.LoadStateDict(staged.state); err != nil {
		return fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	return nil
}

// stagedState is an nn.Module that only records the state dict handed to it.
type stagedState[B tensor.Backend] struct {
	state map[string]*tensor.RawTensor
}

func (s *stagedState[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x
}

func (s *stagedState[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

func (s *stagedState[B]) StateDict() map[string]*tensor.RawTensor {
	return s.state
}

func (s *stagedState[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	s.state = state
	return nil
}

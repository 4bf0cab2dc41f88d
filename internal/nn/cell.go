package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/tensor"
)

// CellKind selects the recurrent cell used by an RNN.
type CellKind int

const (
	// LSTM is the long short-term memory cell (gates i, f, g, o).
	LSTM CellKind = iota
	// GRU is the gated recurrent unit (gates r, z, n).
	GRU
)

// String returns the lower-case cell name.
func (k CellKind) String() string {
	switch k {
	case LSTM:
		return "lstm"
	case GRU:
		return "gru"
	default:
		return fmt.Sprintf("CellKind(%d)", int(k))
	}
}

// Gates returns the number of stacked gate blocks in the cell weights.
func (k CellKind) Gates() int {
	switch k {
	case LSTM:
		return 4
	case GRU:
		return 3
	default:
		panic(fmt.Sprintf("rnn: unknown cell kind %d", int(k)))
	}
}

// ParseCellKind parses "lstm" or "gru" (case-insensitive).
func ParseCellKind(s string) (CellKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lstm":
		return LSTM, nil
	case "gru":
		return GRU, nil
	default:
		return 0, fmt.Errorf("unknown cell kind %q (want lstm or gru)", s)
	}
}

// cellState carries the recurrent state between timesteps.
// c is nil for GRU.
type cellState[B tensor.Backend] struct {
	h *tensor.Tensor[float32, B]
	c *tensor.Tensor[float32, B]
}

// lstmStep advances an LSTM cell by one timestep.
//
// xp and hp are the input and recurrent projections, both [batch, 4*hidden],
// laid out as i, f, g, o.
//
//	c' = f*c + i*g
//	h' = o*tanh(c')
func lstmStep[B tensor.Backend](xp, hp *tensor.Tensor[float32, B], s cellState[B]) cellState[B] {
	gates := xp.Add(hp).Chunk(4, 1)

	i := Sigmoid(gates[0])
	f := Sigmoid(gates[1])
	g := Tanh(gates[2])
	o := Sigmoid(gates[3])

	c := f.Mul(s.c).Add(i.Mul(g))
	h := o.Mul(Tanh(c))

	return cellState[B]{h: h, c: c}
}

// gruStep advances a GRU cell by one timestep.
//
// xp and hp are [batch, 3*hidden], laid out as r, z, n. The recurrent bias
// is part of hp, so it sits inside the reset gate product:
//
//	n  = tanh(x_n + r*(W_hn h + b_hn))
//	h' = (1-z)*n + z*h
func gruStep[B tensor.Backend](xp, hp *tensor.Tensor[float32, B], s cellState[B]) cellState[B] {
	xg := xp.Chunk(3, 1)
	hg := hp.Chunk(3, 1)

	r := Sigmoid(xg[0].Add(hg[0]))
	z := Sigmoid(xg[1].Add(hg[1]))
	n := Tanh(xg[2].Add(r.Mul(hg[2])))

	keep := z.MulScalar(-1).AddScalar(1)
	carry := z.Mul(s.h)
	h := keep.Mul(n).Add(carry)

	return cellState[B]{h: h}
}

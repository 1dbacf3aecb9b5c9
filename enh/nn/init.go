package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrUnknownInit is returned for an unsupported initialisation method.
var ErrUnknownInit = errors.New("nn: unknown init method")

// InitMethod names a weight initialisation scheme.
type InitMethod string

const (
	// InitDefault keeps the framework default: U(-1/sqrt(fan_in), 1/sqrt(fan_in))
	// for weights and biases.
	InitDefault        InitMethod = ""
	InitChainer        InitMethod = "chainer"
	InitXavierUniform  InitMethod = "xavier_uniform"
	InitXavierNormal   InitMethod = "xavier_normal"
	InitKaimingUniform InitMethod = "kaiming_uniform"
	InitKaimingNormal  InitMethod = "kaiming_normal"
)

// InitMethods lists the named schemes.
var InitMethods = []InitMethod{
	InitChainer,
	InitXavierUniform,
	InitXavierNormal,
	InitKaimingUniform,
	InitKaimingNormal,
}

// ParseInit validates s. The empty string selects InitDefault.
func ParseInit(s string) (InitMethod, error) {
	if s == "" {
		return InitDefault, nil
	}
	for _, m := range InitMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInit, s)
}

// Initialize draws every trainable parameter from method. Except for the
// default scheme, biases are zeroed.
func Initialize(params []*Param, method InitMethod, rng *rand.Rand) error {
	if _, err := ParseInit(string(method)); err != nil {
		return err
	}

	for _, p := range params {
		if p.Frozen {
			continue
		}
		fi := float64(max(p.FanIn, 1))
		fo := float64(max(p.FanOut, 1))

		if p.Bias && method != InitDefault {
			clear(p.Data)
			continue
		}

		switch method {
		case InitDefault:
			fillUniform(p.Data, 1/math.Sqrt(fi), rng)
		case InitChainer:
			fillNormal(p.Data, 1/math.Sqrt(fi), rng)
		case InitXavierUniform:
			fillUniform(p.Data, math.Sqrt(6/(fi+fo)), rng)
		case InitXavierNormal:
			fillNormal(p.Data, math.Sqrt(2/(fi+fo)), rng)
		case InitKaimingUniform:
			fillUniform(p.Data, math.Sqrt(6/fi), rng)
		case InitKaimingNormal:
			fillNormal(p.Data, math.Sqrt(2/fi), rng)
		}
	}
	return nil
}

func fillUniform(dst []float64, bound float64, rng *rand.Rand) {
	for i := range dst {
		dst[i] = (2*rng.Float64() - 1) * bound
	}
}

func fillNormal(dst []float64, std float64, rng *rand.Rand) {
	for i := range dst {
		dst[i] = rng.NormFloat64() * std
	}
}

package separator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-enh/enh/choices"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"dprnn", "rnn", "tcn", "transformer", "wpe_beamformer"}, Choices.Names())
	assert.Equal(t, "rnn", Choices.Default())

	s, err := New("", 257, nil)
	require.NoError(t, err)
	assert.Equal(t, "rnn", s.Name())
	assert.Equal(t, 257, s.InputDim())
	assert.Equal(t, 2, s.NumSpk())

	_, err = New("conformer", 257, nil)
	require.ErrorIs(t, err, choices.ErrUnknown)

	_, err = New("rnn", 0, nil)
	require.ErrorIs(t, err, ErrInvalidOption)

	_, err = New("rnn", 257, choices.Conf{"hidden": 3})
	require.ErrorIs(t, err, choices.ErrConf)
}

func TestDefaultsConf(t *testing.T) {
	conf, err := Choices.Defaults("tcn")
	require.NoError(t, err)
	assert.Equal(t, "gLN", conf["norm_type"])
	assert.Equal(t, 128, conf["bottleneck_dim"])

	conf, err = Choices.Defaults("wpe_beamformer")
	require.NoError(t, err)
	assert.Equal(t, "mvdr_souden", conf["beamformer_type"])
	assert.Equal(t, -1, conf["ref_channel"])
}

func TestRNNDefaultParams(t *testing.T) {
	const n = 257
	s, err := New("rnn", n, nil)
	require.NoError(t, err)

	want := 2*4*(n*512+512*512+2*512) + // first layer
		2*2*4*(1024*512+512*512+2*512) + // two more layers
		1024*512 + 512 + // output projection
		2*(512*n+n) // mask heads
	assert.Equal(t, want, NumParams(s))
	assert.Equal(t, "rnn", s.Breakdown()[0].Name)
}

func TestRNNRejectsProjectedType(t *testing.T) {
	_, err := New("rnn", 10, choices.Conf{"rnn_type": "blstmp"})
	require.ErrorIs(t, err, ErrInvalidOption)

	s, err := New("rnn", 10, choices.Conf{"rnn_type": "gru", "layer": 1, "unit": 2, "num_spk": 1})
	require.NoError(t, err)
	// gru: 3*(10*2 + 4 + 4), linear 2->2, head 2->10
	assert.Equal(t, 3*28+6+30, NumParams(s))
}

func TestTCNParams(t *testing.T) {
	s, err := New("tcn", 4, choices.Conf{
		"layer": 2, "stack": 1, "bottleneck_dim": 2, "hidden_dim": 3, "kernel": 3,
	})
	require.NoError(t, err)
	// 2N + N*B + X*R*(2BH + HP + 4H + 2) + B*C*N
	assert.Equal(t, 8+8+2*(12+9+12+2)+16, NumParams(s))

	tcn := s.(*TCN)
	assert.Equal(t, []int{1, 2}, tcn.Dilations())
	assert.Equal(t, 1+2*1+2*2, tcn.ReceptiveField())
}

func TestTCNDefaultParams(t *testing.T) {
	const (
		n = 512
		b = 128
		h = 512
		p = 3
	)
	s, err := New("tcn", n, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*n+n*b+8*3*(2*b*h+h*p+4*h+2)+b*2*n, NumParams(s))
}

func TestDPRNNParams(t *testing.T) {
	base := choices.Conf{"unit": 3, "layer": 1}
	s, err := New("dprnn", 4, base)
	require.NoError(t, err)
	// row 216+28, col 216+28, norms 16, prelu+conv 41
	assert.Equal(t, 545, NumParams(s))

	uni := choices.Conf{"unit": 3, "layer": 1, "bidirectional": false}
	s, err = New("dprnn", 4, uni)
	require.NoError(t, err)
	assert.Equal(t, 244+108+16+16+41, NumParams(s))

	_, err = New("dprnn", 4, choices.Conf{"rnn_type": "blstm"})
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestDPRNNSegments(t *testing.T) {
	s, err := NewDPRNN(4, DefaultDPRNNOptions())
	require.NoError(t, err)
	// 100 frames: rest 10, padded 130, (130-20)/10+1
	assert.Equal(t, 12, s.Segments(100))
	assert.Positive(t, s.Segments(1))
}

func TestTransformerParams(t *testing.T) {
	conf := choices.Conf{"adim": 4, "aheads": 2, "layers": 1, "linear_units": 8}
	s, err := New("transformer", 4, conf)
	require.NoError(t, err)
	// embed 16+4+8+1, layer 80+76+16, heads 2*20
	assert.Equal(t, 29+172+40, NumParams(s))
	assert.Equal(t, 2, s.(*Transformer).HeadDim())

	tests := []struct {
		name  string
		extra choices.Conf
		want  int
	}{
		{"normalize before", choices.Conf{"normalize_before": true}, 241 + 8},
		{"concat after", choices.Conf{"concat_after": true}, 241 + 36},
		{"no scaled pos enc", choices.Conf{"use_scaled_pos_enc": false}, 240},
		{"conv1d", choices.Conf{"positionwise_layer_type": "conv1d", "positionwise_conv_kernel_size": 3}, 241 - 76 + (96 + 8 + 96 + 4)},
		{"conv1d-linear", choices.Conf{"positionwise_layer_type": "conv1d-linear", "positionwise_conv_kernel_size": 3}, 241 - 76 + (96 + 8 + 32 + 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := choices.Conf{}
			for k, v := range conf {
				c[k] = v
			}
			for k, v := range tt.extra {
				c[k] = v
			}
			s, err := New("transformer", 4, c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, NumParams(s))
		})
	}
}

func TestTransformerHeads(t *testing.T) {
	_, err := New("transformer", 4, choices.Conf{"adim": 6, "aheads": 4})
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestBeamformerParams(t *testing.T) {
	small := choices.Conf{"blayers": 1, "bunits": 3, "bprojs": 2, "badim": 5}

	s, err := New("wpe_beamformer", 4, small)
	require.NoError(t, err)
	bf := s.(*Beamformer)
	assert.Equal(t, 0, bf.WPEMasks())
	assert.Equal(t, 2, bf.BeamformerMasks())
	// projected blstm 216+14, two heads 24, reference 25+6
	assert.Equal(t, 230+24+31, NumParams(s))

	tests := []struct {
		name  string
		extra choices.Conf
		want  int
	}{
		{"stacked estimator", choices.Conf{"btype": "lstm"}, 116 + 24 + 31},
		{"fixed reference", choices.Conf{"ref_channel": 0}, 230 + 24},
		{"no noise mask", choices.Conf{"use_noise_mask": false}, 230 + 12 + 31},
		{"wpe", choices.Conf{
			"use_wpe": true, "wlayers": 1, "wunits": 3, "wprojs": 2, "multi_source_wpe": false,
		}, 230 + 12 + 230 + 24 + 31},
		{"wpe without dnn mask", choices.Conf{"use_wpe": true, "use_dnn_mask_for_wpe": false}, 230 + 24 + 31},
		{"beamformer off", choices.Conf{"use_beamformer": false}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := choices.Conf{}
			for k, v := range small {
				c[k] = v
			}
			for k, v := range tt.extra {
				c[k] = v
			}
			s, err := New("wpe_beamformer", 4, c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, NumParams(s))
		})
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		key  string
		conf choices.Conf
	}{
		{"rnn nonlinear", "rnn", choices.Conf{"nonlinear": "softplus"}},
		{"rnn dropout", "rnn", choices.Conf{"dropout": 1.5}},
		{"rnn cell", "rnn", choices.Conf{"rnn_type": "bqrnn"}},
		{"tcn norm", "tcn", choices.Conf{"norm_type": "IN"}},
		{"tcn kernel", "tcn", choices.Conf{"kernel": 0}},
		{"dprnn segment", "dprnn", choices.Conf{"segment_size": -1}},
		{"transformer ff", "transformer", choices.Conf{"positionwise_layer_type": "conv2d"}},
		{"transformer dropout", "transformer", choices.Conf{"attention_dropout_rate": -0.5}},
		{"beamformer type", "wpe_beamformer", choices.Conf{"beamformer_type": "gev"}},
		{"beamformer loss", "wpe_beamformer", choices.Conf{"loss_type": "si_snr"}},
		{"beamformer speakers", "wpe_beamformer", choices.Conf{"num_spk": 0}},
		{"wpe taps", "wpe_beamformer", choices.Conf{"use_wpe": true, "taps": 0}},
		{"wpd delay", "wpe_beamformer", choices.Conf{"beamformer_type": "wpd", "delay": 0}},
		{"diag eps", "wpe_beamformer", choices.Conf{"diag_eps": -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.key, 16, tt.conf)
			require.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}

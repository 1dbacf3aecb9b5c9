package preprocess

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-enh/audio/wavio"
	"github.com/cwbudde/algo-enh/corpus"
	"github.com/cwbudde/algo-enh/dsp/level"
	"github.com/cwbudde/algo-enh/dsp/reverb"
)

// Errors returned by preprocessors.
var (
	ErrInvalidOption   = errors.New("preprocess: invalid option")
	ErrChannelMismatch = errors.New("preprocess: channel mismatch")
)

// Data holds the audio arrays of one utterance keyed by data name
// ("speech_mix", "speech_ref1", ...). Arrays are channel-major.
type Data map[string][][]float64

// Func transforms the data of utterance uid.
type Func func(uid string, data Data) (Data, error)

// Data names.
const (
	SpeechMix    = "speech_mix"
	DereverbRef1 = "dereverb_ref1"
)

// Option configures a preprocessor.
type Option func(*config)

type config struct {
	train bool

	rirScp        string
	rirMaxChannel int
	rirApplyProb  float64

	noiseScp        string
	noiseMaxChannel int
	noiseApplyProb  float64
	noiseDBRange    string

	volume     float64
	speechName string
	seed       int64
	logger     *zap.Logger
}

func defaultConfig() config {
	return config{
		rirApplyProb:   1,
		noiseApplyProb: 1,
		noiseDBRange:   "13_15",
		speechName:     SpeechMix,
		logger:         zap.NewNop(),
	}
}

// WithTrain enables the train-time augmentations.
func WithTrain(train bool) Option {
	return func(c *config) { c.train = train }
}

// WithRIR convolves speech with a random RIR from the list at scp with
// probability prob. maxChannel <= 0 keeps every RIR channel.
func WithRIR(scp string, maxChannel int, prob float64) Option {
	return func(c *config) {
		c.rirScp = scp
		c.rirMaxChannel = maxChannel
		c.rirApplyProb = prob
	}
}

// WithNoise adds a random noise from the list at scp with probability prob, at
// an SNR drawn uniformly from dbRange ("low_high" or "v").
func WithNoise(scp string, maxChannel int, prob float64, dbRange string) Option {
	return func(c *config) {
		c.noiseScp = scp
		c.noiseMaxChannel = maxChannel
		c.noiseApplyProb = prob
		c.noiseDBRange = dbRange
	}
}

// WithVolumeNormalize scales speech so its peak equals v. Zero disables it.
func WithVolumeNormalize(v float64) Option {
	return func(c *config) { c.volume = v }
}

// WithSpeechName selects the data entry to process.
func WithSpeechName(name string) Option {
	return func(c *config) { c.speechName = name }
}

// WithSeed seeds the augmentation draws.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// WithLogger logs the applied augmentations at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Common applies RIR convolution, additive noise and volume normalisation to
// one data entry.
type Common struct {
	cfg    config
	rirs   []string
	noises []string
	dbLow  float64
	dbHigh float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCommon builds the default preprocessor. RIR and noise lists are read
// eagerly.
func NewCommon(opts ...Option) (*Common, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.speechName == "" {
		return nil, fmt.Errorf("%w: empty speech name", ErrInvalidOption)
	}
	for _, p := range []struct {
		name string
		v    float64
	}{{"rir_apply_prob", cfg.rirApplyProb}, {"noise_apply_prob", cfg.noiseApplyProb}} {
		if p.v < 0 || p.v > 1 {
			return nil, fmt.Errorf("%w: %s %v outside [0, 1]", ErrInvalidOption, p.name, p.v)
		}
	}
	if cfg.volume < 0 {
		return nil, fmt.Errorf("%w: speech_volume_normalize %v", ErrInvalidOption, cfg.volume)
	}

	c := &Common{cfg: cfg, rng: rand.New(rand.NewSource(cfg.seed))}
	var err error
	if cfg.rirScp != "" {
		if c.rirs, err = corpus.ReadAudioList(cfg.rirScp); err != nil {
			return nil, fmt.Errorf("preprocess: rir list: %w", err)
		}
	}
	if cfg.noiseScp != "" {
		if c.noises, err = corpus.ReadAudioList(cfg.noiseScp); err != nil {
			return nil, fmt.Errorf("preprocess: noise list: %w", err)
		}
		if c.dbLow, c.dbHigh, err = level.ParseDBRange(cfg.noiseDBRange); err != nil {
			return nil, fmt.Errorf("preprocess: noise_db_range: %w", err)
		}
	}
	return c, nil
}

// Func returns c.Process.
func (c *Common) Func() Func { return c.Process }

// Process transforms the speech entry of data in place and returns data.
// Data without the speech entry is returned unchanged.
func (c *Common) Process(uid string, data Data) (Data, error) {
	if _, err := c.process(uid, data); err != nil {
		return nil, err
	}
	return data, nil
}

// process returns the RIR applied to the speech entry, nil when none was.
func (c *Common) process(uid string, data Data) (*wavio.Audio, error) {
	speech, ok := data[c.cfg.speechName]
	if !ok {
		return nil, nil
	}

	var rir *wavio.Audio
	if c.cfg.train {
		var err error
		if speech, rir, err = c.augment(uid, speech); err != nil {
			return nil, fmt.Errorf("preprocess: %s: %w", uid, err)
		}
	}
	if c.cfg.volume > 0 {
		if _, err := level.NormalizePeak(speech, c.cfg.volume); err != nil && !errors.Is(err, level.ErrSilent) {
			return nil, err
		}
	}
	data[c.cfg.speechName] = speech
	return rir, nil
}

type draw struct {
	rir      string
	noise    string
	noiseDB  float64
	noiseOff float64
}

// drawAugmentation takes every random decision for one utterance under the
// lock so concurrent callers see a reproducible sequence per call order.
func (c *Common) drawAugmentation() draw {
	c.mu.Lock()
	defer c.mu.Unlock()

	var d draw
	if len(c.rirs) > 0 && c.cfg.rirApplyProb >= c.rng.Float64() {
		d.rir = c.rirs[c.rng.Intn(len(c.rirs))]
	}
	if len(c.noises) > 0 && c.cfg.noiseApplyProb >= c.rng.Float64() {
		d.noise = c.noises[c.rng.Intn(len(c.noises))]
		d.noiseDB = c.dbLow + (c.dbHigh-c.dbLow)*c.rng.Float64()
		d.noiseOff = c.rng.Float64()
	}
	return d
}

func (c *Common) augment(uid string, speech [][]float64) ([][]float64, *wavio.Audio, error) {
	d := c.drawAugmentation()
	power := level.NonSilentPower(speech)

	var rir *wavio.Audio
	if d.rir != "" {
		var err error
		if rir, err = loadChannels(d.rir, c.cfg.rirMaxChannel); err != nil {
			return nil, nil, err
		}
		if speech, err = convolve(speech, rir.Channels); err != nil {
			return nil, nil, err
		}
		power2 := level.NonSilentPower(speech)
		level.Scale(speech, math.Sqrt(power/math.Max(power2, level.PowerFloor)))
		c.cfg.logger.Debug("applied rir", zap.String("utt", uid), zap.String("rir", d.rir))
	}

	if d.noise != "" {
		a, err := loadChannels(d.noise, c.cfg.noiseMaxChannel)
		if err != nil {
			return nil, nil, err
		}
		noise := fitNoise(a.Channels, samples(speech), d.noiseOff)
		g := level.NoiseGain(power, level.PowerMulti(noise), d.noiseDB)
		if speech, err = addScaled(speech, noise, g); err != nil {
			return nil, nil, err
		}
		c.cfg.logger.Debug("added noise", zap.String("utt", uid),
			zap.String("noise", d.noise), zap.Float64("snr_db", d.noiseDB))
	}
	return speech, rir, nil
}

func loadChannels(path string, maxChannel int) (*wavio.Audio, error) {
	a, err := wavio.Read(path)
	if err != nil {
		return nil, err
	}
	if maxChannel > 0 && len(a.Channels) > maxChannel {
		a.Channels = a.Channels[:maxChannel]
	}
	return a, nil
}

func samples(x [][]float64) int {
	if len(x) == 0 {
		return 0
	}
	return len(x[0])
}

// pairChannels broadcasts a single channel against many and rejects any
// other count mismatch.
func pairChannels(a, b int) (int, error) {
	switch {
	case a == b, b == 1:
		return a, nil
	case a == 1:
		return b, nil
	default:
		return 0, fmt.Errorf("%w: %d and %d channels", ErrChannelMismatch, a, b)
	}
}

func pick(x [][]float64, ch int) []float64 {
	if len(x) == 1 {
		return x[0]
	}
	return x[ch]
}

// convolve reverberates speech, keeping its length.
func convolve(speech, rir [][]float64) ([][]float64, error) {
	n, err := pairChannels(len(speech), len(rir))
	if err != nil {
		return nil, err
	}
	out := make([][]float64, n)
	for ch := range out {
		y, err := reverb.Apply(pick(speech, ch), pick(rir, ch))
		if err != nil {
			return nil, err
		}
		out[ch] = y
	}
	return out, nil
}

// fitNoise crops or wraps noise to n samples. frac in [0, 1) selects the
// crop start, or the offset at which a short noise begins before wrapping.
func fitNoise(noise [][]float64, n int, frac float64) [][]float64 {
	out := make([][]float64, len(noise))
	for ch, x := range noise {
		y := make([]float64, n)
		switch m := len(x); {
		case m == 0:
		case m == n:
			copy(y, x)
		case m > n:
			off := int(frac * float64(m-n))
			copy(y, x[off:off+n])
		default:
			off := int(frac * float64(n-m))
			for i := range y {
				y[i] = x[((i-off)%m+m)%m]
			}
		}
		out[ch] = y
	}
	return out
}

func addScaled(speech, noise [][]float64, g float64) ([][]float64, error) {
	n, err := pairChannels(len(speech), len(noise))
	if err != nil {
		return nil, err
	}
	out := make([][]float64, n)
	for ch := range out {
		s, z := pick(speech, ch), pick(noise, ch)
		y := make([]float64, len(s))
		for i := range y {
			y[i] = s[i] + g*z[i]
		}
		out[ch] = y
	}
	return out, nil
}

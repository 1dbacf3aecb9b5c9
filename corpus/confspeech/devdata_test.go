package confspeech

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-enh/corpus"
)

const configList = `/corpus/aishell/S0002/SSB18100388.wav -2 /noise/noise-free-sound-0328.wav /rir/circle/3.43_5.92_3.00.wav 19.249 0.4497

/corpus/librispeech/dev/103/1240/103-1240-0001.wav 0.5 /noise/n2.wav /rir/linear/r2.wav 5.0 0.9
`

func writeFixture(t *testing.T, withAudio bool) (cfgPath, simDir string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "dev.cfg")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configList), 0o644))

	simDir = filepath.Join(dir, "sim", "nested")
	require.NoError(t, os.MkdirAll(simDir, 0o755))
	if withAudio {
		lines, err := ReadConfig(cfgPath)
		require.NoError(t, err)
		for _, l := range lines {
			require.NoError(t, os.WriteFile(filepath.Join(simDir, l.UttID()+".wav"), nil, 0o644))
		}
	}
	return cfgPath, filepath.Dir(simDir)
}

func TestParseLine(t *testing.T) {
	l, err := ParseLine("/a/c.wav -2 /a/n.wav /a/r.wav 19.2 0.4")
	require.NoError(t, err)
	assert.Equal(t, "c#n#r#-2#19.2#0.4", l.UttID())

	_, err = ParseLine("/a/c.wav -2 /a/n.wav")
	assert.ErrorIs(t, err, ErrMalformedLine)
}

func TestParseConfigLineNumber(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("a b c d e f\n\nbad line\n"))
	require.ErrorIs(t, err, ErrMalformedLine)
	assert.Contains(t, err.Error(), "line 3")
}

func TestPrepare(t *testing.T) {
	cfgPath, simDir := writeFixture(t, true)
	out := filepath.Join(t.TempDir(), "data", "dev")

	st, err := Prepare(Options{ConfigFile: cfgPath, AudioDirs: []string{simDir}, OutDir: out})
	require.NoError(t, err)
	assert.Equal(t, Stats{Utterances: 2, Speakers: 2}, st)

	id1 := "SSB18100388#noise-free-sound-0328#3.43_5.92_3.00#-2#19.249#0.4497"
	id2 := "103-1240-0001#n2#r2#0.5#5.0#0.9"

	wav, err := corpus.ReadScp(filepath.Join(out, "wav.scp"))
	require.NoError(t, err)
	require.Len(t, wav, 2)
	assert.Equal(t, id1, wav[0].Key)
	assert.Equal(t, filepath.Join(simDir, "nested", id1+".wav"), wav[0].Value)

	utt2spk, err := corpus.ReadScp(filepath.Join(out, "utt2spk"))
	require.NoError(t, err)
	assert.Equal(t, []corpus.Entry{{Key: id1, Value: "S0002"}, {Key: id2, Value: "103-1240"}}, utt2spk)

	spk1, err := corpus.ReadScp(filepath.Join(out, "spk1.scp"))
	require.NoError(t, err)
	assert.Equal(t, "/corpus/aishell/S0002/SSB18100388.wav", spk1[0].Value)

	noise, err := corpus.ReadScp(filepath.Join(out, "noise1.scp"))
	require.NoError(t, err)
	assert.Equal(t, "/noise/n2.wav", noise[1].Value)

	spk2utt, err := os.ReadFile(filepath.Join(out, "spk2utt"))
	require.NoError(t, err)
	assert.Equal(t, "103-1240 "+id2+"\nS0002 "+id1+"\n", string(spk2utt))
}

func TestPrepareMissingAudio(t *testing.T) {
	cfgPath, simDir := writeFixture(t, false)

	_, err := Prepare(Options{ConfigFile: cfgPath, AudioDirs: []string{simDir}, OutDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrMissingAudio)
}

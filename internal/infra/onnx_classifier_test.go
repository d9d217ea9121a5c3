package infra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{0, 0, 0, 0})
	require.Len(t, probs, 4)
	for _, p := range probs {
		assert.InDelta(t, 0.25, p, 1e-6)
	}

	probs = softmax([]float32{1, 3, 2, 0})
	var sum float64
	for _, p := range probs {
		sum += float64(p)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Greater(t, probs[1], probs[2])
	assert.Greater(t, probs[2], probs[0])
	assert.Greater(t, probs[0], probs[3])
}

func TestSoftmax_LargeLogitsStayFinite(t *testing.T) {
	probs := softmax([]float32{1000, 1000})
	for _, p := range probs {
		require.False(t, math.IsNaN(float64(p)))
		require.False(t, math.IsInf(float64(p), 0))
		assert.InDelta(t, 0.5, p, 1e-6)
	}

	assert.Nil(t, softmax(nil))
}

func TestPreprocess_Normalization(t *testing.T) {
	dst := make([]float32, 3)
	require.NoError(t, preprocess(dst, []byte{255, 0, 128}, 1))

	assert.InDelta(t, (1.0-0.485)/0.229, dst[0], 1e-4)
	assert.InDelta(t, (0.0-0.456)/0.224, dst[1], 1e-4)
	assert.InDelta(t, (128.0/255-0.406)/0.225, dst[2], 1e-4)
}

func TestPreprocess_PlanarLayout(t *testing.T) {
	// 2x2 frame, one marked pixel at (1,1): interleaved RGB in, planar
	// NCHW out.
	const edge = 2
	pixels := make([]byte, edge*edge*3)
	pixels[3*3+0] = 255
	pixels[3*3+1] = 255
	pixels[3*3+2] = 255

	dst := make([]float32, edge*edge*3)
	require.NoError(t, preprocess(dst, pixels, edge))

	plane := edge * edge
	for ch := 0; ch < 3; ch++ {
		marked := (1.0 - channelMean[ch]) / channelStd[ch]
		zero := (0.0 - channelMean[ch]) / channelStd[ch]
		for i := 0; i < plane; i++ {
			want := zero
			if i == 3 {
				want = marked
			}
			assert.InDelta(t, want, dst[ch*plane+i], 1e-4, "channel %d index %d", ch, i)
		}
	}
}

func TestPreprocess_SizeMismatch(t *testing.T) {
	err := preprocess(make([]float32, 12), make([]byte, 5), 2)
	require.Error(t, err)

	err = preprocess(make([]float32, 5), make([]byte, 12), 2)
	require.Error(t, err)
}

func TestInterpret(t *testing.T) {
	cases := []struct {
		name      string
		logits    []float32
		class     int
		label     string
		shouldAct bool
	}{
		{"idle", []float32{5, 0, 0, 0}, 0, "none", false},
		{"great window", []float32{0.1, 6.0, 0.2, 0.3}, 1, "great", true},
		{"ante window", []float32{0, 0, 7, 0}, 2, "ante-great", true},
		{"overshoot", []float32{0, 0, 0, 9}, 3, "out", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pred := interpret(tc.logits)

			assert.Equal(t, tc.class, pred.Class)
			assert.Equal(t, tc.label, pred.Label)
			assert.Equal(t, tc.shouldAct, pred.ShouldAct)
			require.Len(t, pred.Probs, 4)
			assert.Greater(t, pred.Probs[tc.label], float32(0.9))
		})
	}
}

func TestLabelFor_OutOfRange(t *testing.T) {
	assert.Equal(t, "class 7", labelFor(7))
	assert.Equal(t, "class -1", labelFor(-1))
	assert.Equal(t, "out", labelFor(3))
}

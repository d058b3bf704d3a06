package engine

import (
	"math"
	"testing"

	"github.com/evokedlab/evoked/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// rampRecording returns two channels of linearly increasing samples at
// 10 Hz: channel 0 holds the sample index, channel 1 twice the index.
func rampRecording(numSamples int) *domain.Recording {
	data := make([][]float64, 2)
	for ch := range data {
		data[ch] = make([]float64, numSamples)
		for i := range data[ch] {
			data[ch][i] = float64(i) * float64(ch+1)
		}
	}
	return &domain.Recording{Data: data, SampleRate: 10}
}

func eventsAt(onsets ...float64) []domain.RawEvent {
	events := make([]domain.RawEvent, len(onsets))
	for i, onset := range onsets {
		events[i] = domain.RawEvent{Index: i, Onset: onset, Label: "stim"}
	}
	return events
}

func memberIndices(events []domain.RawEvent) []int {
	members := make([]int, len(events))
	for i := range events {
		members[i] = i
	}
	return members
}

func TestEpocher_AverageAndStd(t *testing.T) {
	rec := rampRecording(200)
	events := eventsAt(1.0, 3.0) // onset samples 10 and 30
	groups := []domain.ConditionGroup{{Label: "stim", Members: memberIndices(events)}}
	win := domain.Window{Start: -0.2, End: 0.3} // samples -2..+3 around onset

	summaries, err := NewEpocher(zap.NewNop()).Summarize(rec, events, groups, win)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "stim", s.EventType)
	assert.Equal(t, 2, s.NumEpochs)
	assert.Equal(t, 0, s.DroppedEpochs)

	// Trial windows are samples 8..13 and 28..33; their pointwise mean on
	// channel 0 is 18..23, channel 1 doubles it.
	wantAvg := [][]float64{
		{18, 19, 20, 21, 22, 23},
		{36, 38, 40, 42, 44, 46},
	}
	assert.Equal(t, wantAvg, s.AvgERP)

	// Sample std of {x, x+20} is 20/sqrt(2) at every point on channel 0.
	wantStd := 20 / math.Sqrt2
	for _, v := range s.StdERP[0] {
		assert.InDelta(t, wantStd, v, 1e-9)
	}

	require.Len(t, s.TimeVector, 6)
	assert.InDelta(t, -0.2, s.TimeVector[0], 1e-9)
	assert.InDelta(t, 0.3, s.TimeVector[5], 1e-9)
}

func TestEpocher_SNR(t *testing.T) {
	// One channel: 1 before the stimulus at t=1.0s, 3 after it. Baseline
	// power 1, signal power 9, so SNR is 10*log10(9) dB.
	data := make([]float64, 40)
	for i := range data {
		if i < 10 {
			data[i] = 1
		} else {
			data[i] = 3
		}
	}
	rec := &domain.Recording{Data: [][]float64{data}, SampleRate: 10}
	events := eventsAt(1.0)
	groups := []domain.ConditionGroup{{Label: "stim", Members: []int{0}}}

	summaries, err := NewEpocher(zap.NewNop()).Summarize(rec, events, groups, domain.Window{Start: -0.5, End: 0.5})
	require.NoError(t, err)

	assert.InDelta(t, 10*math.Log10(9), summaries[0].Metrics.MeanSNRdB, 1e-9)
	assert.Equal(t, 1, summaries[0].Metrics.GoodEpochs)
}

func TestEpocher_OutOfBoundsDropped(t *testing.T) {
	rec := rampRecording(100)
	// First onset too close to the start for a 200 ms baseline, third
	// beyond the end of the recording, fourth references no event.
	events := eventsAt(0.05, 5.0, 9.95)
	groups := []domain.ConditionGroup{{Label: "stim", Members: []int{0, 1, 2, 99}}}

	summaries, err := NewEpocher(zap.NewNop()).Summarize(rec, events, groups, domain.Window{Start: -0.2, End: 0.3})
	require.NoError(t, err)

	s := summaries[0]
	assert.Equal(t, 1, s.NumEpochs)
	assert.Equal(t, 3, s.DroppedEpochs)

	// Single surviving trial: std is identically zero.
	for _, channel := range s.StdERP {
		for _, v := range channel {
			assert.Zero(t, v)
		}
	}
}

func TestEpocher_EmptyGroupYieldsNaNSummary(t *testing.T) {
	rec := rampRecording(20)
	events := eventsAt(50.0) // far beyond the recording
	groups := []domain.ConditionGroup{{Label: "ghost", Members: []int{0}}}

	summaries, err := NewEpocher(zap.NewNop()).Summarize(rec, events, groups, domain.Window{Start: -0.2, End: 0.3})
	require.NoError(t, err)

	s := summaries[0]
	assert.Equal(t, 0, s.NumEpochs)
	assert.Equal(t, 1, s.DroppedEpochs)
	require.NotEmpty(t, s.AvgERP)
	for _, channel := range s.AvgERP {
		for _, v := range channel {
			assert.True(t, math.IsNaN(v), "AvgERP of an empty group must be NaN")
		}
	}
	assert.True(t, math.IsNaN(s.Metrics.MeanSNRdB))
	assert.True(t, math.IsNaN(s.Metrics.MeanP2PAmplitude))
}

func TestEpocher_ArtifactCounting(t *testing.T) {
	rec := rampRecording(200)
	// Inject a 500-unit spike into the second trial's window.
	rec.Data[0][31] = 500
	events := eventsAt(1.0, 3.0)
	groups := []domain.ConditionGroup{{Label: "stim", Members: memberIndices(events)}}

	epocher := NewEpocher(zap.NewNop())
	summaries, err := epocher.Summarize(rec, events, groups, domain.Window{Start: -0.2, End: 0.3})
	require.NoError(t, err)

	assert.Equal(t, 2, summaries[0].NumEpochs)
	assert.Equal(t, 1, summaries[0].Metrics.GoodEpochs)
}

func TestEpocher_InvalidWindow(t *testing.T) {
	rec := rampRecording(20)
	_, err := NewEpocher(zap.NewNop()).Summarize(rec, nil, nil, domain.Window{Start: 0.5, End: -0.5})
	require.Error(t, err)
}

// Summaries come back in group order no matter how the worker pool
// interleaves.
func TestEpocher_SummaryOrder(t *testing.T) {
	rec := rampRecording(1000)
	var events []domain.RawEvent
	var groups []domain.ConditionGroup
	for g := 0; g < 20; g++ {
		label := string(rune('A' + g))
		var members []int
		for i := 0; i < 5; i++ {
			idx := len(events)
			events = append(events, domain.RawEvent{Index: idx, Onset: float64(g*5+i+1) * 0.9, Label: label})
			members = append(members, idx)
		}
		groups = append(groups, domain.ConditionGroup{Label: label, Members: members})
	}

	summaries, err := NewEpocher(zap.NewNop()).Summarize(rec, events, groups, domain.Window{Start: -0.1, End: 0.1})
	require.NoError(t, err)
	require.Len(t, summaries, len(groups))
	for i, s := range summaries {
		assert.Equal(t, groups[i].Label, s.EventType)
	}
}

func TestWaveformFingerprint(t *testing.T) {
	// Channel mean is i+50 for i in 0..99; linear resampling preserves
	// the endpoints and monotonicity.
	avg := make([][]float64, 2)
	for ch := range avg {
		avg[ch] = make([]float64, 100)
		for i := range avg[ch] {
			avg[ch][i] = float64(i + 100*ch)
		}
	}

	fp := WaveformFingerprint(avg, FingerprintDim)
	require.Len(t, fp, FingerprintDim)
	assert.InDelta(t, 50, fp[0], 1e-6)
	assert.InDelta(t, 149, fp[FingerprintDim-1], 1e-6)
	for i := 1; i < len(fp); i++ {
		assert.GreaterOrEqual(t, fp[i], fp[i-1])
	}

	assert.Nil(t, WaveformFingerprint(nil, FingerprintDim))
	assert.Nil(t, WaveformFingerprint(avg, 0))
}

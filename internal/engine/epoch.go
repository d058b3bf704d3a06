package engine

import (
	"math"
	"sync"

	"github.com/evokedlab/evoked/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultArtifactThreshold is the peak-to-peak amplitude (in the
	// recording's physical units, typically microvolts) above which a
	// trial is counted as a bad epoch.
	DefaultArtifactThreshold = 200.0

	// DefaultEpochWorkers bounds the per-group worker pool.
	DefaultEpochWorkers = 4

	// FingerprintDim is the fixed length of the downsampled waveform
	// fingerprints stored for cross-run similarity lookup.
	FingerprintDim = 128
)

// Epocher extracts fixed-length windows around each event of a condition
// group and computes the per-condition average, standard deviation, and
// quality metrics. Groups are independent, so they are processed on a
// bounded worker pool; a malformed group never aborts the batch.
type Epocher struct {
	ArtifactThreshold float64
	Workers           int

	logger *zap.Logger
}

func NewEpocher(logger *zap.Logger) *Epocher {
	return &Epocher{
		ArtifactThreshold: DefaultArtifactThreshold,
		Workers:           DefaultEpochWorkers,
		logger:            logger,
	}
}

// Summarize computes one EpochSummary per condition group, in group order.
// Events are addressed by their Index field; onsets outside the recording
// bounds drop that trial but keep the group. A group whose trials all fall
// out of bounds yields NumEpochs 0 with NaN waveforms so callers can report
// "no data" explicitly.
func (e *Epocher) Summarize(rec *domain.Recording, events []domain.RawEvent, groups []domain.ConditionGroup, win domain.Window) ([]domain.EpochSummary, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}

	eventByIndex := make(map[int]domain.RawEvent, len(events))
	for _, ev := range events {
		eventByIndex[ev.Index] = ev
	}

	summaries := make([]domain.EpochSummary, len(groups))

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for gi := range jobs {
				summaries[gi] = e.summarizeGroup(rec, eventByIndex, &groups[gi], win)
			}
		}()
	}
	for gi := range groups {
		jobs <- gi
	}
	close(jobs)
	wg.Wait()

	return summaries, nil
}

func (e *Epocher) summarizeGroup(rec *domain.Recording, events map[int]domain.RawEvent, group *domain.ConditionGroup, win domain.Window) domain.EpochSummary {
	fs := rec.SampleRate
	startOffset := int(math.Round(win.Start * fs))
	numSamples := int(math.Round((win.End-win.Start)*fs)) + 1
	numChannels := rec.NumChannels()
	total := rec.NumSamples()

	timeVector := make([]float64, numSamples)
	for i := range timeVector {
		timeVector[i] = win.Start + float64(i)/fs
	}

	// Collect in-bounds trial windows as channels x samples slices.
	var trials [][][]float64
	dropped := 0
	for _, idx := range group.Members {
		ev, ok := events[idx]
		if !ok {
			dropped++
			continue
		}
		onset := int(math.Round(ev.Onset * fs))
		start := onset + startOffset
		if start < 0 || start+numSamples > total {
			dropped++
			continue
		}
		trial := make([][]float64, numChannels)
		for ch := 0; ch < numChannels; ch++ {
			trial[ch] = rec.Data[ch][start : start+numSamples]
		}
		trials = append(trials, trial)
	}

	summary := domain.EpochSummary{
		EventType:     group.Label,
		NumEpochs:     len(trials),
		DroppedEpochs: dropped,
		TimeVector:    timeVector,
	}

	if len(trials) == 0 {
		e.logger.Warn("condition group has no in-bounds epochs",
			zap.String("label", group.Label),
			zap.Int("members", group.Count()))
		summary.AvgERP = nanMatrix(numChannels, numSamples)
		summary.StdERP = nanMatrix(numChannels, numSamples)
		summary.Metrics = domain.EpochMetrics{MeanSNRdB: math.NaN(), MeanP2PAmplitude: math.NaN()}
		return summary
	}

	summary.AvgERP, summary.StdERP = averageTrials(trials, numChannels, numSamples)
	summary.Metrics = e.trialMetrics(trials, timeVector)
	return summary
}

// averageTrials computes the mean and sample standard deviation across
// trials for every channel/sample point.
func averageTrials(trials [][][]float64, numChannels, numSamples int) (avg, std [][]float64) {
	n := float64(len(trials))
	avg = make([][]float64, numChannels)
	std = make([][]float64, numChannels)
	for ch := 0; ch < numChannels; ch++ {
		avg[ch] = make([]float64, numSamples)
		std[ch] = make([]float64, numSamples)
		for s := 0; s < numSamples; s++ {
			var sum float64
			for _, trial := range trials {
				sum += trial[ch][s]
			}
			mean := sum / n
			avg[ch][s] = mean

			if len(trials) > 1 {
				var sq float64
				for _, trial := range trials {
					d := trial[ch][s] - mean
					sq += d * d
				}
				std[ch][s] = math.Sqrt(sq / (n - 1))
			}
		}
	}
	return avg, std
}

// trialMetrics aggregates per-trial peak-to-peak amplitude and SNR into
// group-level means. SNR compares post-onset signal power against the
// pre-onset baseline in dB; trials without a baseline segment or with zero
// baseline power contribute no SNR sample.
func (e *Epocher) trialMetrics(trials [][][]float64, timeVector []float64) domain.EpochMetrics {
	baselineEnd := 0
	for baselineEnd < len(timeVector) && timeVector[baselineEnd] < 0 {
		baselineEnd++
	}

	metrics := domain.EpochMetrics{NumEpochs: len(trials)}
	var p2pSum, snrSum float64
	snrCount := 0

	for _, trial := range trials {
		p2p := trialPeakToPeak(trial)
		p2pSum += p2p
		if p2p <= e.ArtifactThreshold {
			metrics.GoodEpochs++
		}

		if baselineEnd > 0 && baselineEnd < len(timeVector) {
			var basePow, sigPow float64
			for _, channel := range trial {
				basePow += segmentPower(channel[:baselineEnd])
				sigPow += segmentPower(channel[baselineEnd:])
			}
			if basePow > 0 {
				snrSum += 10 * math.Log10(sigPow/basePow)
				snrCount++
			}
		}
	}

	metrics.MeanP2PAmplitude = p2pSum / float64(len(trials))
	if snrCount > 0 {
		metrics.MeanSNRdB = snrSum / float64(snrCount)
	} else {
		metrics.MeanSNRdB = math.NaN()
	}
	return metrics
}

// trialPeakToPeak returns the per-channel max minus min, averaged across
// channels.
func trialPeakToPeak(trial [][]float64) float64 {
	var sum float64
	for _, channel := range trial {
		minV, maxV := channel[0], channel[0]
		for _, v := range channel[1:] {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		sum += maxV - minV
	}
	return sum / float64(len(trial))
}

// segmentPower is the mean squared amplitude of a window segment.
func segmentPower(segment []float64) float64 {
	if len(segment) == 0 {
		return 0
	}
	var sum float64
	for _, v := range segment {
		sum += v * v
	}
	return sum / float64(len(segment))
}

func nanMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for r := range m {
		m[r] = make([]float64, cols)
		for c := range m[r] {
			m[r][c] = math.NaN()
		}
	}
	return m
}

// WaveformFingerprint collapses an average ERP to a fixed-length vector:
// channels are averaged into one waveform, then linearly resampled to dim
// points. Used as the pgvector embedding for cross-run similarity lookup.
func WaveformFingerprint(avgERP [][]float64, dim int) []float32 {
	if len(avgERP) == 0 || len(avgERP[0]) == 0 || dim <= 0 {
		return nil
	}
	samples := len(avgERP[0])
	mean := make([]float64, samples)
	for s := 0; s < samples; s++ {
		var sum float64
		for _, channel := range avgERP {
			sum += channel[s]
		}
		mean[s] = sum / float64(len(avgERP))
	}

	fingerprint := make([]float32, dim)
	if samples == 1 {
		for i := range fingerprint {
			fingerprint[i] = float32(mean[0])
		}
		return fingerprint
	}
	for i := 0; i < dim; i++ {
		pos := float64(i) * float64(samples-1) / float64(dim-1)
		lo := int(pos)
		if lo >= samples-1 {
			fingerprint[i] = float32(mean[samples-1])
			continue
		}
		frac := pos - float64(lo)
		fingerprint[i] = float32(mean[lo]*(1-frac) + mean[lo+1]*frac)
	}
	return fingerprint
}

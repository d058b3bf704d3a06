package domain

import "fmt"

// ChannelLocation is one entry of the optional channel/location table. The
// engine carries it through for downstream visualization; it plays no part
// in the analysis itself.
type ChannelLocation struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// Recording is the cleaned multichannel time series from the preprocessing
// chain: Data[channel][sample], read-only to the engine.
type Recording struct {
	Data       [][]float64       `json:"data"`
	SampleRate float64           `json:"sample_rate"`
	Channels   []ChannelLocation `json:"channels,omitempty"`
}

func (r *Recording) NumChannels() int { return len(r.Data) }

func (r *Recording) NumSamples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// Window is the epoch extent in seconds relative to event onset. Start is
// typically negative (pre-stimulus baseline).
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (w Window) Validate() error {
	if w.End <= w.Start {
		return fmt.Errorf("epoch window end %g must be after start %g", w.End, w.Start)
	}
	return nil
}

// EpochMetrics aggregates trial-level quality measures for one condition
// group. GoodEpochs counts trials passing the peak-to-peak artifact
// rejection threshold.
type EpochMetrics struct {
	MeanSNRdB        float64 `json:"mean_snr_db"`
	MeanP2PAmplitude float64 `json:"mean_p2p_amplitude"`
	GoodEpochs       int     `json:"good_epochs"`
	NumEpochs        int     `json:"num_epochs"`
}

// EpochSummary is the averaged ERP for one condition group. AvgERP and
// StdERP are channels x samples and share shape with TimeVector's length.
// A group whose trials all fell out of recording bounds still yields a
// summary, with NumEpochs 0 and NaN waveforms.
type EpochSummary struct {
	EventType     string       `json:"event_type"`
	NumEpochs     int          `json:"num_epochs"`
	DroppedEpochs int          `json:"dropped_epochs"`
	TimeVector    []float64    `json:"time_vector"`
	AvgERP        [][]float64  `json:"avg_erp"`
	StdERP        [][]float64  `json:"std_erp"`
	Metrics       EpochMetrics `json:"metrics"`
}

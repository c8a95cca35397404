package worker

import "github.com/book-expert/events"

// GovernRequestedEvent asks the worker to govern a coefficient container held in the
// coefficient bucket. Audio lives in the audio bucket; the timing map and style file
// live next to the coefficients.
type GovernRequestedEvent struct {
	Header    events.EventHeader `json:"header"`
	CoeffKey  string             `json:"coeff_key"`
	AudioKey  string             `json:"audio_key,omitempty"`
	TimingKey string             `json:"timing_key,omitempty"`
	Style     string             `json:"style,omitempty"`
	StyleKey  string             `json:"style_key,omitempty"`
}

// CoeffsGovernedEvent is the reply to a GovernRequestedEvent. Error is set, and the
// other fields are empty, when no output was produced.
type CoeffsGovernedEvent struct {
	Header         events.EventHeader `json:"header"`
	CoeffKey       string             `json:"coeff_key,omitempty"`
	Governed       bool               `json:"governed"`
	Layout         string             `json:"layout,omitempty"`
	Frames         int                `json:"frames"`
	Dims           int                `json:"dims"`
	PauseFrames    int                `json:"pause_frames"`
	EmphasisFrames int                `json:"emphasis_frames"`
	Style          string             `json:"style,omitempty"`
	Error          string             `json:"error,omitempty"`
}

package voice

// Mode is the engine's conversational state. Listening and speaking are
// distinct modes of the same enum, so the two can never be true at once.
type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeListening  Mode = "listening"
	ModeProcessing Mode = "processing"
	ModeSpeaking   Mode = "speaking"
)

// State is a point-in-time snapshot of the engine, safe to hand to
// subscribers. The boolean accessors mirror the mode.
type State struct {
	Mode       Mode   `json:"mode"`
	AudioLevel int    `json:"audio_level"` // 0-100 input meter
	Error      string `json:"error,omitempty"`
}

func (s State) IsListening() bool  { return s.Mode == ModeListening }
func (s State) IsSpeaking() bool   { return s.Mode == ModeSpeaking }
func (s State) IsProcessing() bool { return s.Mode == ModeProcessing }

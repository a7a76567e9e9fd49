package protocol

import "time"

// RecognizeRequest asks the ASR service to transcribe an utterance.
type RecognizeRequest struct {
	SessionID string   `json:"session_id"`
	Frames    [][]byte `json:"frames"`
}

// RecognizeReply answers a RecognizeRequest. OK is false when no
// transcription is available; Text and Path are then empty.
type RecognizeReply struct {
	SessionID string `json:"session_id"`
	OK        bool   `json:"ok"`
	Text      string `json:"text,omitempty"`
	Path      string `json:"path,omitempty"`
}

// Transcript represents STT output broadcast on the bus.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	AudioPath string    `json:"audio_path"`
	Partial   bool      `json:"partial"`
	Timestamp time.Time `json:"timestamp"`
}

// EngineResult is one recognized item returned by an inference engine.
type EngineResult struct {
	Key  string `json:"key,omitempty"`
	Text string `json:"text"`
}

// EngineRequest is sent to a bus-attached inference engine.
type EngineRequest struct {
	Input            string            `json:"input"`
	Language         string            `json:"language"`
	UseITN           bool              `json:"use_itn"`
	BatchSizeSeconds int               `json:"batch_size_s"`
	Params           map[string]string `json:"params,omitempty"`
}

// EngineReply is the response of a bus-attached inference engine.
type EngineReply struct {
	Results []EngineResult `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// Capability describes something a node can serve.
type Capability struct {
	Name       string            `json:"name"`
	Tier       string            `json:"tier,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NodeAnnouncement is published once when a node joins the bus.
type NodeAnnouncement struct {
	NodeID       string       `json:"node_id"`
	Role         string       `json:"role"`
	Capabilities []Capability `json:"capabilities"`
	Timestamp    time.Time    `json:"timestamp"`
}

// NodeHeartbeat is published periodically on SubjectNodeHeartbeat.<id>.
type NodeHeartbeat struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectRecognize       = "asr.recognize"
	SubjectEngineGenerate  = "asr.engine.generate"
	SubjectTranscriptFinal = "stt.text.final"
	SubjectNodeAnnounce    = "asr.node.announce"
	SubjectNodeHeartbeat   = "asr.node.heartbeat"

	QueueASR = "asr"
)

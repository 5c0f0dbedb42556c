package domain

import "time"

// CompositeKind distinguishes multi-clip merges from single-clip captioning.
type CompositeKind string

const (
	CompositeMerge   CompositeKind = "merge"
	CompositeCaption CompositeKind = "caption"
)

// CompositeState is a node of the compositing state machine.
type CompositeState string

const (
	StateIdle        CompositeState = "idle"
	StateLoadingClip CompositeState = "loading_clip"
	StatePlaying     CompositeState = "playing"
	StateClipEnded   CompositeState = "clip_ended"
	StateFinalizing  CompositeState = "finalizing"
	StateDone        CompositeState = "done"
	StateCancelled   CompositeState = "cancelled"
	StateFailed      CompositeState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s CompositeState) Terminal() bool {
	switch s {
	case StateDone, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Active reports whether the job is consuming media or the recorder.
func (s CompositeState) Active() bool {
	switch s {
	case StateLoadingClip, StatePlaying, StateClipEnded, StateFinalizing:
		return true
	default:
		return false
	}
}

// ArtifactMIME is the container type produced by the recorder.
const ArtifactMIME = "video/x-msvideo"

// OutputArtifact is the single encoded result of a composite job.
type OutputArtifact struct {
	StorageKey   string        `json:"storage_key"`
	MIME         string        `json:"mime"`
	DownloadName string        `json:"download_name"`
	Bytes        int64         `json:"bytes"`
	Frames       int           `json:"frames"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Duration     time.Duration `json:"duration"`
}

// CompositeSnapshot is a point-in-time view of a composite job.
type CompositeSnapshot struct {
	ID           string          `json:"id"`
	Kind         CompositeKind   `json:"kind"`
	Surface      string          `json:"surface"`
	State        CompositeState  `json:"state"`
	Clips        []Clip          `json:"clips"`
	CurrentIndex int             `json:"current_index"`
	Progress     float64         `json:"progress"`
	Caption      *Caption        `json:"caption,omitempty"`
	Error        string          `json:"error,omitempty"`
	Artifact     *OutputArtifact `json:"artifact,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

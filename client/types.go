package client

import "github.com/famomatic/loomdl/internal/types"

type (
	AssetID            = types.AssetID
	AssetManifest      = types.AssetManifest
	StreamDescriptor   = types.StreamDescriptor
	StreamKind         = types.StreamKind
	SignedCredentials  = types.SignedCredentials
	TranscriptLocator  = types.TranscriptLocator
	SeekPreviewLocator = types.SeekPreviewLocator
	Progress           = types.Progress
)

const (
	StreamProgressive = types.StreamProgressive
	StreamSegmented   = types.StreamSegmented
)

// Event is a pipeline stage notification. Stage is one of "resolve",
// "side", "download" or "batch"; Phase is "start", "destination",
// "complete", "skip", "retry", "warning" or "failure".
type Event struct {
	Stage   string
	Phase   string
	AssetID AssetID
	Path    string
	Detail  string
}

// ProgressUpdate reports primary stream progress. Percent is -1 when the
// total size is unknown. Transfer is zero for segmented streams, whose
// progress comes from the remux tool.
type ProgressUpdate struct {
	AssetID  AssetID
	Path     string
	Percent  float64
	Transfer Progress
}

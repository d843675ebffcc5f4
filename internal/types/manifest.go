package types

import "fmt"

// AssetID is the canonical identifier of a shared video.
type AssetID string

// StreamKind selects the transfer strategy for a stream.
type StreamKind int

const (
	// StreamProgressive is a single directly addressable media file.
	StreamProgressive StreamKind = iota + 1
	// StreamSegmented is an HLS playlist that must be remuxed.
	StreamSegmented
)

func (k StreamKind) String() string {
	switch k {
	case StreamProgressive:
		return "progressive"
	case StreamSegmented:
		return "segmented"
	default:
		return "unknown"
	}
}

// SignedCredentials is a CloudFront signed-cookie triple.
type SignedCredentials struct {
	Policy    string
	Signature string
	KeyPairID string
}

// Valid reports whether all three parts are present.
func (c *SignedCredentials) Valid() bool {
	return c != nil && c.Policy != "" && c.Signature != "" && c.KeyPairID != ""
}

// StreamDescriptor locates the primary video stream.
type StreamDescriptor struct {
	Kind        StreamKind
	URL         string
	Credentials *SignedCredentials
}

// String never includes credential material.
func (d StreamDescriptor) String() string {
	return fmt.Sprintf("%s stream (signed=%t)", d.Kind, d.Credentials.Valid())
}

// TranscriptLocator holds optional transcript and caption URLs.
type TranscriptLocator struct {
	TranscriptURL string
	CaptionsURL   string
}

// Empty reports whether neither URL is known.
func (t TranscriptLocator) Empty() bool {
	return t.TranscriptURL == "" && t.CaptionsURL == ""
}

// SeekPreviewLocator holds the scrubber sprite image and its WebVTT timing track.
type SeekPreviewLocator struct {
	SpriteURL string
	VTTURL    string
}

// Complete reports whether both URLs are set.
func (s SeekPreviewLocator) Complete() bool {
	return s.SpriteURL != "" && s.VTTURL != ""
}

// AssetManifest is the result of a single resolution. It is not mutated after
// the resolver returns it.
type AssetManifest struct {
	ID              AssetID
	Title           string
	Stream          *StreamDescriptor
	Transcript      TranscriptLocator
	SeekPreview     SeekPreviewLocator
	ThumbnailURL    string
	ThumbnailGIFURL string
}

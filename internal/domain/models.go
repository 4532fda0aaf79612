package domain

import (
	"image"
	"time"
)

// Document is one input PDF. TotalPages counts its own pages, before any
// padding.
type Document struct {
	FilePath   string `json:"path"`
	TotalPages int    `json:"pages"`
}

// RasterImage is a single rendered page on disk. Image is optional; when nil
// the pixels are read from Path.
type RasterImage struct {
	PageIndex int    // zero-based
	Path      string // PNG file under the output directory
	Width     int
	Height    int
	Image     *image.RGBA `json:"-"`
}

// Compatible reports whether two rasters have exactly the same dimensions.
func (r RasterImage) Compatible(other RasterImage) bool {
	return r.Width == other.Width && r.Height == other.Height
}

// Rect is an axis-aligned box in page-local pixel coordinates (origin top-left).
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.Left + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Top + r.Height }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Union returns the smallest rectangle enclosing both r and o.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	left, top := min(r.Left, o.Left), min(r.Top, o.Top)
	right, bottom := max(r.Right(), o.Right()), max(r.Bottom(), o.Bottom())
	return Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// WordBox is a recognized word and its location on the page raster
type WordBox struct {
	Text       string  `json:"text"`
	Box        Rect    `json:"box"`
	Confidence float64 `json:"confidence"` // 0.0-1.0
	PageIndex  int     `json:"page_index"`
}

// DiffOp tags a diff span
type DiffOp string

const (
	DiffEqual  DiffOp = "equal"
	DiffInsert DiffOp = "insert"
	DiffDelete DiffOp = "delete"
)

// DiffSpan is one contiguous run of the text diff
type DiffSpan struct {
	Op        DiffOp `json:"op"`
	Text      string `json:"text"`
	Position  int    `json:"position"` // index in the original diff sequence
	Truncated bool   `json:"truncated,omitempty"`
}

// ChangeKind classifies a localized change
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
)

// ChangeRecord is a text change mapped to a pixel box
type ChangeRecord struct {
	PageIndex int        `json:"page_index"`
	Box       Rect       `json:"box"`
	Text      string     `json:"text"`
	Kind      ChangeKind `json:"kind"`
}

// AlignmentStrategy names the registration strategy that produced the aligned raster
type AlignmentStrategy string

const (
	AlignRegistered       AlignmentStrategy = "registered"
	AlignDimensionMatched AlignmentStrategy = "dimension-matched"
	AlignIdentity         AlignmentStrategy = "identity"
	AlignFailedCopy       AlignmentStrategy = "failed-copy"
)

// AlignmentResult records which alignment strategy fired
type AlignmentResult struct {
	Strategy AlignmentStrategy `json:"strategy"`
	Success  bool              `json:"success"`
	Inliers  int               `json:"inliers,omitempty"`
}

// TextSource names where a page's diff text came from
type TextSource string

const (
	TextSourceNative TextSource = "native"
	TextSourceOCR    TextSource = "ocr"
	TextSourceNone   TextSource = "none"
)

// PageText is the TextExtractor output for one page
type PageText struct {
	PageIndex  int        `json:"page_index"`
	Text       string     `json:"text"` // text forwarded to the differ
	Source     TextSource `json:"source"`
	NativeText string     `json:"-"`
	OCRText    string     `json:"-"`
	Words      []WordBox  `json:"words,omitempty"`
	OCREngine  string     `json:"ocr_engine,omitempty"`
}

// PixelDiffResult is the PixelDiffer output
type PixelDiffResult struct {
	ChangedPixels    int    // -1 when no count is available
	OverlayGenerated bool   // false when the fallback overlay was produced
	OverlayPath      string // PNG written under the output directory
	Overlay          *image.NRGBA
	Strategy         string
}

// PageResult is the write-once slot filled by a page worker
type PageResult struct {
	PageIndex    int
	Reference    RasterImage
	Aligned      RasterImage
	Alignment    AlignmentResult
	PixelDiff    PixelDiffResult
	RefText      PageText
	CmpText      PageText
	Spans        []DiffSpan // insert/delete only
	Changes      []ChangeRecord
	Lines        []LineChange
	Signals      []SignalChange
	Padded       bool // one side is a synthesized blank page
	Degradations []Degradation
}

// SignalChange is one approach-minima value that differs between revisions
type SignalChange struct {
	Key   string `json:"key"`
	Old   string `json:"old"`
	New   string `json:"new"`
	Delta string `json:"delta,omitempty"`
}

// LineChange is a line-level difference used for the summary listing
type LineChange struct {
	Line int    `json:"line"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

// PageSummary is the per-page record exposed by the Reporter
type PageSummary struct {
	PageIndex        int               `json:"page_index"`
	ChangedPixels    int               `json:"changed_pixels"`
	OverlayGenerated bool              `json:"overlay_generated"`
	TextChangeSpans  int               `json:"text_change_spans"`
	Inserts          int               `json:"inserts"`
	Deletes          int               `json:"deletes"`
	MappedBoxes      int               `json:"mapped_boxes"`
	Alignment        AlignmentStrategy `json:"alignment"`
	ReferenceText    TextSource        `json:"reference_text_source"`
	ComparisonText   TextSource        `json:"comparison_text_source"`
	Padded           bool              `json:"padded,omitempty"`
	OverlayPath      string            `json:"overlay_path,omitempty"`
	Degradations     []Degradation     `json:"degradations,omitempty"`
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventDegraded       EventType = "degraded"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// PageProgress is the payload of page_processing events
type PageProgress struct {
	Page  int `json:"page"` // 1-based
	Total int `json:"total"`
}

// ProcessingStats contains metadata about the comparison run
type ProcessingStats struct {
	TotalTime     time.Duration
	PagesCompared int
	PaddedPages   int
	DegradedPages int
}

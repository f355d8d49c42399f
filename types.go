// Package dl implements a parallel HTTP(S) file downloader: a HEAD probe
// discovers size and integrity metadata, a range planner tiles the file
// into segments, a bounded pool of piece fetchers retrieves each segment
// with a ranged GET and writes it to its offset in the target file, and
// an optional integrity checker verifies the result against an
// ETag-derived MD5 digest.
//
// The package is structured the way cognusion/go-rangetripper structures
// its own RangeTripper: small, single-purpose files, a Client interface
// so request-issuing components don't care whether they're talking to a
// plain *http.Client or a RetryingClient, and debug/timing loggers that
// discard by default.
package dl

import (
	"fmt"
	"time"
)

// Config is the caller-supplied, immutable configuration for a single
// download. It's built once (typically by the CLI's flag parsing) and
// consumed by Download.
type Config struct {
	// URI is the absolute HTTPS URL to fetch.
	URI string
	// Path is the local filesystem destination. Its parent directory
	// must already exist.
	Path string
	// Parallelism is the maximum number of concurrent ranged GETs. Must
	// be positive; callers typically default this to runtime.NumCPU().
	Parallelism int
}

// Metadata is what the prober learns from a HEAD request: the file's
// size and, if the server sent one, its ETag with surrounding quotes
// stripped.
type Metadata struct {
	Size int64
	ETag string // empty means absent
}

// Segment is a contiguous, half-open byte range [Offset, Offset+Length)
// assigned to one piece fetcher.
type Segment struct {
	Offset int64
	Length int64
}

// End returns the segment's exclusive upper bound.
func (s Segment) End() int64 {
	return s.Offset + s.Length
}

// rangeHeader renders the segment as an HTTP Range header value, e.g.
// "bytes=0-4095" for offset 0, length 4096.
func (s Segment) rangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", s.Offset, s.End()-1)
}

// PieceResult pairs a segment with the error its fetch produced, if any.
// The scheduler does not use it: a piece fetch returns a plain error,
// which the scheduler wraps in a SegmentError.
type PieceResult struct {
	Segment Segment
	Err     error
}

// IntegrityResult is the outcome of the integrity checker: whether the
// downloaded file's MD5 matched the prober's ETag.
type IntegrityResult struct {
	Path  string
	ETag  string
	Valid bool
	// Err is non-nil when verification could not be performed at all —
	// ErrEtagAbsent, or an I/O failure reading the file back. A
	// mismatch is reported via Valid=false with Err=nil.
	Err error
}

// State names the orchestrator's pipeline stages, per spec.md §4.7.
type State int

const (
	StateInit State = iota
	StateProbing
	StateDownloading
	StateVerifying
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateProbing:
		return "PROBING"
	case StateDownloading:
		return "DOWNLOADING"
	case StateVerifying:
		return "VERIFYING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Result is the terminal, successful outcome of a Download call.
type Result struct {
	Metadata  Metadata
	Integrity IntegrityResult
	Elapsed   time.Duration
}

package dl

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cognusion/go-timings"
)

// prober issues the preliminary HEAD request spec.md §4.2 describes and
// turns the response into a Metadata record or a typed error. It holds
// nothing but a Client and loggers, the same shape as the pieces of
// cognusion-go-rangetripper's RangeTripper that issue the HEAD.
type prober struct {
	client     Client
	debugOut   *log.Logger
	timingsOut *log.Logger
}

func newProber(client Client, debugOut, timingsOut *log.Logger) *prober {
	return &prober{client: client, debugOut: debugOut, timingsOut: timingsOut}
}

// probe sends a HEAD request for uri and returns Metadata if the server
// advertises byte-range support, or one of the typed errors from
// errors.go otherwise.
func (p *prober) probe(uri, dlid string) (Metadata, error) {
	defer timings.Track(fmt.Sprintf("[%s] probe", dlid), time.Now(), p.timingsOut)

	req, err := http.NewRequest(http.MethodHead, uri, nil)
	if err != nil {
		return Metadata{}, &BuildRequestError{Method: http.MethodHead, URL: uri, Err: err}
	}

	res, err := p.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("HEAD %s: %w", uri, err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if !isSuccessOrRedirect(res.StatusCode) {
		return Metadata{}, &BadStatusError{Method: http.MethodHead, URL: uri, Status: res.StatusCode}
	}

	if res.Header.Get("Accept-Ranges") != "bytes" {
		p.debugOut.Printf("[%s] Accept-Ranges absent or non-bytes: %q\n", dlid, res.Header.Get("Accept-Ranges"))
		return Metadata{}, ErrRangeMetadataAbsent
	}

	size, err := parseContentLength(res.Header.Get("Content-Length"))
	if err != nil {
		return Metadata{}, err
	}

	p.debugOut.Printf("[%s] probed %s: size=%d etag=%q\n", dlid, uri, size, res.Header.Get("ETag"))

	return Metadata{
		Size: size,
		ETag: parseETag(res.Header.Get("ETag")),
	}, nil
}

// parseContentLength parses the raw Content-Length header value. An
// empty or malformed value, or a negative count, is ErrParseContentLength
// per spec.md §4.2.
func parseContentLength(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrParseContentLength
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrParseContentLength
	}
	return n, nil
}

// parseETag strips at most one leading and one trailing double quote,
// preserving the interior verbatim, per spec.md §4.2 and §6. Weak
// validators ("W/\"...\"") are left untouched beyond quote-stripping,
// same as the Rust original's naive s[1..s.len()-1] slice.
func parseETag(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

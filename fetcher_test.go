package dl

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func Test_PieceFetcher(t *testing.T) {
	Convey("Given a server that honors Range requests", t, func() {
		body := []byte("0123456789")
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			rw.Header().Set("Accept-Ranges", "bytes")
			http.ServeContent(rw, req, "", time.Time{}, bytes.NewReader(body))
		}))
		defer server.Close()

		tfile, err := ioutil.TempFile("", "fetcher")
		So(err, ShouldBeNil)
		defer os.Remove(tfile.Name())
		So(tfile.Truncate(int64(len(body))), ShouldBeNil)
		tfile.Close()

		f := newPieceFetcher(http.DefaultClient, server.URL, tfile.Name(), discardLogger(), discardLogger())

		Convey("fetch writes the requested range at its offset", func() {
			err := f.fetch(Segment{Offset: 3, Length: 3}, "test")
			So(err, ShouldBeNil)

			got, rerr := ioutil.ReadFile(tfile.Name())
			So(rerr, ShouldBeNil)
			So(string(got[3:6]), ShouldEqual, "345")
		})

		Convey("Two disjoint segments can be written without clobbering each other", func() {
			So(f.fetch(Segment{Offset: 0, Length: 4}, "test"), ShouldBeNil)
			So(f.fetch(Segment{Offset: 4, Length: 6}, "test"), ShouldBeNil)

			got, rerr := ioutil.ReadFile(tfile.Name())
			So(rerr, ShouldBeNil)
			So(string(got), ShouldEqual, string(body))
		})
	})

	Convey("Given a server that returns a non-success, non-partial status", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			rw.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		tfile, err := ioutil.TempFile("", "fetcher-bad")
		So(err, ShouldBeNil)
		defer os.Remove(tfile.Name())
		tfile.Close()

		f := newPieceFetcher(http.DefaultClient, server.URL, tfile.Name(), discardLogger(), discardLogger())

		Convey("fetch returns a BadStatusError", func() {
			err := f.fetch(Segment{Offset: 0, Length: 1}, "test")
			bse, ok := err.(*BadStatusError)
			So(ok, ShouldBeTrue)
			So(bse.Status, ShouldEqual, http.StatusForbidden)
		})
	})
}

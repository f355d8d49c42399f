package dl

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func Test_Scheduler(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("Given a server that honors Range requests", t, func() {
		body := []byte("the quick brown fox jumps over")
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			rw.Header().Set("Accept-Ranges", "bytes")
			http.ServeContent(rw, req, "", time.Time{}, bytes.NewReader(body))
		}))
		defer server.Close()

		tfile, err := ioutil.TempFile("", "scheduler")
		So(err, ShouldBeNil)
		defer os.Remove(tfile.Name())
		So(tfile.Truncate(int64(len(body))), ShouldBeNil)
		tfile.Close()

		fetcher := newPieceFetcher(http.DefaultClient, server.URL, tfile.Name(), discardLogger(), discardLogger())
		segments := planSegments(int64(len(body)), 4, DivisorPieceSizer)

		Convey("run fetches every segment, bounded by parallelism, with no error", func() {
			progress := make(chan int64, len(segments))
			sched := newScheduler(fetcher, 2, progress, discardLogger(), discardLogger())

			err := sched.run(context.Background(), segments, "test")
			So(err, ShouldBeNil)
			close(progress)

			var total int64
			for n := range progress {
				total += n
			}
			So(total, ShouldEqual, len(body))

			got, rerr := ioutil.ReadFile(tfile.Name())
			So(rerr, ShouldBeNil)
			So(string(got), ShouldEqual, string(body))
		})

		Convey("An empty segment slice is a no-op", func() {
			sched := newScheduler(fetcher, 2, nil, discardLogger(), discardLogger())
			So(sched.run(context.Background(), nil, "test"), ShouldBeNil)
		})
	})

	Convey("Given a server that always fails", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			rw.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		tfile, err := ioutil.TempFile("", "scheduler-fail")
		So(err, ShouldBeNil)
		defer os.Remove(tfile.Name())
		So(tfile.Truncate(20), ShouldBeNil)
		tfile.Close()

		fetcher := newPieceFetcher(http.DefaultClient, server.URL, tfile.Name(), discardLogger(), discardLogger())
		segments := planSegments(20, 4, DivisorPieceSizer)

		Convey("run returns the first SegmentError and stops dispatching new work", func() {
			sched := newScheduler(fetcher, 2, nil, discardLogger(), discardLogger())
			err := sched.run(context.Background(), segments, "test")
			So(err, ShouldNotBeNil)
			_, ok := err.(*SegmentError)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given a server that blocks until released, instrumented to count concurrent requests", t, func() {
		const parallelism = 3

		var (
			inFlight int32
			maxSeen  int32
			mu       sync.Mutex
			release  = make(chan struct{})
		)
		body := bytes.Repeat([]byte("x"), 300)

		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			n := atomic.AddInt32(&inFlight, 1)
			mu.Lock()
			if n > maxSeen {
				maxSeen = n
			}
			mu.Unlock()
			<-release
			atomic.AddInt32(&inFlight, -1)
			rw.Header().Set("Accept-Ranges", "bytes")
			http.ServeContent(rw, req, "", time.Time{}, bytes.NewReader(body))
		}))
		defer server.Close()

		tfile, err := ioutil.TempFile("", "scheduler-bound")
		So(err, ShouldBeNil)
		defer os.Remove(tfile.Name())
		So(tfile.Truncate(int64(len(body))), ShouldBeNil)
		tfile.Close()

		fetcher := newPieceFetcher(http.DefaultClient, server.URL, tfile.Name(), discardLogger(), discardLogger())
		segments := planSegments(int64(len(body)), 10, DivisorPieceSizer)
		sched := newScheduler(fetcher, parallelism, nil, discardLogger(), discardLogger())

		done := make(chan error, 1)
		go func() { done <- sched.run(context.Background(), segments, "test") }()

		// Let the pool saturate, then release everything at once.
		time.Sleep(50 * time.Millisecond)
		close(release)

		Convey("The observed maximum in-flight request count never exceeds parallelism", func() {
			So(<-done, ShouldBeNil)
			mu.Lock()
			defer mu.Unlock()
			So(maxSeen, ShouldBeLessThanOrEqualTo, int32(parallelism))
		})
	})
}

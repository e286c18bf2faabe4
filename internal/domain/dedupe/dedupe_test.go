package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/asamblea/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it should start empty", func() {
			So(d, ShouldNotBeNil)
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a submission id is new", func() {
			seen := d.SeenAndRecord(ctx, "sub-1")

			Convey("Then it should be recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same submission is retried", func() {
			d.SeenAndRecord(ctx, "sub-1")
			seen := d.SeenAndRecord(ctx, "sub-1")

			Convey("Then it should be reported as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a submission is unrecorded", func() {
			d.SeenAndRecord(ctx, "sub-1")
			d.Unrecord(ctx, "sub-1")

			Convey("Then it can be accepted again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "sub-1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown id is unrecorded", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("sub-%d", i))
		}

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord(ctx, "sub-4"), ShouldBeFalse)

			Convey("Then the oldest id should be forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "sub-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "sub-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "sub-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "sub-1"), ShouldBeFalse)
			})
		})

		Convey("When a middle id is unrecorded", func() {
			d.Unrecord(ctx, "sub-2")
			d.SeenAndRecord(ctx, "sub-4")

			Convey("Then no other id should be evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "sub-1"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 20000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("sub-%d", i))
		}

		Convey("Then every id should be kept", func() {
			So(d.Size(), ShouldEqual, 20000)
			So(d.SeenAndRecord(ctx, "sub-0"), ShouldBeTrue)
		})
	})

	Convey("Given concurrent submitters", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("sub-%d", i)) {
						mu.Lock()
						accepted++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id should be accepted exactly once", func() {
			So(accepted, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}

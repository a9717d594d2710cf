package dedupe_test

import (
	"context"
	"fmt"
	"testing"

	dedupe "github.com/okian/callscore/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSeenAndRecord(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When an ID is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "req-1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a repeat is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "req-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When distinct IDs are recorded", func() {
			So(d.SeenAndRecord(ctx, "req-a"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "req-b"), ShouldBeFalse)

			Convey("Then the size tracks each of them", func() {
				So(d.Size(), ShouldEqual, 2)
			})
		})
	})
}

func TestUnrecord(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deduper with a recorded ID", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.SeenAndRecord(ctx, "req-1"), ShouldBeFalse)

		Convey("When the ID is unrecorded", func() {
			d.Unrecord(ctx, "req-1")

			Convey("Then it can be recorded again as new", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "req-1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown ID is unrecorded", func() {
			d.Unrecord(ctx, "req-never-seen")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}

func TestEviction(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deduper bounded to three IDs", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 0; i < 3; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("req-%d", i)), ShouldBeFalse)
		}

		Convey("When a fourth ID arrives", func() {
			So(d.SeenAndRecord(ctx, "req-3"), ShouldBeFalse)

			Convey("Then the oldest ID was evicted and the rest remain", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "req-0"), ShouldBeFalse) // evicted, so new again
				So(d.SeenAndRecord(ctx, "req-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "req-3"), ShouldBeTrue)
			})
		})
	})
}

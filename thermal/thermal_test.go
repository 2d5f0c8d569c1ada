package thermal

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestSourceConfigValidate(t *testing.T) {
	cfg := SourceConfig{}
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
	cfg = SourceConfig{Interval: 100 * time.Millisecond}
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestSourceNoFrameBeforeCapture(t *testing.T) {
	capt := NewStaticCapturer(8, 8)
	src, err := NewSource(capt, SourceConfig{Interval: 100 * time.Millisecond}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, ok := src.LatestFrame()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSourcePublishesCompleteFrames(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	capt := NewStaticCapturer(8, 8)
	capt.Fill(21)
	capt.SetCell(3, 5, 37)

	src, err := NewSourceWithClock(capt, SourceConfig{Interval: 100 * time.Millisecond}, mock, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, src.CaptureOnce(ctx), test.ShouldBeNil)
	frame, ok := src.LatestFrame()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.Width, test.ShouldEqual, 8)
	test.That(t, frame.Height, test.ShouldEqual, 8)
	test.That(t, frame.At(3, 5), test.ShouldEqual, 37)
	test.That(t, frame.At(0, 0), test.ShouldEqual, 21)
	test.That(t, frame.CapturedAt, test.ShouldEqual, mock.Now())

	mock.Add(250 * time.Millisecond)
	test.That(t, frame.AgeAt(mock.Now()), test.ShouldEqual, 250*time.Millisecond)
}

func TestSourceFrameSurvivesNextCapture(t *testing.T) {
	ctx := context.Background()
	capt := NewStaticCapturer(4, 4)
	capt.Fill(20)
	src, err := NewSource(capt, SourceConfig{Interval: 100 * time.Millisecond}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, src.CaptureOnce(ctx), test.ShouldBeNil)
	held, ok := src.LatestFrame()
	test.That(t, ok, test.ShouldBeTrue)

	// The next capture lands in the spare buffer; the held frame must not
	// change underneath its holder.
	capt.Fill(99)
	test.That(t, src.CaptureOnce(ctx), test.ShouldBeNil)
	test.That(t, held.At(0, 0), test.ShouldEqual, 20)

	fresh, ok := src.LatestFrame()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, fresh.At(0, 0), test.ShouldEqual, 99)
}

func TestSourceKeepsOldFrameOnCaptureError(t *testing.T) {
	ctx := context.Background()
	capt := NewStaticCapturer(4, 4)
	capt.Fill(25)
	src, err := NewSource(capt, SourceConfig{Interval: 100 * time.Millisecond}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, src.CaptureOnce(ctx), test.ShouldBeNil)

	capt.SetErr(errors.New("sensor nack"))
	err = src.CaptureOnce(ctx)
	test.That(t, err, test.ShouldNotBeNil)

	frame, ok := src.LatestFrame()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.At(0, 0), test.ShouldEqual, 25)
}

func TestSourceBackgroundCapture(t *testing.T) {
	mock := clock.NewMock()
	capt := NewStaticCapturer(4, 4)
	capt.Fill(33)
	src, err := NewSourceWithClock(capt, SourceConfig{Interval: 100 * time.Millisecond}, mock, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	src.Start()
	// Let the worker park on the ticker before advancing simulated time.
	time.Sleep(50 * time.Millisecond)
	mock.Add(100 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := src.LatestFrame(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no frame captured in the background")
		}
		time.Sleep(time.Millisecond)
	}
	frame, _ := src.LatestFrame()
	test.That(t, frame.At(0, 0), test.ShouldEqual, 33)
	test.That(t, src.Close(), test.ShouldBeNil)
}

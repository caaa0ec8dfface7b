package capture

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// slowStrategy blocks in Start until release is closed
type slowStrategy struct {
	starting chan struct{}
	release  chan struct{}
}

func (s *slowStrategy) Kind() Kind {
	return KindStreaming
}

func (s *slowStrategy) Start(ctx context.Context, cb Callbacks) *Handle {
	close(s.starting)
	<-s.release
	return newHandle(KindStreaming, cb)
}

func (s *slowStrategy) Stop(h *Handle) {
	h.stop()
}

var _ = Describe("DefaultKind", func() {
	streaming := KindStreaming
	still := KindStillImage
	manual := KindManual

	DescribeTable("policy",
		func(report CaptureReport, choice *Kind, expected Kind, notice bool) {
			kind, msg := DefaultKind(report, choice)
			Expect(kind).To(Equal(expected))
			Expect(msg != "").To(Equal(notice))
		},
		Entry("streams when capable", NewCaptureReport(true, true, false), nil, KindStreaming, false),
		Entry("uploads a photo when not capable", NewCaptureReport(false, true, false), nil, KindStillImage, false),
		Entry("uploads a photo without a camera", NewCaptureReport(true, false, false), nil, KindStillImage, false),
		Entry("honours a still-image override", NewCaptureReport(true, true, false), &still, KindStillImage, false),
		Entry("honours a manual override when capable", NewCaptureReport(true, true, false), &manual, KindManual, false),
		Entry("honours a manual override when not capable", CaptureReport{}, &manual, KindManual, false),
		Entry("refuses a streaming override when not capable", NewCaptureReport(false, true, false), &streaming, KindStillImage, true),
	)
})

var _ = Describe("Selector", func() {
	var (
		log      *eventLog
		streams  []*fakeStream
		rec      *recorder
		selector *Selector
		report   CaptureReport
	)

	BeforeEach(func() {
		log = &eventLog{}
		streams = nil
		rec = &recorder{}
		report = NewCaptureReport(true, true, false)

		acquire := Acquirer{Name: "camera", Acquire: func(context.Context) (Stream, error) {
			s := &fakeStream{id: len(streams) + 1, log: log}
			streams = append(streams, s)
			log.add("open-%d", s.id)
			return s, nil
		}}
		selector = NewSelector(rec.callbacks(),
			NewStreamingCaptureWithInterval(&fakeDecoder{}, time.Millisecond, acquire),
			NewStillImageCapture(&fakeDecoder{}),
		)
	})

	AfterEach(func() {
		selector.Close()
	})

	Describe("Select", func() {
		It("starts streaming for a capable device", func() {
			active, err := selector.Select(context.Background(), report, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Kind()).To(Equal(KindStreaming))
			Expect(active.Handle.Active()).To(BeTrue())
		})

		It("starts still-image capture for an insecure device", func() {
			active, err := selector.Select(context.Background(), CaptureReport{HasCameraDevice: true}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Kind()).To(Equal(KindStillImage))
			Expect(streams).To(BeEmpty())
		})

		It("explains a refused streaming choice", func() {
			choice := KindStreaming
			active, err := selector.Select(context.Background(), CaptureReport{}, &choice)
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Kind()).To(Equal(KindStillImage))
			Expect(rec.Diagnostics()).To(HaveLen(1))
		})

		It("falls back to still-image when no camera strategy is configured", func() {
			selector = NewSelector(rec.callbacks(), NewStillImageCapture(&fakeDecoder{}))
			active, err := selector.Select(context.Background(), report, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Kind()).To(Equal(KindStillImage))
		})
	})

	Describe("Available", func() {
		It("always offers manual entry", func() {
			selector.Select(context.Background(), CaptureReport{}, nil)
			Expect(selector.Available()).To(Equal([]Kind{KindStillImage, KindManual}))
		})

		It("offers streaming only when capable", func() {
			selector.Select(context.Background(), report, nil)
			Expect(selector.Available()).To(Equal([]Kind{KindStreaming, KindStillImage, KindManual}))
		})
	})

	Describe("Switch", func() {
		BeforeEach(func() {
			_, err := selector.Select(context.Background(), report, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("releases the camera before starting the next strategy", func() {
			first := selector.Active().Handle
			_, err := selector.Switch(context.Background(), KindManual)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Active()).To(BeFalse())
			Expect(streams[0].closes.Load()).To(Equal(int32(1)))
			Expect(selector.Active().Kind()).To(Equal(KindManual))
		})

		It("never holds two cameras across many switches", func() {
			kinds := []Kind{KindStillImage, KindStreaming, KindManual, KindStreaming, KindStreaming, KindStillImage, KindStreaming}
			for _, k := range kinds {
				_, err := selector.Switch(context.Background(), k)
				Expect(err).NotTo(HaveOccurred())
			}
			selector.Close()

			// 1 stream from Select plus one per streaming switch
			Expect(streams).To(HaveLen(5))
			for _, s := range streams {
				Expect(s.closes.Load()).To(Equal(int32(1)))
			}

			var expected []string
			for i := 1; i <= 5; i++ {
				expected = append(expected, fmt.Sprintf("open-%d", i), fmt.Sprintf("close-%d", i))
			}
			Expect(log.all()).To(Equal(expected))
		})

		It("refuses streaming on an incapable device", func() {
			_, err := selector.Select(context.Background(), CaptureReport{}, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = selector.Switch(context.Background(), KindStreaming)
			Expect(err).To(MatchError(ErrStreamingUnavailable))
			Expect(selector.Active().Kind()).To(Equal(KindStillImage))
		})

		It("refuses unknown strategies and keeps the active one", func() {
			_, err := selector.Switch(context.Background(), Kind("hologram"))
			Expect(err).To(MatchError(ErrStrategyUnavailable))
			Expect(selector.Active().Kind()).To(Equal(KindStreaming))
		})
	})

	Describe("a slow strategy start", func() {
		var slow *slowStrategy

		BeforeEach(func() {
			slow = &slowStrategy{starting: make(chan struct{}), release: make(chan struct{})}
			selector = NewSelector(rec.callbacks(), slow, NewStillImageCapture(&fakeDecoder{}))
		})

		It("does not block readers while the camera opens", func() {
			done := make(chan ActiveStrategy, 1)
			go func() {
				defer GinkgoRecover()
				active, err := selector.Select(context.Background(), report, nil)
				Expect(err).NotTo(HaveOccurred())
				done <- active
			}()
			Eventually(slow.starting).Should(BeClosed())

			Expect(selector.Report()).To(Equal(report))
			Expect(selector.Available()).To(ContainElement(KindStreaming))
			Expect(selector.Active().Strategy).To(BeNil())

			close(slow.release)
			var active ActiveStrategy
			Eventually(done).Should(Receive(&active))
			Expect(active.Kind()).To(Equal(KindStreaming))
			Expect(selector.Active().Kind()).To(Equal(KindStreaming))
		})
	})

	Describe("Close", func() {
		It("stops the active strategy", func() {
			active, _ := selector.Select(context.Background(), report, nil)
			selector.Close()
			Expect(active.Handle.Active()).To(BeFalse())
			Expect(streams[0].closes.Load()).To(Equal(int32(1)))
			Expect(selector.Active().Strategy).To(BeNil())
		})
	})
})

var _ = Describe("ParseKind", func() {
	It("accepts the three strategies", func() {
		for _, s := range []string{"streaming", "still-image", "manual"} {
			k, err := ParseKind(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(k)).To(Equal(s))
		}
	})

	It("rejects anything else", func() {
		_, err := ParseKind("bluetooth")
		Expect(err).To(HaveOccurred())
	})
})

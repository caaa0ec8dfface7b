package checkin

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yoshuavic8/church-checkin/internal/capture"
)

var _ = Describe("Station", func() {
	var (
		recorder *mockRecorder
		clock    *fixedTimeSource
		station  *Station
	)

	BeforeEach(func() {
		recorder = newMockRecorder()
		clock = &fixedTimeSource{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
		station = newStation("station-1", &stubDecoder{}, recorder, uuid.Nil, clock, time.Millisecond)
		Expect(station.Select(capture.NewCaptureReport(false, false, false), nil)).To(Succeed())
	})

	AfterEach(func() {
		station.Close()
	})

	It("should keep the most recent diagnostics", func() {
		for i := 1; i <= maxDiagnostics+5; i++ {
			station.addDiagnostic(fmt.Sprintf("message %d", i))
		}
		diagnostics := station.View().Diagnostics
		Expect(diagnostics).To(HaveLen(maxDiagnostics))
		Expect(diagnostics[0].Message).To(Equal("message 6"))
		Expect(diagnostics[maxDiagnostics-1].Message).To(Equal(fmt.Sprintf("message %d", maxDiagnostics+5)))
	})

	It("should reject meeting codes until a member is known", func() {
		Expect(station.SwitchStrategy(capture.KindManual)).To(Succeed())
		Expect(station.EnterCode("MEETING_ID:123e4567-e89b-12d3-a456-426614174000")).To(Succeed())
		Expect(station.Outcome().State).To(Equal(StateRejected))
		Expect(recorder.Calls()).To(BeEmpty())
	})

	It("should check in the member stored on the station", func() {
		first := uuid.MustParse("5f0c7a2e-1b3d-4e5f-9a8b-7c6d5e4f3a2b")
		second := uuid.MustParse("9b2e4c1a-5d6f-4a3b-8c7d-0e1f2a3b4c5d")
		meeting := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
		Expect(station.SwitchStrategy(capture.KindManual)).To(Succeed())

		station.SetSubject(first)
		station.SetSubject(uuid.Nil)
		Expect(station.EnterCode("MEETING_ID:" + meeting.String())).To(Succeed())
		Expect(station.Outcome().State).To(Equal(StateSuccess))

		Expect(station.Reset()).To(Succeed())
		station.SetSubject(second)
		Expect(station.EnterCode("MEETING_ID:" + meeting.String())).To(Succeed())

		Expect(recorder.Calls()).To(Equal([]recordCall{
			{sessionID: meeting, subjectID: first},
			{sessionID: meeting, subjectID: second},
		}))
	})

	It("should record a busy diagnostic when a payload arrives after a result", func() {
		station.SetSubject(uuid.MustParse("5f0c7a2e-1b3d-4e5f-9a8b-7c6d5e4f3a2b"))
		station.handlePayload("MEETING_ID:123e4567-e89b-12d3-a456-426614174000")
		station.handlePayload("MEETING_ID:123e4567-e89b-12d3-a456-426614174000")

		Expect(recorder.Calls()).To(HaveLen(1))
		Expect(station.View().Diagnostics).To(ContainElement(HaveField("Message", ContainSubstring("Reset the scanner"))))
	})

	It("should stop the running strategy on close", func() {
		station.Close()
		Expect(station.View().Running).To(BeFalse())
		Expect(station.View().Strategy).To(BeEmpty())
	})
})

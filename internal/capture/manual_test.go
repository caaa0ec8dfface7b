package capture

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ManualEntry", func() {
	var (
		rec      *recorder
		strategy *ManualEntry
		handle   *Handle
	)

	BeforeEach(func() {
		rec = &recorder{}
		strategy = NewManualEntry()
		handle = strategy.Start(context.Background(), rec.callbacks())
	})

	AfterEach(func() {
		strategy.Stop(handle)
	})

	DescribeTable("accepted codes",
		func(text, expected string) {
			payload, ok := strategy.Enter(handle, text)
			Expect(ok).To(BeTrue())
			Expect(payload).To(Equal(expected))
			Expect(rec.Payloads()).To(Equal([]string{expected}))
			Expect(rec.Diagnostics()).To(BeEmpty())
		},
		Entry("bare UUID", "123e4567-e89b-12d3-a456-426614174000", "123e4567-e89b-12d3-a456-426614174000"),
		Entry("uppercase UUID", "123E4567-E89B-12D3-A456-426614174000", "123E4567-E89B-12D3-A456-426614174000"),
		Entry("surrounding whitespace", "  123e4567-e89b-12d3-a456-426614174000\n", "123e4567-e89b-12d3-a456-426614174000"),
		Entry("meeting prefix", "MEETING_ID:123e4567-e89b-12d3-a456-426614174000", "MEETING_ID:123e4567-e89b-12d3-a456-426614174000"),
	)

	DescribeTable("rejected codes",
		func(text string) {
			_, ok := strategy.Enter(handle, text)
			Expect(ok).To(BeFalse())
			Expect(rec.Payloads()).To(BeEmpty())
			Expect(rec.Diagnostics()).To(Equal([]string{InvalidCodeMessage}))
		},
		Entry("short number", "12345"),
		Entry("empty", ""),
		Entry("UUID without dashes", "123e4567e89b12d3a456426614174000"),
		Entry("braced UUID", "{123e4567-e89b-12d3-a456-426614174000}"),
		Entry("non-hex characters", "123e4567-e89b-12d3-a456-42661417400z"),
		Entry("lowercase prefix", "meeting_id:123e4567-e89b-12d3-a456-426614174000"),
		Entry("member payload", "MEMBER_CHECKIN:123e4567-e89b-12d3-a456-426614174000:GENERAL"),
	)

	It("does nothing once stopped", func() {
		strategy.Stop(handle)
		_, ok := strategy.Enter(handle, "123e4567-e89b-12d3-a456-426614174000")
		Expect(ok).To(BeFalse())
		Expect(rec.Payloads()).To(BeEmpty())
	})
})

var _ = Describe("ValidManualCode", func() {
	DescribeTable("classification",
		func(text string, valid bool) {
			Expect(ValidManualCode(text)).To(Equal(valid))
		},
		Entry("bare UUID", "123e4567-e89b-12d3-a456-426614174000", true),
		Entry("meeting prefix", "MEETING_ID:123e4567-e89b-12d3-a456-426614174000", true),
		Entry("padded UUID", " 123e4567-e89b-12d3-a456-426614174000 ", true),
		Entry("digits", "12345", false),
		Entry("lowercase prefix", "meeting_id:123e4567-e89b-12d3-a456-426614174000", false),
		Entry("member card", "MEMBER_CHECKIN:5f0c7a2e-1b3d-4e5f-9a8b-7c6d5e4f3a2b:GENERAL", false),
	)
})

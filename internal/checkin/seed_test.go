package checkin

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Seed", func() {
	Describe("ParseSeed", func() {
		It("should parse sessions", func() {
			sessions, err := ParseSeed(strings.NewReader(`
sessions:
  - id: 123e4567-e89b-12d3-a456-426614174000
    label: Sunday Service
    starts_at: 2026-10-18T09:00:00Z
    expires_at: 2026-10-18T12:00:00Z
  - id: 00000000-0000-4000-8000-000000000001
    label: General Attendance
`))
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))
			Expect(sessions[0].ID).To(Equal(uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")))
			Expect(sessions[0].StartsAt).To(BeTemporally("==", time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)))
			Expect(*sessions[0].ExpiresAt).To(BeTemporally("==", time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)))
			Expect(sessions[1].ExpiresAt).To(BeNil())
		})

		It("should accept an empty file", func() {
			sessions, err := ParseSeed(strings.NewReader(""))
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(BeEmpty())
		})

		DescribeTable("invalid seeds",
			func(doc, message string) {
				_, err := ParseSeed(strings.NewReader(doc))
				Expect(err).To(MatchError(ContainSubstring(message)))
			},
			Entry("bad id", "sessions:\n  - id: nope\n    label: x\n", "parsing id"),
			Entry("missing label", "sessions:\n  - id: 123e4567-e89b-12d3-a456-426614174000\n", "missing label"),
			Entry("bad time", "sessions:\n  - id: 123e4567-e89b-12d3-a456-426614174000\n    label: x\n    starts_at: tomorrow\n", "parsing starts_at"),
			Entry("unknown field", "sessions:\n  - id: 123e4567-e89b-12d3-a456-426614174000\n    label: x\n    room: hall\n", "decoding seed file"),
		)
	})

	Describe("SeedSessions", func() {
		var db *BoltDB

		BeforeEach(func() {
			var err error
			db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			db.Close()
		})

		It("should load a seed file into the database", func() {
			path := filepath.Join(GinkgoT().TempDir(), "sessions.yaml")
			Expect(os.WriteFile(path, []byte("sessions:\n  - id: 123e4567-e89b-12d3-a456-426614174000\n    label: Sunday Service\n"), 0644)).To(Succeed())

			sessions, err := LoadSeedFile(path)
			Expect(err).NotTo(HaveOccurred())
			created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
			Expect(SeedSessions(db, sessions, created)).To(Succeed())

			saved, err := db.GetSession(uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"))
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Label).To(Equal("Sunday Service"))
			Expect(saved.CreatedAt).To(BeTemporally("==", created))
		})

		It("should keep the creation time of existing sessions", func() {
			id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
			original := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveSession(&Session{ID: id, Label: "Old", CreatedAt: original})).To(Succeed())

			Expect(SeedSessions(db, []*Session{{ID: id, Label: "Renamed"}}, original.Add(time.Hour))).To(Succeed())

			saved, err := db.GetSession(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Label).To(Equal("Renamed"))
			Expect(saved.CreatedAt).To(BeTemporally("==", original))
		})

		It("should fail for a missing file", func() {
			_, err := LoadSeedFile(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).To(MatchError(ContainSubstring("opening seed file")))
		})
	})
})

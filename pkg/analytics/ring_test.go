package analytics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/remacdev/chatbot/pkg/analytics"
	"github.com/remacdev/chatbot/pkg/runlog"
)

func f(v float64) *float64 { return &v }

var _ = Describe("Ring", func() {
	var (
		ring *analytics.Ring
		now  time.Time
	)

	BeforeEach(func() {
		ring = analytics.NewRing()
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	// recordAt appends a successful turn `age` before now.
	recordAt := func(age time.Duration, latency, inference float64) {
		net := analytics.NetworkSeconds(latency, &inference)
		ring.Record(analytics.Record{
			Timestamp:        now.Add(-age),
			LatencySeconds:   f(latency),
			InferenceSeconds: f(inference),
			NetworkSeconds:   f(net),
		})
	}

	Describe("Summary", func() {
		Context("with no records", func() {
			It("reports zero count and nil aggregates", func() {
				s := ring.Summary(now)

				Expect(s.Count).To(BeZero())
				Expect(s.LastLatency).To(BeNil())
				Expect(s.AvgLatency).To(BeNil())
				Expect(s.AvgInference).To(BeNil())
				Expect(s.AvgNetwork).To(BeNil())
			})
		})

		Context("with recorded turns", func() {
			It("averages each field over the records that carry it", func() {
				recordAt(2*time.Minute, 1.0, 0.4)
				recordAt(time.Minute, 3.0, 0.6)

				s := ring.Summary(now)

				Expect(s.Count).To(Equal(2))
				Expect(*s.LastLatency).To(BeNumerically("~", 3.0, 1e-9))
				Expect(*s.AvgLatency).To(BeNumerically("~", 2.0, 1e-9))
				Expect(*s.AvgInference).To(BeNumerically("~", 0.5, 1e-9))
				Expect(*s.AvgNetwork).To(BeNumerically("~", 1.5, 1e-9))
			})

			It("counts failed turns without skewing the averages", func() {
				recordAt(time.Minute, 2.0, 1.0)
				ring.RecordError(now, "connection refused")

				s := ring.Summary(now)

				Expect(s.Count).To(Equal(2))
				Expect(*s.AvgLatency).To(BeNumerically("~", 2.0, 1e-9))
				Expect(*s.LastLatency).To(BeNumerically("~", 2.0, 1e-9))
			})

			It("handles turns where inference was never reported", func() {
				ring.Record(analytics.Record{
					Timestamp:      now,
					LatencySeconds: f(1.5),
					NetworkSeconds: f(1.5),
				})

				s := ring.Summary(now)

				Expect(s.AvgInference).To(BeNil())
				Expect(*s.AvgNetwork).To(BeNumerically("~", 1.5, 1e-9))
			})
		})
	})

	Describe("Prune", func() {
		It("drops records older than six hours", func() {
			recordAt(7*time.Hour, 1.0, 0.5)
			recordAt(time.Minute, 2.0, 0.5)

			s := ring.Summary(now)

			Expect(s.Count).To(Equal(1))
			Expect(*s.AvgLatency).To(BeNumerically("~", 2.0, 1e-9))
		})

		It("keeps a record sitting exactly on the horizon", func() {
			recordAt(6*time.Hour, 1.0, 0.5)

			Expect(ring.Summary(now).Count).To(Equal(1))
		})

		It("prunes on every read, so time passing empties the ring", func() {
			recordAt(time.Minute, 1.0, 0.5)

			Expect(ring.Summary(now).Count).To(Equal(1))
			Expect(ring.Summary(now.Add(7 * time.Hour)).Count).To(BeZero())
		})
	})

	Describe("Throughput", func() {
		It("reports requests per minute over the window", func() {
			recordAt(10*time.Second, 1.0, 0.5)
			recordAt(20*time.Second, 1.0, 0.5)
			recordAt(30*time.Second, 1.0, 0.5)
			recordAt(3*time.Minute, 1.0, 0.5)

			Expect(ring.Throughput(now, time.Minute)).To(BeNumerically("~", 3.0, 1e-9))
			Expect(ring.Throughput(now, 5*time.Minute)).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("counts failed turns", func() {
			ring.RecordError(now.Add(-time.Second), "boom")

			Expect(ring.Throughput(now, time.Minute)).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("is zero with nothing in the window", func() {
			recordAt(10*time.Minute, 1.0, 0.5)

			Expect(ring.Throughput(now, time.Minute)).To(BeZero())
		})
	})

	Describe("Series", func() {
		It("returns points in arrival order, capped at the last n", func() {
			for i := 5; i >= 1; i-- {
				recordAt(time.Duration(i)*time.Minute, float64(i), 0.1)
			}

			latencies, inferences := ring.Series(now, 3)

			Expect(latencies).To(Equal([]float64{3, 2, 1}))
			Expect(inferences).To(HaveLen(3))
		})

		It("skips records without the field", func() {
			recordAt(2*time.Minute, 1.0, 0.5)
			ring.RecordError(now.Add(-time.Minute), "boom")

			latencies, inferences := ring.Series(now, analytics.SeriesWindow)

			Expect(latencies).To(Equal([]float64{1.0}))
			Expect(inferences).To(Equal([]float64{0.5}))
		})
	})

	Describe("RunLogOutcomes", func() {
		It("retains outcomes oldest first and prunes by the horizon", func() {
			ring.RecordRunLog(runlog.Outcome{Time: now.Add(-7 * time.Hour), OK: true, StatusCode: 200})
			ring.RecordRunLog(runlog.Outcome{Time: now.Add(-time.Minute), OK: false, Err: "timeout"})
			ring.RecordRunLog(runlog.Outcome{Time: now, OK: true, StatusCode: 202})

			outcomes := ring.RunLogOutcomes(now)

			Expect(outcomes).To(HaveLen(2))
			Expect(outcomes[0].Err).To(Equal("timeout"))
			Expect(outcomes[1].StatusCode).To(Equal(202))
		})
	})

	Describe("Reset", func() {
		It("drops records and run log outcomes alike", func() {
			recordAt(time.Minute, 1.0, 0.5)
			ring.RecordRunLog(runlog.Outcome{Time: now, OK: true})

			ring.Reset()

			Expect(ring.Summary(now).Count).To(BeZero())
			Expect(ring.RunLogOutcomes(now)).To(BeEmpty())
		})
	})
})

var _ = Describe("NetworkSeconds", func() {
	It("subtracts inference from the round trip", func() {
		Expect(analytics.NetworkSeconds(1.2, f(0.9))).To(BeNumerically("~", 0.3, 1e-9))
	})

	It("floors at zero when inference exceeds the round trip", func() {
		Expect(analytics.NetworkSeconds(0.5, f(0.9))).To(BeZero())
	})

	It("charges the whole round trip to the network when inference is unknown", func() {
		Expect(analytics.NetworkSeconds(1.2, nil)).To(BeNumerically("~", 1.2, 1e-9))
	})
})

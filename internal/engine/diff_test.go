package engine_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/internal/engine"
)

var _ = Describe("DiffReplacements", func() {
	DescribeTable("changed fragments",
		func(oldText, newText string, want []engine.Replacement) {
			got := engine.DiffReplacements(oldText, newText)
			if len(want) == 0 {
				Expect(got).To(BeEmpty())
				return
			}
			Expect(got).To(Equal(want))
		},
		Entry("identical content", "Hello world", "Hello world", nil),
		Entry("surrounding whitespace only", "Hello world\n", "  Hello world", nil),
		Entry("changed word at end of line",
			"Hello world\nSecond line", "Hello there\nSecond line",
			[]engine.Replacement{{Old: "world", New: "there"}}),
		Entry("changed word inside line",
			"The cat sat", "The dog sat",
			[]engine.Replacement{{Old: "cat", New: "dog"}}),
		Entry("deleted fragment",
			"Total: 100 USD", "Total: USD",
			[]engine.Replacement{{Old: "100", New: ""}}),
		Entry("repeated fragment reported once",
			"cat\ncat", "dog\ndog",
			[]engine.Replacement{{Old: "cat", New: "dog"}}),
		Entry("line emptied", "a\nb", "a\n", nil),
		Entry("trailing line added", "a", "a\nb", nil),
		Entry("non-ascii text",
			"Harga: Rp 5.000", "Harga: Rp 7.000",
			[]engine.Replacement{{Old: "5", New: "7"}}),
	)
})

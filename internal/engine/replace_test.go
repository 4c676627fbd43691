package engine

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Content stream rewriting", func() {
	rewrite := func(content string, reps ...Replacement) (string, int) {
		out, n := replaceLiterals([]byte(content), reps)
		return string(out), n
	}

	It("should replace text inside a shown string", func() {
		out, n := rewrite("BT /F1 12 Tf 72 712 Td (Hello world) Tj ET", Replacement{Old: "world", New: "there"})
		Expect(out).To(Equal("BT /F1 12 Tf 72 712 Td (Hello there) Tj ET"))
		Expect(n).To(Equal(1))
	})

	It("should count every occurrence", func() {
		out, n := rewrite("(ab ab) Tj (ab) '", Replacement{Old: "ab", New: "cd"})
		Expect(out).To(Equal("(cd cd) Tj (cd) '"))
		Expect(n).To(Equal(3))
	})

	It("should honour escaped parentheses", func() {
		out, n := rewrite(`(a \(b\) c) Tj`, Replacement{Old: "(b)", New: "(x)"})
		Expect(out).To(Equal(`(a \(x\) c) Tj`))
		Expect(n).To(Equal(1))
	})

	It("should decode octal escapes", func() {
		out, n := rewrite(`(caf\351) Tj`, Replacement{Old: "café", New: "bar"})
		Expect(out).To(Equal("(bar) Tj"))
		Expect(n).To(Equal(1))
	})

	It("should leave unmatched strings byte for byte", func() {
		in := `(keep \101 this) Tj`
		out, n := rewrite(in, Replacement{Old: "zzz", New: "y"})
		Expect(out).To(Equal(in))
		Expect(n).To(BeZero())
	})

	It("should skip comments", func() {
		out, n := rewrite("% (world)\n(world) Tj", Replacement{Old: "world", New: "there"})
		Expect(out).To(Equal("% (world)\n(there) Tj"))
		Expect(n).To(Equal(1))
	})

	It("should not match across separate string operands", func() {
		in := "[(Hel) -20 (lo)] TJ"
		out, n := rewrite(in, Replacement{Old: "Hello", New: "Bye"})
		Expect(out).To(Equal(in))
		Expect(n).To(BeZero())
	})

	It("should escape what it writes back", func() {
		Expect(string(encodeLiteral("a(b)\\c\n"))).To(Equal(`a\(b\)\\c\n`))
		Expect(string(encodeLiteral("é"))).To(Equal(`\351`))
		Expect(string(encodeLiteral("日"))).To(Equal("?"))
	})
})

var _ = Describe("Local engine helpers", func() {
	DescribeTable("validOrder",
		func(order []int, want bool) {
			Expect(validOrder(order)).To(Equal(want))
		},
		Entry("identity", []int{1, 2, 3}, true),
		Entry("moved", []int{3, 1, 2}, true),
		Entry("duplicate", []int{1, 1, 2}, false),
		Entry("out of range", []int{1, 4, 2}, false),
		Entry("zero", []int{0, 1}, false),
	)

	It("should format page selections for pdfcpu", func() {
		Expect(pageSelection([]int{5, 1, 2})).To(Equal([]string{"5", "1", "2"}))
	})

	It("should drop blank lines and trailing spaces", func() {
		Expect(cleanText("a  \n\n   \nb\t\n")).To(Equal("a\nb"))
	})

	It("should reserve distinct output names within one millisecond", func() {
		dir := GinkgoT().TempDir()
		now := time.UnixMilli(1700000000000)
		l, err := NewLocal(LocalOptions{OutputDir: dir, Now: func() time.Time { return now }})
		Expect(err).NotTo(HaveOccurred())

		a := l.reserve("/docs/report.pdf", "reordered")
		b := l.reserve("/docs/report.pdf", "reordered")
		Expect(a).NotTo(Equal(b))
		Expect(a).To(HaveSuffix("report_reordered_1700000000000.pdf"))
		Expect(b).To(HaveSuffix("report_reordered_1700000000001.pdf"))

		l.release(a)
		Expect(l.reserve("/docs/report.pdf", "reordered")).To(Equal(a))
	})
})

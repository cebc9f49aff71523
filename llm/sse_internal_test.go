package llm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("lineBuffer", func() {
	It("holds a partial line until its terminator arrives", func() {
		var b lineBuffer
		Expect(b.Feed([]byte("data: one\ndata: tw"))).To(Equal([]string{"data: one"}))
		Expect(b.Feed([]byte("o\r\n\n"))).To(Equal([]string{"data: two", ""}))
		Expect(b.Flush()).To(BeEmpty())
	})

	It("returns the unterminated tail on Flush", func() {
		var b lineBuffer
		Expect(b.Feed([]byte("data: last"))).To(BeEmpty())
		Expect(b.Flush()).To(Equal("data: last"))
		Expect(b.Flush()).To(BeEmpty())
	})
})

var _ = Describe("parseTokenLine", func() {
	DescribeTable("lines without a fragment",
		func(line string) {
			text, ok, err := parseTokenLine("hf", line)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(text).To(BeEmpty())
		},
		Entry("blank line", ""),
		Entry("comment", ": keep-alive"),
		Entry("other field", "event: message"),
		Entry("empty payload", "data:   "),
		Entry("bare sentinel token", `data: {"token":{"text":"<|endoftext|>"}}`),
	)

	It("reads the token text", func() {
		text, ok, err := parseTokenLine("hf", `data: {"token":{"text":" world"}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(text).To(Equal(" world"))
	})

	It("strips the sentinel from inside a token", func() {
		text, ok, _ := parseTokenLine("hf", `data: {"token":{"text":"done.<|endoftext|>"}}`)
		Expect(ok).To(BeTrue())
		Expect(text).To(Equal("done."))
	})

	It("prefers the token over generated_text", func() {
		text, _, _ := parseTokenLine("hf", `data: {"token":{"text":"!"},"generated_text":"Hello!"}`)
		Expect(text).To(Equal("!"))
	})

	It("falls back to generated_text when there is no token", func() {
		text, ok, _ := parseTokenLine("hf", `data:{"generated_text":"Hello!"}`)
		Expect(ok).To(BeTrue())
		Expect(text).To(Equal("Hello!"))
	})

	It("tags malformed payloads as parse errors", func() {
		_, _, err := parseTokenLine("hf", "data: {oops")
		Expect(IsKind(err, KindParseError)).To(BeTrue())
	})

	It("surfaces in-band errors", func() {
		_, _, err := parseTokenLine("hf", `data: {"error":"Input validation error"}`)
		Expect(err).To(HaveOccurred())
		Expect(UserMessage(err)).To(Equal("Error: Input validation error"))
	})
})

var _ = Describe("splitUTF8", func() {
	It("carries an incomplete rune into the next read", func() {
		b := []byte("añ")
		complete, rest := splitUTF8(b[:2])
		Expect(string(complete)).To(Equal("a"))
		Expect(rest).To(Equal([]byte{b[1]}))

		complete, rest = splitUTF8(append(rest, b[2]))
		Expect(string(complete)).To(Equal("ñ"))
		Expect(rest).To(BeEmpty())
	})
})

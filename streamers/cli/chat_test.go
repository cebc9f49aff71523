package cli_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"velicia/streamers"
	"velicia/streamers/cli"
)

var _ streamers.ChatHandler = (*cli.ChatHandler)(nil)

var _ = Describe("ChatHandler", func() {
	var out *bytes.Buffer

	BeforeEach(func() {
		out = &bytes.Buffer{}
	})

	It("reads trimmed lines and accepts a final line without newline", func() {
		h := cli.NewChatHandlerIO(strings.NewReader("  hello  \nlast"), out, false)

		Expect(h.AwaitClientAnswer()).To(Equal("hello"))
		Expect(h.AwaitClientAnswer()).To(Equal("last"))
		_, err := h.AwaitClientAnswer()
		Expect(err).To(Equal(io.EOF))
	})

	It("prints the buffered answer when it finishes", func() {
		h := cli.NewChatHandlerIO(strings.NewReader(""), out, false)

		h.Thinking(false)
		h.PublishAnswerChunk("Hello ")
		h.PublishAnswerChunk("world")
		h.FinishAnswer()

		Expect(out.String()).To(ContainSubstring("Hello world\n"))
	})

	It("prints the error text", func() {
		h := cli.NewChatHandlerIO(strings.NewReader(""), out, false)

		h.Thinking(true)
		h.PublishAnswerChunk("dropped")
		h.Error(errors.New("boom"), "Too many requests.")

		Expect(out.String()).To(ContainSubstring(cli.ColorRed + "Too many requests."))
		Expect(out.String()).NotTo(ContainSubstring("dropped"))
	})

	It("greets with the model label and id", func() {
		h := cli.NewChatHandlerIO(strings.NewReader(""), out, false)
		h.Welcome("Velicia 3.1 Pro", "gemini-2.5-pro")
		h.Goodbye()

		Expect(out.String()).To(ContainSubstring("Chatting with Velicia 3.1 Pro"))
		Expect(out.String()).To(ContainSubstring("(model: gemini-2.5-pro)"))
		Expect(out.String()).To(ContainSubstring("Goodbye!"))
	})
})

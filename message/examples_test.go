package message_test

import (
	"fmt"
	"log"
	"os"
	"strings"

	gomessage "github.com/emersion/go-message"

	"github.com/mjl-/mailflow/message"
	"github.com/mjl-/mailflow/mlog"
)

func ExampleFlowText() {
	text := "Hi,\n\nThis paragraph is long enough that it is wrapped over multiple lines.\n\n> And so is this quoted paragraph.\n"
	flowed := message.FlowText(text, 30)
	for _, line := range strings.Split(flowed, "\n") {
		fmt.Printf("%q\n", line)
	}
	// Output:
	// "Hi,"
	// ""
	// "This paragraph is long  "
	// "enough that it is wrapped  "
	// "over multiple lines."
	// ""
	// "> And so is this quoted  "
	// "> paragraph."
	// ""
}

func ExampleSelectEncoding() {
	fmt.Println(message.SelectEncoding([]byte("plain ascii\r\n")).Encoding)
	fmt.Println(message.SelectEncoding([]byte("non-ascii: é\r\n")).Encoding)
	fmt.Println(message.SelectEncoding([]byte(strings.Repeat("x", 999))).Encoding)
	// Output:
	// 7bit
	// 8bit
	// unchanged
}

func ExampleWriteFlowedPart() {
	log := mlog.New("example", nil)
	part, err := message.FlowBody(log, []byte("Short text.\n"), "utf-8", message.FlowOptions{})
	if err != nil {
		log.Fatalx("flowing body", err)
	}

	var h gomessage.Header
	h.Set("Subject", "flowed")
	var b strings.Builder
	if err := message.WriteFlowedPart(&b, h, part); err != nil {
		log.Fatalx("writing part", err)
	}
	// Replace CRLF for printing.
	out := strings.ReplaceAll(b.String(), "\r\n", "\n")
	if _, err := os.Stdout.WriteString(out); err != nil {
		log.Fatalx("write", err)
	}
	// Output:
	// Mime-Version: 1.0
	// Content-Transfer-Encoding: 7bit
	// Content-Type: text/plain; charset=us-ascii; delsp=yes; format=flowed
	// Subject: flowed
	//
	// Short text.
}

func ExampleRewriteMessage() {
	msg := "Subject: hello\r\n\r\nA message body with a line that is too long to be sent as is, so it gets flowed.\r\n"
	var b strings.Builder
	stats, err := message.RewriteMessage(mlog.New("example", nil), strings.NewReader(msg), &b, message.FlowOptions{Width: 40})
	if err != nil {
		log.Fatalf("rewrite: %v", err)
	}
	fmt.Printf("parts %d, flowed %d\n", stats.Parts, stats.Flowed)
	// Output:
	// parts 1, flowed 1
}

package upload

import (
	"bytes"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

func TestProgressReaderReportsTotals(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 100)
	var calls []int64
	pr := NewProgressReader(bytes.NewReader(data), int64(len(data)), func(sent, total int64) {
		if total != 100 {
			t.Fatalf("unexpected total %d", total)
		}
		calls = append(calls, sent)
	})

	buf := make([]byte, 30)
	for {
		_, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}

	if len(calls) != 4 || calls[len(calls)-1] != 100 {
		t.Fatalf("unexpected progress calls %v", calls)
	}
	if pr.Sent() != 100 {
		t.Fatalf("sent = %d", pr.Sent())
	}
}

func TestLogQuartersLogsEachQuarterOnce(t *testing.T) {
	var out bytes.Buffer
	fn := LogQuarters(zerolog.New(&out), "artigo.pdf")
	for sent := int64(0); sent <= 100; sent += 5 {
		fn(sent, 100)
	}
	if got := bytes.Count(out.Bytes(), []byte("upload progress")); got != 4 {
		t.Fatalf("expected 4 progress lines, got %d: %s", got, out.String())
	}
}

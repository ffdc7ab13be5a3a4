package ai

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Assembler turns arbitrarily-sized byte fragments back into complete lines.
// Upstream tunnels deliver data at whatever byte boundaries they like, so a
// logical line (or JSON record) routinely arrives split across deliveries.
// Feed emits only completed lines and retains the trailing partial; Flush
// surrenders whatever is left.
type Assembler struct {
	buf bytes.Buffer
}

// Feed appends a fragment and returns every newline-terminated line now
// complete, without the terminator.
func (a *Assembler) Feed(p []byte) []string {
	a.buf.Write(p)

	var lines []string
	for {
		data := a.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return lines
		}
		line := string(bytes.TrimRight(data[:i], "\r"))
		lines = append(lines, line)
		a.buf.Next(i + 1)
	}
}

// Flush returns the retained partial line and resets the buffer.
func (a *Assembler) Flush() string {
	s := a.buf.String()
	a.buf.Reset()
	return s
}

// Token is one decoded upstream fragment.
type Token struct {
	Text string
	Done bool
}

// tokenFrame covers the known upstream record shapes: llama-server
// ({content, stop}), ollama ({message:{content}, done}) and
// OpenAI-compatible deltas ({choices:[{delta:{content}}]} or {delta:...}).
type tokenFrame struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
	Done    bool   `json:"done"`
	Delta   struct {
		Content string `json:"content"`
	} `json:"delta"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DecodeToken extracts the text increment from one upstream line. It strips
// a streaming-protocol "data:" prefix, recognizes end-of-stream sentinels,
// and falls back to the raw line when the payload is not parseable JSON.
// Malformed fragments are never an error.
func DecodeToken(line string) Token {
	s := strings.TrimSpace(line)
	s = strings.TrimSpace(strings.TrimPrefix(s, "data:"))

	switch s {
	case "":
		return Token{}
	case "[DONE]", "[FIN]", "[END]":
		return Token{Done: true}
	}

	if !strings.HasPrefix(s, "{") {
		return Token{Text: s}
	}

	var frame tokenFrame
	if err := json.Unmarshal([]byte(s), &frame); err != nil {
		return Token{Text: s}
	}

	tok := Token{Done: frame.Stop || frame.Done}
	switch {
	case frame.Content != "":
		tok.Text = frame.Content
	case frame.Delta.Content != "":
		tok.Text = frame.Delta.Content
	case len(frame.Choices) > 0 && frame.Choices[0].Delta.Content != "":
		tok.Text = frame.Choices[0].Delta.Content
	case frame.Message.Content != "":
		tok.Text = frame.Message.Content
	}
	return tok
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JoseManaure/portfolio-server/internal/retry"
)

// LlamaServerProvider reaches a llama-server /completion endpoint, usually
// through a throwaway tunnel. The tunnel vanishing mid-deploy is a normal
// event, so connection establishment runs under the retry policy; a stream
// that has already produced data is never retried.
type LlamaServerProvider struct {
	BaseURL     string
	Temperature float64
	NPredict    int
	Client      *http.Client
	Retry       retry.Policy
}

// NewLlamaServerProvider applies the generation defaults the frontend was
// tuned against.
func NewLlamaServerProvider(baseURL string, policy retry.Policy) *LlamaServerProvider {
	return &LlamaServerProvider{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Temperature: 0.7,
		NPredict:    200,
		Client:      &http.Client{},
		Retry:       policy,
	}
}

type llamaCompletionReq struct {
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	NPredict    int     `json:"n_predict"`
}

type llamaCompletionResp struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

type llamaConn struct {
	resp   *http.Response
	cancel context.CancelFunc
}

// connect establishes a /completion request under the retry policy. The
// response body outlives the retried attempt, so the per-attempt timeout is
// enforced with a timer that is stopped once headers arrive; the returned
// cancel releases the request context and must be called when the body is
// done.
func (p *LlamaServerProvider) connect(ctx context.Context, messages []Message, stream bool) (*http.Response, context.CancelFunc, error) {
	body, err := json.Marshal(llamaCompletionReq{
		Prompt:      flattenPrompt(messages),
		Stream:      stream,
		Temperature: p.Temperature,
		NPredict:    p.NPredict,
	})
	if err != nil {
		return nil, nil, err
	}

	policy := p.Retry
	timeout := policy.PerAttemptTimeout
	policy.PerAttemptTimeout = 0

	c, err := retry.DoValue(ctx, policy, func(ctx context.Context) (llamaConn, error) {
		reqCtx, cancel := context.WithCancel(ctx)
		var timer *time.Timer
		if timeout > 0 {
			timer = time.AfterFunc(timeout, cancel)
		}
		fail := func(err error) (llamaConn, error) {
			if timer != nil {
				timer.Stop()
			}
			cancel()
			return llamaConn{}, err
		}

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.BaseURL+"/completion", bytes.NewReader(body))
		if err != nil {
			return fail(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.Client.Do(req)
		if err != nil {
			return fail(err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			_ = resp.Body.Close()
			msg := strings.TrimSpace(string(detail))
			if msg == "" {
				msg = "sin detalle"
			}
			return fail(fmt.Errorf("llama-server: HTTP %d: %s", resp.StatusCode, msg))
		}

		// Established. From here on only ctx bounds the body.
		if timer != nil {
			timer.Stop()
		}
		return llamaConn{resp: resp, cancel: cancel}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return c.resp, c.cancel, nil
}

// Chat implements Provider.
func (p *LlamaServerProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, cancel, err := p.connect(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer resp.Body.Close()

	var decoded llamaCompletionResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.Content, nil
}

// StreamChat implements StreamProvider. Fragments are reassembled into lines
// before decoding. The per-attempt timeout only covers connection
// establishment; the read loop is bounded by ctx alone.
func (p *LlamaServerProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		resp, cancel, err := p.connect(ctx, messages, true)
		if err != nil {
			errs <- err
			return
		}
		defer cancel()
		defer resp.Body.Close()

		var asm Assembler
		buf := make([]byte, 32*1024)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				for _, line := range asm.Feed(buf[:n]) {
					tok := DecodeToken(line)
					if tok.Text != "" {
						select {
						case chunks <- tok.Text:
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
					if tok.Done {
						return
					}
				}
			}
			if readErr != nil {
				if tail := DecodeToken(asm.Flush()); tail.Text != "" {
					chunks <- tail.Text
				}
				if readErr != io.EOF {
					errs <- readErr
				}
				return
			}
		}
	}()

	return chunks, errs
}

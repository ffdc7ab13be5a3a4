package ai

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// LlamaCLIProvider runs the model as a local llama-cli process and streams
// its stdout. It is the no-network backend for machines that host the model
// themselves.
type LlamaCLIProvider struct {
	Binary    string
	ModelPath string
	NPredict  int
	Threads   int
}

// NewLlamaCLIProvider applies the invocation defaults the model was tuned
// with.
func NewLlamaCLIProvider(binary, modelPath string) *LlamaCLIProvider {
	return &LlamaCLIProvider{
		Binary:    binary,
		ModelPath: modelPath,
		NPredict:  200,
		Threads:   4,
	}
}

func (p *LlamaCLIProvider) command(ctx context.Context, messages []Message) *exec.Cmd {
	return exec.CommandContext(ctx, p.Binary,
		"--model", p.ModelPath,
		"--prompt", flattenPrompt(messages),
		"--n-predict", strconv.Itoa(p.NPredict),
		"--threads", strconv.Itoa(p.Threads),
	)
}

// Chat implements Provider.
func (p *LlamaCLIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Binary == "" || p.ModelPath == "" {
		return "", errors.New("llama-cli: binary and model path are required")
	}
	out, err := p.command(ctx, messages).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// StreamChat implements StreamProvider. Stdout is forwarded chunk by chunk
// with a trailing space per read, matching how the process emits tokens;
// the cleaner downstream repairs any seams this introduces.
func (p *LlamaCLIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.Binary == "" || p.ModelPath == "" {
			errs <- errors.New("llama-cli: binary and model path are required")
			return
		}

		cmd := p.command(ctx, messages)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errs <- err
			return
		}
		if err := cmd.Start(); err != nil {
			errs <- err
			return
		}

		buf := make([]byte, 8*1024)
		for {
			n, readErr := stdout.Read(buf)
			if n > 0 {
				select {
				case chunks <- string(buf[:n]) + " ":
				case <-ctx.Done():
					_ = cmd.Process.Kill()
					errs <- ctx.Err()
					return
				}
			}
			if readErr != nil {
				if readErr != io.EOF {
					errs <- readErr
					_ = cmd.Wait()
					return
				}
				break
			}
		}

		if err := cmd.Wait(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

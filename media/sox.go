// Package media drives the sox command line tools for speaker playback and
// microphone capture, and captures the screen on an interval.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

var ErrClosed = errors.New("media: closed")

// rawPCM describes headerless 16-bit signed mono PCM at the given rate.
func rawPCM(rate string) []string {
	return []string{"-t", "raw", "-r", rate, "-e", "signed-integer", "-b", "16", "-c", "1", "-"}
}

// PlayerArgs plays 24kHz model audio from stdin.
var PlayerArgs = append([]string{"play"}, rawPCM("24k")...)

// RecorderArgs records 16kHz microphone audio to stdout.
var RecorderArgs = append([]string{"rec"}, rawPCM("16k")...)

// Player streams PCM to a sox process
type Player struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	closed bool
}

// NewPlayer starts `play`. Cancelling ctx kills the process.
func NewPlayer(ctx context.Context) (*Player, error) {
	return StartPlayer(exec.CommandContext(ctx, PlayerArgs[0], PlayerArgs[1:]...))
}

// StartPlayer starts an arbitrary command that consumes audio on stdin.
func StartPlayer(cmd *exec.Cmd) (*Player, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return &Player{cmd: cmd, stdin: stdin}, nil
}

// Play writes one chunk. Chunks are played in call order.
func (p *Player) Play(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	_, err := p.stdin.Write(data)
	return err
}

// Close flushes stdin and waits for the player to drain.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.stdin.Close()
	return p.cmd.Wait()
}

// Recorder reads PCM from a sox process
type Recorder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	once sync.Once
}

// NewRecorder starts `rec`. Cancelling ctx kills the process.
func NewRecorder(ctx context.Context) (*Recorder, error) {
	return StartRecorder(exec.CommandContext(ctx, RecorderArgs[0], RecorderArgs[1:]...))
}

// StartRecorder starts an arbitrary command that produces audio on stdout.
func StartRecorder(cmd *exec.Cmd) (*Recorder, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("recorder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return &Recorder{cmd: cmd, stdout: stdout}, nil
}

// Reader returns the raw PCM stream.
func (r *Recorder) Reader() io.Reader {
	return r.stdout
}

// Close stops recording.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		if r.cmd.Process != nil {
			r.cmd.Process.Kill()
		}
		// Killed processes report an exit error; that is the normal path.
		r.cmd.Wait()
	})
	return nil
}

// Pump reads r in chunks of up to size bytes and hands each to fn until r
// is exhausted, ctx is done, or fn fails. EOF is not an error.
func Pump(ctx context.Context, r io.Reader, size int, fn func([]byte) error) error {
	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if ferr := fn(chunk); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}

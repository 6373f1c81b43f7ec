package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/room4-2/gemini-live/functions"
	"github.com/room4-2/gemini-live/gemini"
)

// askCmd sends one text turn and prints the streamed reply
func askCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask a single question and print the text reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			textOnly := *cfg
			textOnly.ResponseModalities = []string{"TEXT"}

			registry := functions.Default()
			live := gemini.NewSession(textOnly.LiveConfig("", registry.Tools()), gemini.WithLogger(logger))
			defer live.Close()

			tools := functions.NewExecutor(registry, live, logger)
			tools.Attach(live)
			defer tools.Close()

			out := cmd.OutOrStdout()
			reply := newTurnWaiter()
			failed := make(chan error, 1)

			live.OnText(func(text string) { fmt.Fprint(out, text) })
			live.OnTurnComplete(func() {
				if reply.finish() {
					fmt.Fprintln(out)
				}
			})
			live.OnClose(func(err error) {
				if err == nil {
					err = errors.New("connection closed before the reply finished")
				}
				select {
				case failed <- err:
				default:
				}
			})
			live.OnSetupComplete(func() {
				if err := live.SendText(prompt); err != nil {
					select {
					case failed <- err:
					default:
					}
				}
			})

			if err := live.Open(ctx, cfg.Endpoint()); err != nil {
				return err
			}

			select {
			case <-reply.done:
				return nil
			case err := <-failed:
				return err
			case <-ctx.Done():
				return fmt.Errorf("no reply within %s", timeout)
			}
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the reply")
	return cmd
}

// turnWaiter closes done on the first turnComplete. Tool call rounds can
// produce more than one.
type turnWaiter struct {
	once sync.Once
	done chan struct{}
}

func newTurnWaiter() *turnWaiter {
	return &turnWaiter{done: make(chan struct{})}
}

// finish reports whether this call completed the turn.
func (w *turnWaiter) finish() bool {
	first := false
	w.once.Do(func() {
		first = true
		close(w.done)
	})
	return first
}

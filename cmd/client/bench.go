package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-app/internal/client"
)

// benchFields is the edit form sent by the benchmark.
var benchFields = url.Values{
	"first":   {"Marcus"},
	"last":    {"Antonius"},
	"twitter": {"@marcus"},
	"notes":   {"Born 83 BC"},
}

func newBenchCmd(get func() *client.Client) *cobra.Command {
	var sizes []int
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure the average latency of the routes",
		Long: `Creates, edits, loads and deletes the given numbers of contacts and prints the average
latency per request in microseconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()
			return bench(ctx, cmd, get(), sizes)
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{100, 500, 1000, 5000}, "numbers of contacts per round")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the benchmark after this time")
	return cmd
}

func bench(ctx context.Context, cmd *cobra.Command, c *client.Client, sizes []int) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Elements       NEW      EDIT       GET   DESTROY ")
	fmt.Fprintln(out, "---------------------------------------------------")
	for _, loops := range sizes {
		if loops < 1 {
			return fmt.Errorf("invalid size %d", loops)
		}
		fmt.Fprintf(out, "%10d", loops)

		// NEW requests
		ids := make([]string, 0, loops)
		var duration time.Duration
		for i := 0; i < loops; i++ {
			before := time.Now()
			id, err := c.Create(ctx)
			if err != nil {
				return err
			}
			duration += time.Since(before)
			ids = append(ids, id)
		}
		fmt.Fprintf(out, "%10d", duration.Microseconds()/int64(loops))

		// EDIT requests
		if err := callInLoop(ctx, out, ids, func(id string) error {
			return c.Update(ctx, id, benchFields)
		}); err != nil {
			return err
		}

		// GET requests
		if err := callInLoop(ctx, out, ids, func(id string) error {
			_, err := c.Get(ctx, id)
			return err
		}); err != nil {
			return err
		}

		// DESTROY requests
		if err := callInLoop(ctx, out, ids, func(id string) error {
			return c.Delete(ctx, id)
		}); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

// callInLoop calls f for all ids in random order and prints the average latency.
func callInLoop(ctx context.Context, out io.Writer, ids []string, f func(id string) error) error {
	shuffled := append([]string(nil), ids...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration time.Duration
	for _, id := range shuffled {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := time.Now()
		if err := f(id); err != nil {
			return err
		}
		duration += time.Since(before)
	}
	fmt.Fprintf(out, "%10d", duration.Microseconds()/int64(len(ids)))
	return nil
}

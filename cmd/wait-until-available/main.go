package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Usage example on the command line:
// > go run main.go --url http://localhost:8080/ --interval 5s --timeout 2m
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var target string
	var interval, timeout time.Duration
	cmd := &cobra.Command{
		Use:           "wait-until-available",
		Short:         "Wait until the contacts app answers requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return waitUntilAvailable(ctx, cmd, target, interval)
		},
	}
	cmd.Flags().StringVar(&target, "url", "http://localhost:8080/", "URL to poll")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "time between two attempts")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this time")
	return cmd
}

// waitUntilAvailable polls the URL until it answers 200 or the context ends.
func waitUntilAvailable(ctx context.Context, cmd *cobra.Command, target string, interval time.Duration) error {
	start := time.Now()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		res, err := http.DefaultClient.Do(req)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				cmd.Printf("%s is available after %s\n", target, time.Since(start).Round(time.Second))
				return nil
			}
			cmd.Println(res.Status)
		} else {
			cmd.Println(err)
		}
		cmd.Printf("Waiting %s\n", time.Since(start).Round(time.Second))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not available: %w", target, ctx.Err())
		case <-time.After(interval):
		}
	}
}

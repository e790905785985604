package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [transcript-id]",
		Short: "List recent conversations or print one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(bootOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if len(args) == 1 {
				t, err := rt.sessions.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(t)
				}
				for _, turn := range t.Turns {
					fmt.Printf("[%s] %s: %s\n", turn.CreatedAt.Format(time.DateTime), turn.Role, turn.Content)
				}
				return nil
			}

			items, err := rt.sessions.List(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(items)
			}
			for _, s := range items {
				fmt.Printf("- %s  %s  turns=%d  %s\n", s.ID, s.UpdatedAt.Format(time.DateTime), s.Turns, clip(s.FirstUser, 60))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum transcripts to list")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

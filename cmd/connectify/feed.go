package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/connectify/internal/tui"
)

func newFeedCmd(o *rootOptions) *cobra.Command {
	var (
		page   int
		pages  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the post feed",
		Long: `Print posts visible to you, newest first. Anonymous requests see public
posts only.

Examples:
  connectify feed
  connectify feed --page 3
  connectify feed --pages 2 --json | jq '.[].caption'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			fc := a.newFeed()
			ctx := cmd.Context()

			// Errors land in the feed state; the returned error only repeats it.
			_ = fc.Fetch(ctx, page, false)
			for i := 1; i < pages; i++ {
				st := fc.State()
				if st.Error != "" || !st.HasMore {
					break
				}
				_ = fc.LoadMore(ctx)
			}

			st := fc.State()
			if st.Error != "" && len(st.Posts) == 0 {
				return errors.New(st.Error)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st.Posts)
			}

			if st.IsEmpty() {
				cmd.Println("No posts yet. Be the first to share something!")
				return nil
			}
			now := time.Now()
			for _, p := range st.Posts {
				cmd.Println(tui.RenderCard(p, tui.CardOptions{MediaBase: a.cfg.API.MediaBaseURL, Now: now}))
			}
			cmd.Printf("Showing %d of %d posts", len(st.Posts), st.TotalCount)
			if st.HasMore {
				cmd.Printf(" (next: --page %d)", st.CurrentPage+1)
			}
			cmd.Println()
			if st.Error != "" {
				return errors.New(st.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "first page to fetch")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to fetch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print posts as JSON")
	return cmd
}

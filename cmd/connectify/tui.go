package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/feed"
	"github.com/fyrsmithlabs/connectify/internal/session"
	"github.com/fyrsmithlabs/connectify/internal/tui"
)

func newTUICmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse the feed interactively",
		Long: `Open a full-screen feed viewer. Scrolling to the last post loads the next
page; likes apply immediately and are reverted if the server rejects them.

Signing in or out from another terminal reloads the feed.

Keys:
  j/k or arrows  move between posts
  l or space     like / unlike
  r              refresh
  n              load more or retry
  q              quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			fc := a.newFeed()
			m := tui.NewModel(fc, tui.Options{
				Likes:     feed.NewLikeSync(fc, a.client, a.logger.Named("likes")),
				Viewer:    a.client,
				MediaBase: a.cfg.API.MediaBaseURL,
				CanLike:   a.session.IsAuthenticated,
			})
			p := tui.NewProgram(m,
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				err := a.session.Watch(ctx, func() { p.Send(tui.SessionChangedMsg{}) })
				if err != nil && !errors.Is(err, session.ErrNotWatchable) {
					a.logger.Warn(ctx, "session watch stopped", zap.Error(err))
				}
			}()

			_, err := p.Run()
			if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/composer"
	"github.com/fyrsmithlabs/connectify/internal/feed"
	"github.com/fyrsmithlabs/connectify/internal/post"
	"github.com/fyrsmithlabs/connectify/internal/tui"
)

func newPostCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create and like posts",
	}
	cmd.AddCommand(newPostCreateCmd(o), newPostLikeCmd(o, true), newPostLikeCmd(o, false))
	return cmd
}

func newPostCreateCmd(o *rootOptions) *cobra.Command {
	var (
		caption    string
		loc        string
		visibility string
		files      []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a post with optional media",
		Long: `Publish a post. A post needs a caption or at least one file. Images and
videos are accepted; see composer.max_files and composer.max_file_size_mb for
the limits.

Examples:
  connectify post create --caption "Sunset over the bay" --file sunset.jpg
  connectify post create --caption "Members only" --visibility followers
  connectify post create --file a.png --file b.mp4 --location "Lisbon, Portugal"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			if err := a.requireLogin(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var reported bool
			c := composer.NewController(a.client,
				composer.WithLimits(composer.LimitsFromConfig(a.cfg.Composer)),
				composer.WithLogger(a.logger.Named("composer")),
				composer.WithTracerProvider(a.tel.TracerProvider()),
				composer.WithProgressListener(func(pct int) {
					reported = true
					fmt.Fprintf(out, "\rUploading… %3d%%", pct)
				}),
			)
			c.Open()

			for name, value := range map[string]string{
				composer.FieldCaption:    caption,
				composer.FieldLocation:   loc,
				composer.FieldVisibility: visibility,
			} {
				if err := c.UpdateField(name, value); err != nil {
					return err
				}
			}

			selected := make([]composer.File, 0, len(files))
			for _, path := range files {
				f, err := composer.FileFromPath(path)
				if err != nil {
					return err
				}
				selected = append(selected, f)
			}
			if len(selected) > 0 {
				res := c.AddFiles(selected)
				if !res.Success || len(res.Errors) > 0 {
					for _, msg := range res.Errors {
						cmd.PrintErrln(msg)
					}
					return errors.New("some files could not be attached")
				}
			}

			created, err := c.SubmitPost(cmd.Context())
			if reported {
				fmt.Fprintln(out)
			}
			if errors.Is(err, composer.ErrInvalidDraft) {
				printDraftErrors(cmd.ErrOrStderr(), c.Draft().Errors)
				return err
			}
			if err != nil {
				return errors.New(c.Draft().Errors[composer.FieldGeneral])
			}

			cmd.Printf("Post %d created\n", created.ID)
			cmd.Println(tui.RenderCard(*created, tui.CardOptions{MediaBase: a.cfg.API.MediaBaseURL, Now: time.Now()}))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&caption, "caption", "", "post text")
	f.StringVar(&loc, "location", "", "location tag, e.g. from 'connectify location search'")
	f.StringVar(&visibility, "visibility", string(post.Public), "public, followers or private")
	f.StringArrayVar(&files, "file", nil, "image or video to attach (repeatable)")
	return cmd
}

func printDraftErrors(w io.Writer, errs map[string]string) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, errs[f])
	}
}

func newPostLikeCmd(o *rootOptions, like bool) *cobra.Command {
	use, short := "like <post-id>", "Like a post"
	if !like {
		use, short = "unlike <post-id>", "Remove your like from a post"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid post id %q", args[0])
			}

			// Seed the post in the opposite state so the toggle lands on the
			// requested one; the server's answer then replaces the counts.
			fc := a.newFeed()
			fc.AddNewPost(post.Post{ID: id, IsLiked: !like})
			likes := feed.NewLikeSync(fc, a.client, a.logger.Named("likes"))
			if _, err := likes.Toggle(cmd.Context(), id); err != nil {
				verb := "like"
				if !like {
					verb = "unlike"
				}
				return errors.New(api.Message(err, "Failed to "+verb+" post"))
			}

			for _, p := range fc.State().Posts {
				if p.ID == id {
					state := "Liked"
					if !p.IsLiked {
						state = "Unliked"
					}
					cmd.Printf("%s post %d (%s likes)\n", state, id, post.FormatCount(p.LikeCount))
				}
			}
			return nil
		},
	}
}

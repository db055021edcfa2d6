package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/config"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

func newLoginCmd(o *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. Tokens and the profile are stored in the
session file (session.path) and reused by later commands.

Without --password the password is read from the first line of stdin.

Examples:
  connectify login --email demo@connectify.dev --password connectify-demo
  echo "$PASSWORD" | connectify login --email me@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				password = line
			}
			a := o.app
			u, err := a.session.Login(cmd.Context(), a.client, api.Credentials{
				Email:    strings.TrimSpace(email),
				Password: config.Secret(password),
			})
			if err != nil {
				return errors.New(api.Message(err, "Login failed"))
			}
			cmd.Printf("Logged in as %s (@%s)\n", u.Author().DisplayName(), u.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd(o *rootOptions) *cobra.Command {
	var (
		reg      api.Registration
		password string
		picture  string
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: `Create an account. Signing up does not sign in; run login afterwards.

Examples:
  connectify signup --email ada@example.com --username ada --password '...' \
    --first-name Ada --picture ./avatar.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg.Password = config.Secret(password)
			if picture != "" {
				f, up, err := openPicture(picture)
				if err != nil {
					return err
				}
				defer f.Close()
				reg.ProfilePicture = up
			}

			u, err := o.app.session.Signup(cmd.Context(), o.app.client, reg)
			if err != nil {
				return errors.New(api.Message(err, "Registration failed"))
			}
			cmd.Printf("Account created for @%s. Sign in with: connectify login --email %s\n", u.Username, u.Email)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.Email, "email", "", "account email")
	f.StringVar(&reg.Username, "username", "", "public username")
	f.StringVar(&password, "password", "", "account password")
	f.StringVar(&reg.FirstName, "first-name", "", "first name")
	f.StringVar(&reg.LastName, "last-name", "", "last name")
	f.StringVar(&reg.Bio, "bio", "", "short bio")
	f.StringVar(&picture, "picture", "", "profile picture image file")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// openPicture opens an image for upload. The caller closes the file.
func openPicture(path string) (*os.File, *api.Upload, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, nil, fmt.Errorf("%s is %s, not an image", path, mt.String())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, &api.Upload{
		Name:        filepath.Base(path),
		ContentType: mt.String(),
		Type:        post.Image,
		Content:     f,
	}, nil
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.app.session.Logout(); err != nil {
				return err
			}
			cmd.Println("Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			if err := a.requireLogin(); err != nil {
				return err
			}
			u := a.session.User()
			if u == nil {
				return fmt.Errorf("session has no stored profile; run 'connectify profile show'")
			}
			cmd.Printf("%s (@%s) <%s>\n", u.Author().DisplayName(), u.Username, u.Email)
			if exp, ok := a.session.TokenExpiry(); ok {
				cmd.Printf("Session expires %s (in %s)\n", exp.Local().Format(time.RFC1123), time.Until(exp).Round(time.Minute))
			}
			return nil
		},
	}
}

func newProfileCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Fetch your profile from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			if err := a.requireLogin(); err != nil {
				return err
			}
			u, err := a.client.Me(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load profile"))
			}
			if err := a.session.UpdateUser(*u); err != nil {
				return err
			}
			printProfile(cmd, a.cfg.API.MediaBaseURL, u)
			return nil
		},
	}

	var firstName, lastName, bio string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change your name or bio",
		Long: `Change profile fields. Only flags that are given are sent.

Examples:
  connectify profile update --bio "Analytical engines and poetry"
  connectify profile update --first-name Ada --last-name Lovelace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			if err := a.requireLogin(); err != nil {
				return err
			}
			var upd api.ProfileUpdate
			if cmd.Flags().Changed("first-name") {
				upd.FirstName = &firstName
			}
			if cmd.Flags().Changed("last-name") {
				upd.LastName = &lastName
			}
			if cmd.Flags().Changed("bio") {
				upd.Bio = &bio
			}
			if upd.FirstName == nil && upd.LastName == nil && upd.Bio == nil {
				return fmt.Errorf("nothing to update: pass --first-name, --last-name or --bio")
			}

			u, err := a.client.UpdateMe(cmd.Context(), upd)
			if err != nil {
				return errors.New(api.Message(err, "Failed to update profile"))
			}
			if err := a.session.UpdateUser(*u); err != nil {
				return err
			}
			printProfile(cmd, a.cfg.API.MediaBaseURL, u)
			return nil
		},
	}
	update.Flags().StringVar(&firstName, "first-name", "", "first name")
	update.Flags().StringVar(&lastName, "last-name", "", "last name")
	update.Flags().StringVar(&bio, "bio", "", "short bio")

	cmd.AddCommand(show, update)
	return cmd
}

func printProfile(cmd *cobra.Command, mediaBase string, u *api.User) {
	cmd.Printf("%s (@%s)\n", u.Author().DisplayName(), u.Username)
	cmd.Printf("  email:   %s\n", u.Email)
	if u.Bio != "" {
		cmd.Printf("  bio:     %s\n", u.Bio)
	}
	if u.ProfilePicture != "" {
		cmd.Printf("  picture: %s\n", post.MediaURL(mediaBase, u.ProfilePicture))
	}
	if !u.DateJoined.IsZero() {
		cmd.Printf("  joined:  %s\n", u.DateJoined.Format("January 2006"))
	}
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimRight(sc.Text(), "\r"), nil
}

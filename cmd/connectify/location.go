package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/connectify/internal/location"
)

func newLocationCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Search places and manage recent locations",
		Long: `Look up places for a post's location tag. Lookups use the OpenStreetMap
Nominatim service (location.geocoder_url) and are limited to one request per
second.`,
	}
	cmd.AddCommand(newLocationSearchCmd(o), newLocationHereCmd(o), newLocationRecentCmd(o))
	return cmd
}

func newLocationSearchCmd(o *rootOptions) *cobra.Command {
	var pick int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find places by name",
		Long: `Find places by name. With a query argument one lookup is made. Without
one, each line read from stdin is treated as the text typed so far and only
the latest line is looked up once typing pauses (location.debounce).

Examples:
  connectify location search "lisbon"
  connectify location search "café central vienna" --select 1
  connectify location search`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			g, err := a.newGeocoder()
			if err != nil {
				return err
			}

			var places []location.Place
			if len(args) == 1 {
				places, err = g.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printPlaces(cmd, places)
			} else {
				places, err = searchInteractive(cmd.Context(), cmd, g, a.cfg.Location.Debounce)
				if err != nil {
					return err
				}
			}

			if pick == 0 {
				return nil
			}
			if pick < 0 || pick > len(places) {
				return fmt.Errorf("--select %d out of range: %d results", pick, len(places))
			}
			chosen := places[pick-1]
			recent := location.LoadRecent(a.store, a.cfg.Location.RecentMax)
			if err := recent.Add(chosen); err != nil {
				return err
			}
			cmd.Printf("Selected %s\n", chosen.ShortName)
			return nil
		},
	}
	cmd.Flags().IntVar(&pick, "select", 0, "remember result N (1-based) as a recent location")
	return cmd
}

// searchInteractive feeds stdin lines through a debounced searcher, printing
// each current result set. At end of input it waits for the last query.
func searchInteractive(ctx context.Context, cmd *cobra.Command, f location.Finder, debounce time.Duration) ([]location.Place, error) {
	results := make(chan location.Result, 1)
	s := location.NewSearcher(f, debounce, func(r location.Result) {
		// Keep only the newest undelivered result.
		select {
		case <-results:
		default:
		}
		results <- r
	})
	defer s.Stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		last    location.Result
		pending bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if !pending {
					return last.Places, last.Err
				}
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			s.Query(line)
			pending = true
		case r := <-results:
			if r.Seq != s.Latest() {
				continue
			}
			last, pending = r, false
			if r.Err != nil {
				cmd.PrintErrln(r.Err)
			} else {
				cmd.Printf("Results for %q:\n", r.Query)
				printPlaces(cmd, r.Places)
			}
			if lines == nil {
				return last.Places, last.Err
			}
		}
	}
}

func newLocationHereCmd(o *rootOptions) *cobra.Command {
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "here",
		Short: "Name the place at given coordinates",
		Long: `Resolve coordinates to a place name and remember it as a recent location.

Examples:
  connectify location here --lat 38.7223 --lon -9.1393`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			g, err := a.newGeocoder()
			if err != nil {
				return err
			}
			p, err := g.Reverse(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}
			if err := location.LoadRecent(a.store, a.cfg.Location.RecentMax).Add(*p); err != nil {
				return err
			}
			cmd.Printf("%s\n  %s\n", p.ShortName, p.Name)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newLocationRecentCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently used locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := o.app
			places := location.LoadRecent(a.store, a.cfg.Location.RecentMax).List()
			if len(places) == 0 {
				cmd.Println("No recent locations")
				return nil
			}
			printPlaces(cmd, places)
			return nil
		},
	}
}

func printPlaces(cmd *cobra.Command, places []location.Place) {
	if len(places) == 0 {
		cmd.Println("  no places found")
		return
	}
	for i, p := range places {
		cmd.Printf("%2d. %s\n    %s\n", i+1, p.ShortName, p.Name)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/app"
	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/imagecache"
	"bitbucket.org/kleinnic74/pinphotos/logging"
	"bitbucket.org/kleinnic74/pinphotos/pins"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pins REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd, f)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := app.NewApp(ctx, app.Options{
				Config:     cfg,
				Registerer: prometheus.DefaultRegisterer,
				Gatherer:   prometheus.DefaultGatherer,
			})
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

func newSearchCommand(f *flags) *cobra.Command {
	var lat, lon float64
	var page int
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search photos around a location and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd, f)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			client := app.NewSearchClient(cfg.Flickr, nil, nil)
			ctx := cmd.Context()
			log := logging.From(ctx)
			if page > 0 {
				result, err := client.SearchPage(ctx, lat, lon, page)
				if err != nil {
					return err
				}
				return printJSON(result)
			}
			result, err := client.SearchRandom(ctx, lat, lon)
			if err != nil {
				return err
			}
			log.Info("Search done", zap.Stringer("outcome", result.Outcome), zap.Int("photos", len(result.Photos)))
			return printJSON(result)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the search center")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude of the search center")
	cmd.Flags().IntVar(&page, "page", 0, "fetch this page instead of a random one")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}

func newPurgeCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove the cached images of all pins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd, f)
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenStore(cfg.Library.Dir)
			if err != nil {
				return err
			}
			defer closeStore()
			opts := []imagecache.Option{imagecache.WithLogger(logging.From(cmd.Context()).Named("imagecache"))}
			if cfg.Cache.Ext != "" {
				opts = append(opts, imagecache.WithExtension(cfg.Cache.Ext))
			}
			cache, err := imagecache.Open(cfg.Cache.Dir, opts...)
			if err != nil {
				return err
			}
			defer cache.Close()
			return pins.NewService(store, nil, cache, nil).PurgeCache(cmd.Context())
		},
	}
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}
	return nil
}

func newListCommand(f *flags) *cobra.Command {
	var order string
	var withPhotos bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the stored pins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd, f)
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenStore(cfg.Library.Dir)
			if err != nil {
				return err
			}
			defer closeStore()
			all, err := store.FindAll(cmd.Context(), consts.SortOrderFrom(order))
			if err != nil {
				return err
			}
			for _, pin := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%d photos\n",
					pin.ID, pin.Created.Format(time.RFC3339), pin.Location, pin.Title, len(pin.Photos))
				if withPhotos {
					for _, p := range pin.Photos {
						fmt.Fprintf(cmd.OutOrStdout(), "\t%s\t%s\n", p.Key(), p.URL)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "asc", "sort order by creation time: asc or desc")
	cmd.Flags().BoolVarP(&withPhotos, "photos", "p", false, "also print the photos of each pin")
	return cmd
}

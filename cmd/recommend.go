package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seoulbike/bikeflow/app"
	"github.com/seoulbike/bikeflow/core/model"
	"github.com/seoulbike/bikeflow/core/recommend"
)

var (
	fromLat, fromLng float64
	destLat, destLng float64
	purposeFlag      string
	limitFlag        int
	routeFlag        bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print ranked station recommendations for a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			from := model.Point{Lat: fromLat, Lng: fromLng}
			hasDest := cmd.Flags().Changed("dest-lat") && cmd.Flags().Changed("dest-lng")

			if routeFlag {
				if !hasDest {
					return fmt.Errorf("--route requires --dest-lat and --dest-lng")
				}
				plan, err := svc.Advisor.RecommendRoute(ctx, from, model.Point{Lat: destLat, Lng: destLng})
				if err != nil {
					return err
				}
				return enc.Encode(plan)
			}

			q := recommend.Query{
				From:    from,
				Purpose: model.ParsePurpose(purposeFlag),
				Limit:   limitFlag,
			}
			if hasDest {
				q.Destination = &model.Point{Lat: destLat, Lng: destLng}
			}
			recs, err := svc.Scorer.Recommend(ctx, q)
			if err != nil {
				return err
			}
			return enc.Encode(recs)
		})
	},
}

func init() {
	recommendCmd.Flags().Float64Var(&fromLat, "lat", 0, "query point latitude")
	recommendCmd.Flags().Float64Var(&fromLng, "lng", 0, "query point longitude")
	recommendCmd.Flags().Float64Var(&destLat, "dest-lat", 0, "destination latitude")
	recommendCmd.Flags().Float64Var(&destLng, "dest-lng", 0, "destination longitude")
	recommendCmd.Flags().StringVar(&purposeFlag, "purpose", "rent", "rent or return")
	recommendCmd.Flags().IntVar(&limitFlag, "limit", 5, "maximum results")
	recommendCmd.Flags().BoolVar(&routeFlag, "route", false, "plan a trip between the query point and the destination")
	_ = recommendCmd.MarkFlagRequired("lat")
	_ = recommendCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(recommendCmd)
}

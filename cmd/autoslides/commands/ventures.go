package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/autoslides/cmd/autoslides/ui"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/storage"
)

var (
	addVenture string
	addBrand   string
	addFolder  string
)

var venturesCmd = &cobra.Command{
	Use:   "ventures",
	Short: "Inspect and edit the venture configuration store",
}

var venturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the brands a run would process",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, db, err := openVentures(appCfg, storage.Filter{
			Ventures: appCfg.Database.Ventures,
			Brands:   appCfg.Database.Brands,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := repo.ListVentures(cmd.Context())
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			ui.Warning("No ventures configured in %s", appCfg.Database.Table)
			return nil
		}

		table := make([][]string, 0, len(rows))
		for _, r := range rows {
			table = append(table, []string{r.Venture, r.Brand, r.FolderID})
		}
		ui.Table([]string{"VENTURE", "BRAND", "FOLDER ID"}, table)
		return nil
	},
}

var venturesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a brand to the configuration store",
	Long: `Add inserts one venture/brand row, creating the table first when it does
not exist yet.

Example:
  autoslides ventures add --venture SG --brand Acme --folder 1AbCdEfGhIjKlMnOpQrStUvWxYz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, db, err := openVentures(appCfg, storage.Filter{})
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		row := domain.VentureConfig{Venture: addVenture, Brand: addBrand, FolderID: addFolder}
		if err := repo.Add(ctx, row); err != nil {
			return err
		}
		ui.Success("Added %s/%s", row.Venture, row.Brand)
		return nil
	},
}

func init() {
	venturesAddCmd.Flags().StringVar(&addVenture, "venture", "", "venture code such as SG (required)")
	venturesAddCmd.Flags().StringVar(&addBrand, "brand", "", "brand name (required)")
	venturesAddCmd.Flags().StringVar(&addFolder, "folder", "", "Drive folder id (required)")
	_ = venturesAddCmd.MarkFlagRequired("venture")
	_ = venturesAddCmd.MarkFlagRequired("brand")
	_ = venturesAddCmd.MarkFlagRequired("folder")

	venturesCmd.AddCommand(venturesListCmd, venturesAddCmd)
	rootCmd.AddCommand(venturesCmd)
}

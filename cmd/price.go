package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/importer"
	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/resolve"
)

var (
	priceHospital  string
	priceProcedure string
	priceAmount    string
	priceNote      string
	priceID        int64
	priceEndDate   string
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Manage hospital price tables",
}

var priceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add the active price of a procedure at a hospital",
	Long:  "Hospital and procedure accept the same tokens as the import sheet: an id, a name, or a TUSS code. The previous active price of the pair is deactivated.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entities := resolve.New(st)
		hospitalID, ok := entities.Hospital(ctx, priceHospital)
		if !ok {
			return eris.Errorf("hospital %q not found", priceHospital)
		}
		procedureID, ok := entities.Procedure(ctx, priceProcedure)
		if !ok {
			return eris.Errorf("procedure %q not found", priceProcedure)
		}

		id, err := newServices(st).Prices.AddPrice(ctx, hospitalID, procedureID, priceAmount, priceNote)
		if err != nil {
			return err
		}
		zap.L().Info("price added",
			zap.Int64("price_id", id),
			zap.Int64("hospital_id", hospitalID),
			zap.Int64("procedure_id", procedureID),
		)
		return nil
	},
}

var priceListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the price history of a hospital",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hospitalID, ok := resolve.New(st).Hospital(ctx, priceHospital)
		if !ok {
			return eris.Errorf("hospital %q not found", priceHospital)
		}
		prices, err := newServices(st).Prices.ListForHospital(ctx, hospitalID)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTUSS\tPROCEDURE\tPRICE\tACTIVE\tEND\tNOTE")
		for _, p := range prices {
			end := "-"
			if p.EndDate != nil {
				end = p.EndDate.Format(model.DateLayout)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\t%s\n", p.ID, p.TUSSCode, p.ProcedureName, p.Price.StringFixed(2), p.Active, end, p.Note)
		}
		return tw.Flush()
	},
}

var priceDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate a price record of a hospital",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hospitalID, ok := resolve.New(st).Hospital(ctx, priceHospital)
		if !ok {
			return eris.Errorf("hospital %q not found", priceHospital)
		}
		if err := newServices(st).Prices.Deactivate(ctx, hospitalID, priceID); err != nil {
			return err
		}
		zap.L().Info("price deactivated", zap.Int64("price_id", priceID))
		return nil
	},
}

var priceCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Record the last day a price record applies",
	Long:  "The record stays active; the end date is kept for the price history only.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		endDate, ok := importer.ParseDateText(priceEndDate)
		if !ok {
			return eris.Errorf("invalid --end-date %q, use YYYY-MM-DD or DD/MM/YYYY", priceEndDate)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hospitalID, ok := resolve.New(st).Hospital(ctx, priceHospital)
		if !ok {
			return eris.Errorf("hospital %q not found", priceHospital)
		}
		if err := newServices(st).Prices.ClosePrice(ctx, hospitalID, priceID, endDate); err != nil {
			return err
		}
		zap.L().Info("price closed",
			zap.Int64("price_id", priceID),
			zap.String("end_date", endDate.Format(model.DateLayout)),
		)
		return nil
	},
}

func init() {
	priceAddCmd.Flags().StringVar(&priceHospital, "hospital", "", "hospital id or name (required)")
	priceAddCmd.Flags().StringVar(&priceProcedure, "procedure", "", "procedure id, TUSS code or name (required)")
	priceAddCmd.Flags().StringVar(&priceAmount, "amount", "", `unit price, "120.50" or "120,50" (required)`)
	priceAddCmd.Flags().StringVar(&priceNote, "note", "", "free text note")
	_ = priceAddCmd.MarkFlagRequired("hospital")
	_ = priceAddCmd.MarkFlagRequired("procedure")
	_ = priceAddCmd.MarkFlagRequired("amount")

	priceListCmd.Flags().StringVar(&priceHospital, "hospital", "", "hospital id or name (required)")
	_ = priceListCmd.MarkFlagRequired("hospital")

	priceDeactivateCmd.Flags().StringVar(&priceHospital, "hospital", "", "hospital id or name (required)")
	priceDeactivateCmd.Flags().Int64Var(&priceID, "id", 0, "price record id (required)")
	_ = priceDeactivateCmd.MarkFlagRequired("hospital")
	_ = priceDeactivateCmd.MarkFlagRequired("id")

	priceCloseCmd.Flags().StringVar(&priceHospital, "hospital", "", "hospital id or name (required)")
	priceCloseCmd.Flags().Int64Var(&priceID, "id", 0, "price record id (required)")
	priceCloseCmd.Flags().StringVar(&priceEndDate, "end-date", "", "last day the price applies (required)")
	_ = priceCloseCmd.MarkFlagRequired("hospital")
	_ = priceCloseCmd.MarkFlagRequired("id")
	_ = priceCloseCmd.MarkFlagRequired("end-date")

	priceCmd.AddCommand(priceAddCmd, priceListCmd, priceDeactivateCmd, priceCloseCmd)
	rootCmd.AddCommand(priceCmd)
}

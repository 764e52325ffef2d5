package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omnissiah/prodledger/internal/model"
	"github.com/omnissiah/prodledger/internal/resolve"
)

var (
	hospitalCorporateName string
	hospitalTradeName     string
	hospitalNickname      string

	userUsername string
	userRole     string
	userFullName string

	linkDoctor   string
	linkHospital string
)

var hospitalCmd = &cobra.Command{
	Use:   "hospital",
	Short: "Manage contracted hospitals",
}

var hospitalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a hospital",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := st.CreateHospital(ctx, model.Hospital{
			CorporateName: hospitalCorporateName,
			TradeName:     hospitalTradeName,
			Nickname:      hospitalNickname,
		})
		if err != nil {
			return err
		}
		zap.L().Info("hospital added", zap.Int64("hospital_id", id))
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage admin and doctor accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		role := model.Role(userRole)
		if role != model.RoleAdmin && role != model.RoleDoctor {
			return eris.Errorf("invalid role %q, use admin or doctor", userRole)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := st.CreateUser(ctx, model.User{Username: userUsername, Role: role, FullName: userFullName})
		if err != nil {
			return err
		}
		zap.L().Info("user added", zap.Int64("user_id", id), zap.String("role", userRole))
		return nil
	},
}

var userLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Allow a doctor to record production at a hospital",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entities := resolve.New(st)
		doctorID, ok := entities.Doctor(ctx, linkDoctor)
		if !ok {
			return eris.Errorf("doctor %q not found", linkDoctor)
		}
		hospitalID, ok := entities.Hospital(ctx, linkHospital)
		if !ok {
			return eris.Errorf("hospital %q not found", linkHospital)
		}
		if err := st.LinkDoctorHospital(ctx, doctorID, hospitalID); err != nil {
			return err
		}
		zap.L().Info("doctor linked", zap.Int64("doctor_id", doctorID), zap.Int64("hospital_id", hospitalID))
		return nil
	},
}

func init() {
	hospitalAddCmd.Flags().StringVar(&hospitalCorporateName, "corporate-name", "", "corporate name (required)")
	hospitalAddCmd.Flags().StringVar(&hospitalTradeName, "trade-name", "", "trade name")
	hospitalAddCmd.Flags().StringVar(&hospitalNickname, "nickname", "", "short name used in spreadsheets")
	_ = hospitalAddCmd.MarkFlagRequired("corporate-name")
	hospitalCmd.AddCommand(hospitalAddCmd)

	userAddCmd.Flags().StringVar(&userUsername, "username", "", "login name (required)")
	userAddCmd.Flags().StringVar(&userRole, "role", string(model.RoleDoctor), "admin or doctor")
	userAddCmd.Flags().StringVar(&userFullName, "full-name", "", "doctor full name")
	_ = userAddCmd.MarkFlagRequired("username")

	userLinkCmd.Flags().StringVar(&linkDoctor, "doctor", "", "doctor username or full name (required)")
	userLinkCmd.Flags().StringVar(&linkHospital, "hospital", "", "hospital id or name (required)")
	_ = userLinkCmd.MarkFlagRequired("doctor")
	_ = userLinkCmd.MarkFlagRequired("hospital")
	userCmd.AddCommand(userAddCmd, userLinkCmd)

	rootCmd.AddCommand(hospitalCmd, userCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/db"
	authService "github.com/evn/shiftbot/internal/services/auth"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	database, err := db.InitDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	logger.Info("schema applied", zap.String("driver", cfg.DatabaseDriver))
	return nil
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	subject := authService.RoleManagement
	if len(args) == 1 {
		subject = args[0]
	}
	token, err := authService.NewJWTService(cfg.JwtSecret).GenerateToken(subject, authService.RoleManagement)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runCheckToken(cmd *cobra.Command, args []string) error {
	subject, role, err := authService.NewJWTService(cfg.JwtSecret).ParseToken(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "subject=%s role=%s\n", subject, role)
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	hash, err := authService.HashPassword(args[0])
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

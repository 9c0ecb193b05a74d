package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/khoahotran/openforge/adapters/persistence"
	"github.com/khoahotran/openforge/internal/domain/user"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/auth"
)

var seedOwnerCmd = &cobra.Command{
	Use:   "seed-owner",
	Short: "Create the operator account, or reset its password",
	Long:  "Reads OWNER_EMAIL and OWNER_PASSWORD from the environment (or .env).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		email := os.Getenv("OWNER_EMAIL")
		password := os.Getenv("OWNER_PASSWORD")
		if email == "" || password == "" {
			return errors.New("OWNER_EMAIL and OWNER_PASSWORD must be set")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("cannot hash password: %w", err)
		}

		ctx := cmd.Context()
		pool, err := persistence.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := persistence.NewPostgresUserRepo(pool)

		existing, err := repo.FindByEmail(ctx, email)
		switch {
		case err == nil:
			if err := repo.UpdatePasswordHash(ctx, existing.ID, hash); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated owner '%s'\n", email)
			return nil
		case errors.Is(err, apperror.ErrNotFound):
			if err := repo.Save(ctx, &user.User{ID: uuid.New(), Email: email, PasswordHash: hash}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added owner '%s'\n", email)
			return nil
		default:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(seedOwnerCmd)
}

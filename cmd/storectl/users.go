package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
	apperrors "github.com/jafarshop/storefront/pkg/errors"
)

func createAdminCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-admin <email> <password>",
		Short: "Create an admin account, or promote an existing user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.ToLower(strings.TrimSpace(args[0]))
			password := args[1]
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := context.Background()

			user, err := e.repos.User.GetByEmail(ctx, email)
			var notFound *apperrors.ErrNotFound
			switch {
			case err == nil:
				user.Role = domain.RoleAdmin
				user.IsActive = true
				if err := e.repos.User.Update(ctx, user); err != nil {
					return err
				}
				fmt.Printf("Promoted %s (%s) to admin. Password unchanged.\n", user.Email, user.ID)
				return nil
			case !errors.As(err, &notFound):
				return err
			}

			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			if name == "" {
				name = strings.SplitN(email, "@", 2)[0]
			}
			user = &domain.User{
				Name:         name,
				Email:        email,
				PasswordHash: hash,
				Role:         domain.RoleAdmin,
				IsActive:     true,
			}
			if err := e.repos.User.Create(ctx, user); err != nil {
				return err
			}
			fmt.Printf("Created admin %s (%s).\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the email local part)")
	return cmd
}

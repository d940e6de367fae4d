package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vedran77/pulse-messenger/internal/repository"
)

func loginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				var err error
				if username == "" {
					if username, err = promptLine("Username"); err != nil {
						return err
					}
				}
				password := os.Getenv("MESSENGER_PASSWORD")
				if password == "" {
					if password, err = promptSecret("Password"); err != nil {
						return err
					}
				}

				if err := a.auth.Login(cmd.Context(), username, password); err != nil {
					return err
				}
				fmt.Printf("Logged in as %s\n", username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				if err := a.auth.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("Logged out")
				return nil
			})
		},
	}
}

func registerCmd() *cobra.Command {
	var input repository.RegisterInput

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Creates an account. An administrator has to confirm it before
you can log in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				var err error
				if input.Name == "" {
					if input.Name, err = promptLine("Full name"); err != nil {
						return err
					}
				}
				if input.Email == "" {
					if input.Email, err = promptLine("Email"); err != nil {
						return err
					}
				}
				if input.Password, err = promptSecret("Password"); err != nil {
					return err
				}

				if err := a.auth.Register(cmd.Context(), input); err != nil {
					return err
				}
				fmt.Println("Registered. Wait for an administrator to confirm your account.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "full name")
	cmd.Flags().StringVar(&input.Email, "email", "", "email address")
	return cmd
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				u, err := a.auth.Profile(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Name:   %s\n", u.DisplayName())
				fmt.Printf("Email:  %s\n", u.Email)
				fmt.Printf("ID:     %s\n", u.ID)
				if len(u.Roles) > 0 {
					fmt.Printf("Roles:  %s\n", strings.Join(u.Roles, ", "))
				}
				if exp := a.session.ExpiresAt(); !exp.IsZero() {
					fmt.Printf("Token:  expires %s\n", relTime(exp))
				}
				return nil
			})
		},
	}
}

func confirmEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-email <user-id> <token>",
		Short: "Confirm an email address from the link you received",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withApp(cmd.Context(), false, func(a *app) error {
				if err := a.auth.ConfirmEmail(cmd.Context(), userID, args[1]); err != nil {
					return err
				}
				fmt.Println("Email confirmed")
				return nil
			})
		},
	}
}

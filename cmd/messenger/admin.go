package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "User, role and audit administration",
	}

	listUsers := func(use, short string, unconfirmed bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), true, func(a *app) error {
					list := a.admin.Users
					if unconfirmed {
						list = a.admin.Unconfirmed
					}
					users, err := list(cmd.Context())
					if err != nil {
						return err
					}
					printUsers(os.Stdout, users)
					return nil
				})
			},
		}
	}
	cmd.AddCommand(listUsers("users", "List all users", false))
	cmd.AddCommand(listUsers("unconfirmed", "List users awaiting confirmation", true))

	cmd.AddCommand(&cobra.Command{
		Use:   "confirm <user-id>",
		Short: "Confirm a user's registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withApp(cmd.Context(), true, func(a *app) error {
				return a.admin.Confirm(cmd.Context(), userID)
			})
		},
	})

	var yes bool
	deleteUser := &cobra.Command{
		Use:   "delete-user <user-id>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			if !yes && !confirm(fmt.Sprintf("Delete user %s?", userID)) {
				return nil
			}
			return withApp(cmd.Context(), true, func(a *app) error {
				return a.admin.DeleteUser(cmd.Context(), userID)
			})
		},
	}
	deleteUser.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(deleteUser)

	cmd.AddCommand(&cobra.Command{
		Use:   "roles",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				roles, err := a.admin.Roles(cmd.Context())
				if err != nil {
					return err
				}
				for _, r := range roles {
					fmt.Printf("%s  %s\n", r.ID, r.Name)
				}
				return nil
			})
		},
	})

	roleOp := func(use, short string, assign bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <user-id> <role>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid user id %q", args[0])
				}
				return withApp(cmd.Context(), true, func(a *app) error {
					if assign {
						return a.admin.AssignRole(cmd.Context(), userID, args[1])
					}
					return a.admin.RemoveRole(cmd.Context(), userID, args[1])
				})
			},
		}
	}
	cmd.AddCommand(roleOp("assign-role", "Give a user a role", true))
	cmd.AddCommand(roleOp("remove-role", "Take a role from a user", false))

	cmd.AddCommand(auditCmd())
	cmd.AddCommand(auditExportCmd())
	return cmd
}

type auditFlags struct {
	user  string
	days  int
	start string
	end   string
}

func (f *auditFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "user id whose entries to show")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().IntVar(&f.days, "days", 0, "only the last N days")
	cmd.Flags().StringVar(&f.start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "end date (YYYY-MM-DD)")
}

func (f *auditFlags) query() (domain.AuditQuery, error) {
	q := domain.AuditQuery{Days: f.days}
	id, err := uuid.Parse(f.user)
	if err != nil {
		return q, fmt.Errorf("invalid user id %q", f.user)
	}
	q.UserID = id

	if q.Start, err = parseDate(f.start); err != nil {
		return q, err
	}
	if q.End, err = parseDate(f.end); err != nil {
		return q, err
	}
	return q, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}

func auditCmd() *cobra.Command {
	var flags auditFlags

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(a *app) error {
				entries, err := a.admin.AuditLog(cmd.Context(), q)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("%s  %s  %-20s %s\n", e.Timestamp.Local().Format(time.DateTime), shortID(e.UserID), e.Action, e.Details)
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func auditExportCmd() *cobra.Command {
	var (
		flags  auditFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "audit-export",
		Short: "Export the audit log to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(a *app) error {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := a.admin.ExportAuditLog(cmd.Context(), q, f); err != nil {
					f.Close()
					os.Remove(output)
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Printf("Exported to %s\n", output)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

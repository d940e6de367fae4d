package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List, download and manage shared documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <chat>",
		Short: "List the documents shared in a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				chat, err := a.chats.Find(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				docs, err := a.docs.List(cmd.Context(), chat.ID)
				if err != nil {
					return err
				}
				printDocuments(os.Stdout, docs)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "download <chat> <document-id> [dir]",
		Short: "Save a document to disk",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[1])
			}
			dir := "."
			if len(args) == 3 {
				dir = args[2]
			}

			return withApp(cmd.Context(), true, func(a *app) error {
				chat, err := a.chats.Find(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				doc, err := a.docs.Find(cmd.Context(), chat.ID, docID)
				if err != nil {
					return err
				}
				path, err := a.docs.Download(cmd.Context(), *doc, dir)
				if err != nil {
					return err
				}
				fmt.Printf("Saved %s\n", path)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rules <document-id>",
		Short: "Show who can access a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			return withApp(cmd.Context(), true, func(a *app) error {
				rules, err := a.access.DocumentRules(cmd.Context(), docID)
				if err != nil {
					return err
				}
				printRules(os.Stdout, rules, roleNames(cmd, a))
				return nil
			})
		},
	})

	cmd.AddCommand(documentAccessCmd())
	return cmd
}

func documentAccessCmd() *cobra.Command {
	var (
		role string
		mask string
	)

	cmd := &cobra.Command{
		Use:   "access <document-id>",
		Short: "Set exactly which document permissions a role holds",
		Long: `Set exactly which document permissions a role holds.
Permissions are a comma separated list of view, download and delete,
or "none" to revoke everything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			if mask == "none" {
				mask = ""
			}
			want, err := parseMask(mask, true)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), true, func(a *app) error {
				r, err := a.admin.FindRole(cmd.Context(), role)
				if err != nil {
					return err
				}
				changes, err := a.access.SetDocumentAccess(cmd.Context(), docID, r.ID, want)
				for _, c := range changes {
					verb := "revoked"
					if c.Grant {
						verb = "granted"
					}
					fmt.Printf("%s %d for role %s\n", verb, c.Flag, r.Name)
				}
				if err == nil && len(changes) == 0 {
					fmt.Println("Nothing to change.")
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "role name or id")
	cmd.Flags().StringVar(&mask, "mask", "", "view,download,delete or none")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("mask")
	return cmd
}

// roleNames labels rules by role name. Without admin rights it stays empty.
func roleNames(cmd *cobra.Command, a *app) map[uuid.UUID]string {
	roles, err := a.admin.Roles(cmd.Context())
	if err != nil {
		a.log.Debug("role names unavailable", "error", err)
		return nil
	}
	names := make(map[uuid.UUID]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	return names
}

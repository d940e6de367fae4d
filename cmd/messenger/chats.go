package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/service"
)

func chatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List and manage chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				chats, err := a.chats.List(cmd.Context())
				if err != nil {
					return err
				}
				printChats(os.Stdout, chats)
				return nil
			})
		},
	}

	cmd.AddCommand(chatCreateCmd())
	cmd.AddCommand(chatRenameCmd())
	cmd.AddCommand(chatDeleteCmd())
	cmd.AddCommand(chatInfoCmd())
	cmd.AddCommand(chatMembersCmd())
	cmd.AddCommand(chatAccessCmd())
	return cmd
}

func parseChatType(s string) (domain.ChatType, error) {
	switch strings.ToLower(s) {
	case "group", "":
		return domain.ChatGroup, nil
	case "dialog", "dm":
		return domain.ChatDialog, nil
	case "channel":
		return domain.ChatChannel, nil
	default:
		return 0, fmt.Errorf("unknown chat type %q (group, dialog, channel)", s)
	}
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func chatCreateCmd() *cobra.Command {
	var (
		chatType string
		members  []string
		role     string
		access   string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseChatType(chatType)
			if err != nil {
				return err
			}
			participants, err := parseUUIDs(members)
			if err != nil {
				return err
			}
			mask, err := parseMask(access, false)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), true, func(a *app) error {
				input := service.CreateChatInput{Name: args[0], Type: t, Participants: participants, Access: mask}
				if role != "" {
					r, err := a.admin.FindRole(cmd.Context(), role)
					if err != nil {
						return err
					}
					input.RoleID = r.ID
				}

				chatID, err := a.chats.Create(cmd.Context(), input)
				if chatID != uuid.Nil {
					fmt.Printf("Created chat %s\n", chatID)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&chatType, "type", "t", "group", "group, dialog or channel")
	cmd.Flags().StringSliceVarP(&members, "member", "m", nil, "user id to add (repeatable)")
	cmd.Flags().StringVar(&role, "role", "", "role to grant access to")
	cmd.Flags().StringVar(&access, "access", "", "chat permissions for --role, e.g. delete-message,manage-access")
	return cmd
}

func chatRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <chat> <new-name>",
		Short: "Rename a chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				chat, err := a.chats.Find(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.chats.Rename(cmd.Context(), chat.ID, args[1])
			})
		},
	}
}

func chatDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <chat>",
		Short: "Delete a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				chat, err := a.chats.Find(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !yes && !confirm(fmt.Sprintf("Delete chat %q?", chat.Name)) {
					return nil
				}
				return a.chats.Delete(cmd.Context(), chat.ID)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func chatInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <chat>",
		Short: "Show a chat with its members and access rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				chat, err := a.chats.Find(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				info, err := a.chats.Info(cmd.Context(), chat.ID)
				if err != nil {
					return err
				}

				fmt.Printf("%s (%s)\n", info.Chat.Name, info.Chat.Type)
				fmt.Printf("Your permissions: %d\n\n", info.Mask)
				fmt.Println("Members:")
				for _, p := range info.Participants {
					admin := ""
					if p.IsAdmin {
						admin = " (admin)"
					}
					fmt.Printf("  %s  %s%s\n", p.UserID, p.Username, admin)
				}
				fmt.Println()
				printRules(os.Stdout, info.Rules, roleNames(cmd, a))
				return nil
			})
		},
	}
}

func chatMembersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage chat members",
	}

	memberOp := func(use, short string, fn func(a *app, cmd *cobra.Command, chatID, userID uuid.UUID) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <chat> <user-id>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := uuid.Parse(args[1])
				if err != nil {
					return fmt.Errorf("invalid user id %q", args[1])
				}
				return withApp(cmd.Context(), true, func(a *app) error {
					chat, err := a.chats.Find(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return fn(a, cmd, chat.ID, userID)
				})
			},
		}
	}

	cmd.AddCommand(memberOp("add", "Add a user to a chat", func(a *app, cmd *cobra.Command, chatID, userID uuid.UUID) error {
		return a.chats.AddParticipant(cmd.Context(), chatID, userID)
	}))
	cmd.AddCommand(memberOp("remove", "Remove a user from a chat", func(a *app, cmd *cobra.Command, chatID, userID uuid.UUID) error {
		return a.chats.RemoveParticipant(cmd.Context(), chatID, userID)
	}))
	cmd.AddCommand(memberOp("promote", "Make a member a chat admin", func(a *app, cmd *cobra.Command, chatID, userID uuid.UUID) error {
		return a.chats.SetAdmin(cmd.Context(), chatID, userID, true)
	}))
	cmd.AddCommand(memberOp("demote", "Revoke chat admin", func(a *app, cmd *cobra.Command, chatID, userID uuid.UUID) error {
		return a.chats.SetAdmin(cmd.Context(), chatID, userID, false)
	}))
	return cmd
}

func chatAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Grant or revoke chat permissions for a role",
	}

	accessOp := func(grant bool) *cobra.Command {
		use, short := "revoke", "Revoke chat permissions from a role"
		if grant {
			use, short = "grant", "Grant chat permissions to a role"
		}
		return &cobra.Command{
			Use:   use + " <chat> <role> <permissions>",
			Short: short,
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				mask, err := parseMask(args[2], false)
				if err != nil {
					return err
				}
				return withApp(cmd.Context(), true, func(a *app) error {
					chat, err := a.chats.Find(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					role, err := a.admin.FindRole(cmd.Context(), args[1])
					if err != nil {
						return err
					}
					if grant {
						return a.access.GrantChat(cmd.Context(), chat.ID, role.ID, mask)
					}
					return a.access.RevokeChat(cmd.Context(), chat.ID, role.ID, mask)
				})
			},
		}
	}

	cmd.AddCommand(accessOp(true))
	cmd.AddCommand(accessOp(false))
	return cmd
}

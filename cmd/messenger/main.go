package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

var (
	version    = "0.1.0"
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:           "messenger",
		Short:         "Terminal client for the corporate messenger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(loginCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(registerCmd())
	root.AddCommand(profileCmd())
	root.AddCommand(confirmEmailCmd())
	root.AddCommand(chatsCmd())
	root.AddCommand(openCmd())
	root.AddCommand(documentsCmd())
	root.AddCommand(adminCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError explains an error in terms the user can act on.
func printError(err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintln(os.Stderr, "Please fix the following:")
		for field, msg := range verr.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
	case errors.Is(err, domain.ErrSessionTerminated):
		fmt.Fprintln(os.Stderr, "Your session has expired. Run `messenger login` again.")
	case errors.Is(err, domain.ErrNotAuthenticated):
		fmt.Fprintln(os.Stderr, "You are not logged in. Run `messenger login` first.")
	case domain.IsTransport(err):
		fmt.Fprintf(os.Stderr, "Could not reach the server: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

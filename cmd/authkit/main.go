package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/atlasworlds/authkit/internal/auth/federated"
	"github.com/atlasworlds/authkit/internal/auth/passwordgrant"
	"github.com/atlasworlds/authkit/internal/auth/providers"
	"github.com/atlasworlds/authkit/internal/config"
	"github.com/atlasworlds/authkit/internal/logger"
	"github.com/atlasworlds/authkit/internal/requester"
	"github.com/atlasworlds/authkit/internal/session"
)

func main() {
	Execute()
}

// app holds the constructed dependency graph for the command handlers.
type app struct {
	Pool      *passwordgrant.Authenticator
	Federated *federated.Authenticator
	Catalog   *requester.Catalog
}

// buildApp assembles the dependency graph. Every component is an
// explicitly constructed instance handed out by the container; nothing
// reaches into ambient globals for its collaborators.
func buildApp() (*app, func(), error) {
	var a app

	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.Load,
			func(c *config.Config) *config.LoggingConfig { return &c.Logging },
			func(c *config.Config) *config.EndpointConfig { return &c.Endpoint },
			func(c *config.Config) *config.PoolConfig { return &c.Pool },
			func(c *config.Config) *config.FederatedConfig { return &c.Federated },
			func(c *config.Config) *config.SessionConfig { return &c.Session },
		),
		fx.Invoke(logger.InitLogger),
		session.Module,
		providers.Module,
		passwordgrant.Module,
		federated.Module,
		requester.Module,
		fx.Populate(&a.Pool, &a.Federated, &a.Catalog),
	)

	if err := fxApp.Start(context.Background()); err != nil {
		return nil, nil, err
	}

	stop := func() {
		a.Federated.Close()
		_ = fxApp.Stop(context.Background())
		_ = logger.Sync()
	}
	return &a, stop, nil
}

// runWithApp wraps a command handler with graph construction and teardown.
func runWithApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		a, stop, err := buildApp()
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		defer stop()

		if err := fn(cmd.Context(), a); err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "authkit",
	Short: "Session and credential management for the world catalog",
	Long: `authkit manages sessions against two identity backends: a
password-grant identity pool and a federated browser-flow provider. It
resolves the bearer credential the catalog API is called with.`,
}

var (
	flagUsername string
	flagPassword string
	flagEmail    string
	flagCode     string
	flagAttrs    map[string]string
	flagGoogle   bool
	flagAll      bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	Run: runWithApp(func(ctx context.Context, a *app) error {
		if flagGoogle {
			identity, _, err := a.Federated.SignInWithPopup(ctx)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Signed in as %s", identity.UID)
			return nil
		}

		tokens, err := a.Pool.SignIn(ctx, flagUsername, flagPassword)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Signed in, session valid until %s", tokens.ExpiresAt.Format(time.RFC3339))
		return nil
	}),
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Register a new identity-pool user",
	Run: runWithApp(func(ctx context.Context, a *app) error {
		if err := a.Pool.SignUp(ctx, flagUsername, flagPassword, flagEmail, flagAttrs); err != nil {
			return err
		}
		pterm.Success.Println("Registered. Check your email for the confirmation code.")
		return nil
	}),
}

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm a pending registration",
	Run: runWithApp(func(ctx context.Context, a *app) error {
		if err := a.Pool.ConfirmSignUp(ctx, flagUsername, flagCode); err != nil {
			return err
		}
		pterm.Success.Println("Registration confirmed.")
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
	Run: runWithApp(func(ctx context.Context, a *app) error {
		if flagGoogle || flagAll {
			if err := a.Federated.SignOut(ctx); err != nil {
				pterm.Warning.Println(err)
			}
		}
		if !flagGoogle || flagAll {
			if err := a.Pool.SignOut(ctx); err != nil {
				return err
			}
		}
		pterm.Success.Println("Signed out.")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current signed-in user",
	Run: runWithApp(func(ctx context.Context, a *app) error {
		if flagGoogle {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			identity, err := a.Federated.GetCurrentUser(ctx)
			if err != nil {
				return err
			}
			if identity == nil {
				pterm.Info.Println("Not signed in.")
				return nil
			}
			pterm.Info.Printfln("%s <%s> %s", identity.UID, identity.Email, identity.DisplayName)
			return nil
		}

		user, err := a.Pool.GetCurrentUser(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			pterm.Info.Println("Not signed in.")
			return nil
		}
		pterm.Info.Printfln("%s <%s>", user.Username, user.Email)
		for name, value := range user.Attributes {
			pterm.Debug.Printfln("  %s = %s", name, value)
		}
		return nil
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the current bearer token, if any",
	Run: runWithApp(func(ctx context.Context, a *app) error {
		var token string
		var err error
		if flagGoogle {
			token, err = a.Federated.GetIDToken(ctx)
		} else {
			token, err = a.Pool.GetValidAccessToken(ctx)
		}
		if err != nil {
			return err
		}
		if token == "" {
			pterm.Info.Println("No valid token.")
			return nil
		}
		fmt.Println(token)
		return nil
	}),
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List catalog folders with the current credential",
	Run: runWithApp(func(ctx context.Context, a *app) error {
		folders, err := a.Catalog.Folders(ctx)
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, folders, "", "  "); err != nil {
			fmt.Println(string(folders))
			return nil
		}
		fmt.Println(pretty.String())
		return nil
	}),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	rootCmd.PersistentFlags().BoolVar(&flagGoogle, "google", false, "Use the federated Google backend")

	for _, cmd := range []*cobra.Command{loginCmd, signupCmd, confirmCmd, whoamiCmd} {
		cmd.Flags().StringVar(&flagUsername, "username", "", "Username or email")
	}
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "Password")
	signupCmd.Flags().StringVar(&flagPassword, "password", "", "Password")
	signupCmd.Flags().StringVar(&flagEmail, "email", "", "Email address")
	signupCmd.Flags().StringToStringVar(&flagAttrs, "attr", nil, "Additional profile attributes (key=value)")
	confirmCmd.Flags().StringVar(&flagCode, "code", "", "Verification code")
	logoutCmd.Flags().BoolVar(&flagAll, "all", false, "Sign out of both backends")

	rootCmd.AddCommand(loginCmd, signupCmd, confirmCmd, logoutCmd, whoamiCmd, tokenCmd, foldersCmd)
}

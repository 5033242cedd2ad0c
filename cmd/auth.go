package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/errs"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and keep the session for later commands",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()
		email, password := credentialsFromFlags(cmd, a)

		if err := a.account.Login(cmd.Context(), email, password); err != nil {
			a.logger.Fatal("signing in", zap.Error(err))
		}
		a.logger.Info("signed in", zap.String("email", strings.ToLower(strings.TrimSpace(email))))
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()
		email, password := credentialsFromFlags(cmd, a)

		if err := a.account.Signup(cmd.Context(), email, password); err != nil {
			a.logger.Fatal("creating account", zap.Error(err))
		}
		a.logger.Info("account created", zap.String("hint", "check your inbox to verify the email address"))
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Run: func(_ *cobra.Command, _ []string) {
		a := newApplication()
		if err := a.store.Clear(); err != nil {
			a.logger.Fatal("signing out", zap.Error(err))
		}
		a.logger.Info("signed out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		user, err := a.account.Profile(cmd.Context())
		if err != nil {
			a.logger.Fatal("getting profile", zap.Error(err))
		}

		fmt.Printf("id:        %d\n", user.ID)
		fmt.Printf("email:     %s\n", user.Email)
		fmt.Printf("verified:  %t\n", user.IsVerified)
		fmt.Printf("created:   %s\n", user.CreatedAt)

		if exp, ok := a.store.Current().ExpiresAt(); ok {
			fmt.Printf("session expires: %s\n", exp.Local().Format("2006-01-02 15:04"))
		}
	},
}

var subscriptionCmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"plan"},
	Short:   "Show the plan and remaining credits",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		sub, err := a.account.Subscription(cmd.Context())
		if err != nil {
			a.logger.Fatal("getting subscription", zap.Error(err))
		}
		printSubscription(sub)
	},
}

var verifyEmailCmd = &cobra.Command{
	Use:   "verify-email [token]",
	Short: "Confirm an email address, or request a new verification email with --resend",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApplication()
		ctx := cmd.Context()

		if email, _ := cmd.Flags().GetString("resend"); email != "" {
			msg, err := a.account.RequestEmailVerification(ctx, email)
			if err != nil {
				a.logger.Fatal("requesting verification email", zap.Error(err))
			}
			a.logger.Info(msg)
			return
		}

		if len(args) == 0 {
			a.logger.Fatal("verification token is required", zap.String("hint", "pass the token from the email or use --resend <email>"))
		}

		msg, err := a.account.VerifyEmail(ctx, args[0])
		if err != nil {
			a.logger.Fatal("verifying email", zap.Error(err))
		}
		a.logger.Info(msg)
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringP("email", "e", "", "account email")
		c.Flags().String("password", "", "account password (prompted when empty)")
	}
	verifyEmailCmd.Flags().String("resend", "", "send a new verification email to this address")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd, subscriptionCmd, verifyEmailCmd)
}

func credentialsFromFlags(cmd *cobra.Command, a *application) (string, string) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	var err error
	if strings.TrimSpace(email) == "" {
		if email, err = promptEmail(); err != nil {
			a.logger.Fatal("reading email", zap.Error(err))
		}
	}
	if password == "" {
		if password, err = promptPassword(); err != nil {
			a.logger.Fatal("reading password", zap.Error(err))
		}
	}
	return email, password
}

func promptEmail() (string, error) {
	p := promptui.Prompt{
		Label: "Email",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("email is required")
			}
			return nil
		},
	}
	return p.Run()
}

func promptPassword() (string, error) {
	p := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < api.MinPasswordLength {
				return fmt.Errorf("password must be at least %d characters", api.MinPasswordLength)
			}
			return nil
		},
	}
	return p.Run()
}

// interactiveLogin prompts for credentials and signs in or up.
func interactiveLogin(ctx context.Context, a *application, signup bool) error {
	email, err := promptEmail()
	if err != nil {
		return err
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}

	if signup {
		return a.account.Signup(ctx, email, password)
	}
	return a.account.Login(ctx, email, password)
}

func printSubscription(sub *api.Subscription) {
	plan := sub.Plan
	if plan == "" {
		plan = string(api.TierFree)
	}

	fmt.Printf("plan:              %s (%s tier)\n", plan, sub.Tier())
	fmt.Printf("remaining credits: %d\n", sub.RemainingCredits)
	fmt.Printf("trial used:        %t\n", sub.TrialUsed)
	if sub.ExpiresAt != nil {
		fmt.Printf("expires:           %s\n", *sub.ExpiresAt)
	}
}

// userMessage is the text to show for a failed operation.
func userMessage(err error) string {
	switch errs.KindOf(err) {
	case errs.KindPaymentRequired:
		return errs.Message(err) + " (see the Pricing view or `resume-matcher subscription`)"
	case errs.KindUnauthorized:
		return errs.Message(err) + " (sign in with `resume-matcher login`)"
	default:
		return errs.Message(err)
	}
}

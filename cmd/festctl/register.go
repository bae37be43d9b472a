package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cache2k25/internal/checkout"
	"cache2k25/internal/model"
)

type registerFlags struct {
	eventID string
	form    checkout.Form
	members []string
	games   []string
	method  string
}

func newRegisterCmd(a *app) *cobra.Command {
	var f registerFlags

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register for an event and pay through the gateway",
		Long: `Register fills the registration form from flags, starts a gateway payment and
prints the checkout URL. It then polls the payment status until the payment
settles, fails, or the poll gives up, and stores the registration on success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := a.logger(cmd)
			out := cmd.OutOrStdout()

			form, err := f.toForm()
			if err != nil {
				return err
			}

			client := a.client()
			cat, err := client.Catalog(ctx)
			if err != nil {
				return fmt.Errorf("fetch events: %w", err)
			}

			store, closeStore, err := a.pendingStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			flow := checkout.NewFlow(cat, client, store, log, checkout.Options{Policy: a.policy, Now: a.now})

			e, err := flow.SelectEvent(f.eventID)
			if err != nil {
				return err
			}
			draft, err := flow.SubmitRegistration(form)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Event: %s\nAmount: %.2f\n", e.Name, draft.TotalAmount)

			session, err := flow.Pay(ctx)
			if err != nil {
				return fmt.Errorf("create payment: %w", err)
			}
			return awaitPayment(out, session)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.eventID, "event", "", "Event id (see 'festctl events')")
	fl.StringVar(&f.form.ParticipantName, "name", "", "Participant name")
	fl.StringVar(&f.form.Email, "email", "", "Participant email")
	fl.StringVar(&f.form.Phone, "phone", "", "Participant phone")
	fl.StringVar(&f.form.College, "college", "", "College")
	fl.StringVar(&f.form.RollNumber, "roll", "", "Roll number")
	fl.StringArrayVar(&f.members, "member", nil, "Team member as name,email,phone,roll (repeatable)")
	fl.StringArrayVar(&f.games, "game-id", nil, "Game id as player,gameId[,character] (repeatable)")
	fl.StringVar(&f.method, "method", string(model.MethodUPI), "Payment method: upi or qr")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newResumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <merchantTransactionId>",
		Short: "Resume polling a payment started by an earlier register run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RedisAddr == "" {
				return errors.New("resume needs REDIS_ADDR: drafts are only kept across runs in Redis")
			}
			ctx := cmd.Context()
			client := a.client()
			cat, err := client.Catalog(ctx)
			if err != nil {
				return fmt.Errorf("fetch events: %w", err)
			}
			store, closeStore, err := a.pendingStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			flow := checkout.NewFlow(cat, client, store, a.logger(cmd), checkout.Options{Policy: a.policy, Now: a.now})
			session, err := flow.Resume(ctx, args[0])
			if err != nil {
				return err
			}
			return awaitPayment(cmd.OutOrStdout(), session)
		},
	}
}

func awaitPayment(out io.Writer, session *checkout.Session) error {
	if session.PaymentURL != "" {
		fmt.Fprintf(out, "Open this link to pay: %s\n", session.PaymentURL)
	}
	fmt.Fprintf(out, "Transaction: %s\nWaiting for payment confirmation...\n", session.MerchantTransactionID)

	regID, err := session.Result()
	switch {
	case errors.Is(err, checkout.ErrPaymentTimeout):
		fmt.Fprintf(out, "Payment not confirmed yet. Verify transaction %s manually or run 'festctl resume %s'.\n",
			session.MerchantTransactionID, session.MerchantTransactionID)
		return err
	case errors.Is(err, checkout.ErrPaymentFailed):
		fmt.Fprintln(out, "Payment failed. No registration was stored.")
		return err
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "Registration successful! Your registration id is %s\n", regID)
	return nil
}

func (f registerFlags) toForm() (checkout.Form, error) {
	form := f.form
	switch model.PaymentMethod(f.method) {
	case model.MethodUPI, model.MethodQR:
		form.PaymentMethod = model.PaymentMethod(f.method)
	default:
		return form, fmt.Errorf("unknown payment method %q", f.method)
	}

	for _, m := range f.members {
		parts := splitFields(m)
		if len(parts) != 4 {
			return form, fmt.Errorf("team member %q: want name,email,phone,roll", m)
		}
		form.TeamMembers = append(form.TeamMembers, model.TeamMember{
			Name: parts[0], Email: parts[1], Phone: parts[2], RollNumber: parts[3],
		})
	}
	for _, g := range f.games {
		parts := splitFields(g)
		if len(parts) < 2 || len(parts) > 3 {
			return form, fmt.Errorf("game id %q: want player,gameId[,character]", g)
		}
		gid := model.GameID{PlayerName: parts[0], GameID: parts[1]}
		if len(parts) == 3 {
			gid.CharacterName = parts[2]
		}
		form.GameIDs = append(form.GameIDs, gid)
	}
	return form, nil
}

func splitFields(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/USSTM/asset-backend/internal/aws"
	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/queue"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(config.Load()).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "devtools",
		Short:        "Local helpers for the email, queue and signature storage stack",
		SilenceUsage: true,
	}
	root.AddCommand(newEmailCmd(cfg), newSignatureCmd(cfg), newRemindCmd(cfg))
	return root
}

func newEmailCmd(cfg *config.Config) *cobra.Command {
	var to, subject, body string

	email := &cobra.Command{Use: "email", Short: "Send or inspect notification email"}
	email.PersistentFlags().StringVar(&to, "to", "test@example.com", "recipient")
	email.PersistentFlags().StringVar(&subject, "subject", "Test email", "subject line")
	email.PersistentFlags().StringVar(&body, "body", "<p>Test message from the asset backend.</p>", "HTML body")

	send := &cobra.Command{
		Use:   "send",
		Short: "Send directly through SES",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := aws.NewSESService(cmd.Context(), cfg.AWS)
			if err != nil {
				return err
			}
			if cfg.AWS.EndpointURL != "" {
				if err := svc.VerifySender(cmd.Context()); err != nil {
					return fmt.Errorf("failed to verify email identity: %w", err)
				}
			}
			if err := svc.SendEmail(cmd.Context(), to, subject, body); err != nil {
				return fmt.Errorf("failed to send email: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "email sent to %s\n", to)
			return nil
		},
	}

	enqueue := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a delivery task for the worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := queue.NewQueue(&cfg.Redis)
			if err != nil {
				return fmt.Errorf("failed to connect to queue: %w", err)
			}
			defer q.Close()

			info, err := q.Enqueue(cmd.Context(), queue.TypeEmailDelivery, queue.EmailDeliveryPayload{
				To:      to,
				Subject: subject,
				Body:    body,
			})
			if err != nil {
				return fmt.Errorf("failed to enqueue task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task enqueued: %s\n", info.ID)
			return nil
		},
	}

	inbox := &cobra.Command{
		Use:   "inbox",
		Short: "List messages captured by LocalStack SES",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printInbox(cmd.Context(), cmd.OutOrStdout(), cfg.AWS.EndpointURL)
		},
	}

	email.AddCommand(send, enqueue, inbox)
	return email
}

type localStackEmail struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Body      struct {
		Text string `json:"text_part"`
		HTML string `json:"html_part"`
	} `json:"Body"`
	Destination struct {
		ToAddresses []string `json:"ToAddresses"`
	} `json:"Destination"`
}

func printInbox(ctx context.Context, out io.Writer, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("AWS_ENDPOINT_URL is not set; the inbox only exists on LocalStack")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+"/_aws/ses", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch LocalStack messages: %w", err)
	}
	defer resp.Body.Close()

	var inbox struct {
		Messages []localStackEmail `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&inbox); err != nil {
		return fmt.Errorf("failed to parse LocalStack response: %w", err)
	}

	if len(inbox.Messages) == 0 {
		fmt.Fprintln(out, "No messages found in LocalStack.")
		return nil
	}

	fmt.Fprintf(out, "Found %d message(s):\n", len(inbox.Messages))
	for i, msg := range inbox.Messages {
		text := msg.Body.Text
		if text == "" {
			text = msg.Body.HTML
		}
		fmt.Fprintf(out, "\n[%d] %s\nTo: %v\nSubject: %s\n%s\n", i+1, msg.Timestamp, msg.Destination.ToAddresses, msg.Subject, text)
	}
	return nil
}

func newSignatureCmd(cfg *config.Config) *cobra.Command {
	sig := &cobra.Command{Use: "signature", Short: "Fetch stored transaction signatures"}

	var outPath string
	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Download a signature image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s3, err := aws.NewS3Service(cmd.Context(), cfg.AWS)
			if err != nil {
				return err
			}
			body, err := s3.GetObject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer body.Close()

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := io.Copy(f, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, outPath)
			return nil
		},
	}
	get.Flags().StringVarP(&outPath, "out", "o", "signature.png", "output file")

	var ttl time.Duration
	link := &cobra.Command{
		Use:   "link <key>",
		Short: "Print a presigned download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s3, err := aws.NewS3Service(cmd.Context(), cfg.AWS)
			if err != nil {
				return err
			}
			url, err := s3.PresignGetURL(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", url)
			return nil
		},
	}
	link.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "link lifetime")

	sig.AddCommand(get, link)
	return sig
}

func newRemindCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Enqueue an overdue reminder sweep now instead of waiting for the schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := queue.NewQueue(&cfg.Redis)
			if err != nil {
				return fmt.Errorf("failed to connect to queue: %w", err)
			}
			defer q.Close()

			info, err := q.Enqueue(cmd.Context(), queue.TypeOverdueReminders, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reminder sweep enqueued: %s\n", info.ID)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/cuongbtq/meeting-pipeline/internal/webhook"
	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Compute the webhook signature of a payload",
	Long:  "Prints the hex HMAC-SHA256 of the payload file, the value a sender puts in the signature header. With --verify the given signature is checked instead.",
	RunE:  runSign,
}

var (
	signPayloadFile string
	signSecret      string
	signVerify      string
)

func init() {
	signCmd.Flags().StringVarP(&signPayloadFile, "payload", "p", "-", "Path to the raw payload, - for stdin")
	signCmd.Flags().StringVarP(&signSecret, "secret", "s", "", "Shared secret (defaults to FATHOM_WEBHOOK_SECRET)")
	signCmd.Flags().StringVar(&signVerify, "verify", "", "Signature to verify against the payload")

	rootCmd.AddCommand(signCmd)
}

func runSign(cmd *cobra.Command, _ []string) error {
	secret := signSecret
	if secret == "" {
		secret = os.Getenv("FATHOM_WEBHOOK_SECRET")
	}
	if secret == "" {
		return fmt.Errorf("--secret is required")
	}

	payload, err := readInput(cmd, signPayloadFile)
	if err != nil {
		return err
	}

	if signVerify != "" {
		if err := webhook.CheckSignature(payload, signVerify, secret); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(payload, secret))
	return nil
}

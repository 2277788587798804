package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ayusman/hasta/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <identity>",
	Short: "Delete the palm registration for an identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

type deleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func runDelete(cmd *cobra.Command, args []string) error {
	return runSafe(func() error {
		identity := args[0]

		p, err := buildPipeline(false)
		if err != nil {
			return err
		}
		defer p.Close()

		existed, err := p.app.Delete(identity)
		if err != nil {
			if errors.Is(err, store.ErrInvalidIdentity) {
				return writeResult(deleteResult{Success: false, Message: "Invalid identity: " + identity})
			}
			return err
		}

		if !existed {
			return writeResult(deleteResult{
				Success: false,
				Message: "No palm registered for this identity",
			})
		}

		return writeResult(deleteResult{
			Success: true,
			Message: "Palm registration deleted successfully",
		})
	})
}

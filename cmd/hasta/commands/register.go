package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ayusman/hasta/internal/detector"
	"github.com/ayusman/hasta/internal/palmprint"
	"github.com/ayusman/hasta/internal/store"
)

var registerCmd = &cobra.Command{
	Use:   "register <image> <identity>",
	Short: "Register a palm image for an identity",
	Long: `Register derives a palm signature from the image and binds it to the
identity. Each identity holds at most one registration; delete the
existing one before re-registering.`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

type registerData struct {
	Identity     string `json:"identity"`
	Signature    string `json:"signature"`
	RegisteredAt string `json:"registeredAt"`
}

type registerResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *registerData `json:"data,omitempty"`
}

func runRegister(cmd *cobra.Command, args []string) error {
	return runSafe(func() error {
		imagePath, identity := args[0], args[1]

		p, err := buildPipeline(true)
		if err != nil {
			if errors.Is(err, detector.ErrUnavailable) {
				return writeResult(registerResult{
					Success: false,
					Message: "Palm recognition model not available",
				})
			}
			return err
		}
		defer p.Close()

		reg, err := p.app.Register(context.Background(), imagePath, identity)
		if err != nil {
			if msg, ok := failureMessage(err, identity); ok {
				return writeResult(registerResult{Success: false, Message: msg})
			}
			return err
		}

		return writeResult(registerResult{
			Success: true,
			Message: "Palm registered successfully",
			Data: &registerData{
				Identity:     reg.Identity,
				Signature:    reg.Signature,
				RegisteredAt: formatTime(reg.RegisteredAt),
			},
		})
	})
}

// failureMessage maps expected pipeline errors to the user-facing message
// of a structured failure. Unrecognized errors are internal and bubble up.
func failureMessage(err error, identity string) (string, bool) {
	switch {
	case errors.Is(err, detector.ErrImageNotFound):
		return "Image not found or unreadable", true
	case errors.Is(err, detector.ErrNoHand), errors.Is(err, palmprint.ErrInsufficientConfidence):
		return "Failed to detect hand keypoints in image. Please ensure your palm is clearly visible.", true
	case errors.Is(err, palmprint.ErrMissingReference):
		return "Failed to measure palm geometry. Please retake the image.", true
	case errors.Is(err, detector.ErrTimeout):
		return "Palm detection timed out", true
	case errors.Is(err, detector.ErrUnavailable):
		return "Palm recognition model not available", true
	case errors.Is(err, store.ErrAlreadyRegistered):
		return "Palm already registered for this identity. Please delete the existing registration first.", true
	case errors.Is(err, store.ErrInvalidIdentity):
		return "Invalid identity: " + identity, true
	}
	return "", false
}

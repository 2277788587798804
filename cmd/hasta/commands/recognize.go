package commands

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/ayusman/hasta/internal/detector"
	"github.com/ayusman/hasta/internal/store"
)

var recognizeThreshold float64

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image> [identity]",
	Short: "Recognize a palm image",
	Long: `Recognize derives a palm signature from the image and compares it to
registered palms. With an identity argument only that registration is
checked (targeted); without one the nearest registered palm is searched
(open-set).

A non-match is still a successful call: the result reports match=false
and the process exits 0.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRecognize,
}

func init() {
	recognizeCmd.Flags().Float64Var(&recognizeThreshold, "threshold", -1,
		"Maximum match distance (negative uses the configured default)")
	rootCmd.AddCommand(recognizeCmd)
}

type recognizeData struct {
	Identity   string   `json:"identity,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Threshold  float64  `json:"threshold"`
}

type recognizeResult struct {
	Success bool           `json:"success"`
	Match   bool           `json:"match"`
	Message string         `json:"message"`
	Data    *recognizeData `json:"data,omitempty"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	return runSafe(func() error {
		imagePath := args[0]
		identity := ""
		if len(args) > 1 {
			identity = args[1]
		}

		p, err := buildPipeline(true)
		if err != nil {
			if errors.Is(err, detector.ErrUnavailable) {
				return writeResult(recognizeResult{
					Success: false,
					Message: "Palm recognition model not available",
				})
			}
			return err
		}
		defer p.Close()

		decision, err := p.app.Recognize(context.Background(), imagePath, identity, recognizeThreshold)
		if err != nil {
			if errors.Is(err, store.ErrNotRegistered) {
				return writeResult(recognizeResult{
					Success: false,
					Match:   false,
					Message: fmt.Sprintf("No palm registered for %s", identity),
				})
			}
			if msg, ok := failureMessage(err, identity); ok {
				return writeResult(recognizeResult{Success: false, Message: msg})
			}
			return err
		}

		data := &recognizeData{Threshold: decision.Threshold}
		if !math.IsInf(decision.BestDistance, 0) {
			distance := decision.BestDistance
			data.Distance = &distance
		}

		if decision.Matched {
			confidence := decision.Confidence
			data.Identity = decision.Identity
			data.Confidence = &confidence
			return writeResult(recognizeResult{
				Success: true,
				Match:   true,
				Message: "Palm recognized successfully",
				Data:    data,
			})
		}

		message := "Palm not recognized"
		if decision.Candidates == 0 {
			message = "No registered palms in database"
		}

		return writeResult(recognizeResult{
			Success: true,
			Match:   false,
			Message: message,
			Data:    data,
		})
	})
}

package commands

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered palms",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

type listRecord struct {
	Identity     string `json:"identity"`
	RegisteredAt string `json:"registeredAt"`
	LastUsed     string `json:"lastUsed"`
}

type listResult struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Records []listRecord `json:"records"`
}

func runList(cmd *cobra.Command, args []string) error {
	return runSafe(func() error {
		p, err := buildPipeline(false)
		if err != nil {
			return err
		}
		defer p.Close()

		summaries, err := p.app.List()
		if err != nil {
			return err
		}

		records := make([]listRecord, 0, len(summaries))
		for _, s := range summaries {
			records = append(records, listRecord{
				Identity:     s.Identity,
				RegisteredAt: formatTime(s.RegisteredAt),
				LastUsed:     formatTime(s.LastUsed),
			})
		}

		return writeResult(listResult{
			Success: true,
			Count:   len(records),
			Records: records,
		})
	})
}

// Package commands implements the hasta command-line interface.
//
// Every subcommand prints a single JSON result envelope on stdout;
// diagnostics go to stderr. The exit code is 0 for any structurally
// successful call (including a logical non-match) and 1 for usage errors
// or unhandled internal failures.
package commands

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/hasta/internal/app"
	"github.com/ayusman/hasta/internal/audit"
	"github.com/ayusman/hasta/internal/config"
	"github.com/ayusman/hasta/internal/detector"
	"github.com/ayusman/hasta/internal/store"
)

var (
	version    string
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hasta",
	Short: "Hasta - Palm recognition from hand keypoints",
	Long: `Hasta identifies people by the geometry of their palm.

A trained hand keypoint model locates 21 landmarks; the distances between
the five knuckle points, normalized by hand size, form a compact palm
signature that is registered per identity and matched against later
captures.

Results are printed as JSON on stdout; progress and diagnostics go to
stderr.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	defaultConfig := filepath.Join(configBase(), "hasta.yml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to the hasta config file")
}

func configBase() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".hasta")
}

// pipeline holds an assembled App and its closable collaborators.
type pipeline struct {
	app      *app.App
	audit    *audit.Log
	detector detector.Detector
}

func (p *pipeline) Close() {
	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}
	if p.audit != nil {
		if err := p.audit.Close(); err != nil {
			log.Printf("Error closing audit log: %v", err)
		}
	}
}

// buildPipeline assembles the recognition pipeline from the config file.
// The detector is only constructed when the command needs one; delete and
// list work without a model.
func buildPipeline(needDetector bool) (*pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	p := &pipeline{}

	if cfg.AuditDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.AuditDB), 0o755); err != nil {
			log.Printf("Audit log unavailable: %v", err)
		} else if l, err := audit.Open(cfg.AuditDB); err != nil {
			log.Printf("Audit log unavailable: %v", err)
		} else {
			p.audit = l
		}
	}

	var det detector.Detector
	if needDetector {
		det, err = detector.NewYOLODetector(detector.Config{
			ModelPath:  cfg.ModelPath,
			PythonPath: cfg.PythonPath,
		})
		if err != nil {
			p.Close()
			return nil, err
		}
		p.detector = det
	}

	timeout, err := cfg.ParseDetectTimeout()
	if err != nil {
		timeout = app.DefaultDetectTimeout
	}

	p.app = app.New(app.Config{
		Store:         st,
		Detector:      det,
		Audit:         p.audit,
		Threshold:     cfg.Threshold,
		DetectTimeout: timeout,
	})

	return p, nil
}

// writeResult prints the JSON envelope on stdout.
func writeResult(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// runSafe wraps a command body so an unexpected panic becomes a logged
// generic failure instead of a crash dump on stdout.
func runSafe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Internal error: %v", r)
			writeResult(map[string]interface{}{
				"success": false,
				"message": "Internal error",
			})
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return fn()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

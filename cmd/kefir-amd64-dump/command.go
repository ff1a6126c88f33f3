package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kefirc/amd64cg/internal/asmfmt/asmfmttest"
	"github.com/kefirc/amd64cg/internal/codegen"
	"github.com/kefirc/amd64cg/internal/config"
	"github.com/kefirc/amd64cg/internal/ir"
)

type dumpOptions struct {
	pic         bool
	emulatedTLS bool
	verbose     bool
}

// NewDumpCommand builds the root command, following the teacher's
// NewXxxCommand() *cobra.Command factory convention.
func NewDumpCommand() *cobra.Command {
	opts := &dumpOptions{}

	cmd := &cobra.Command{
		Use:   "kefir-amd64-dump <fixture.yaml>",
		Short: "Translate a textual IR fixture into AMD64 assembly for inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.pic, "pic", false, "translate under position-independent addressing")
	flags.BoolVar(&opts.emulatedTLS, "emulated-tls", false, "use the emulated-TLS thread-local access scheme")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log translation progress to stderr")

	return cmd
}

func runDump(cmd *cobra.Command, path string, opts *dumpOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}

	mod, err := ir.LoadFixture(data)
	if err != nil {
		return fmt.Errorf("loading fixture: %w", err)
	}

	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	if !opts.verbose {
		log.SetLevel(logrus.WarnLevel)
	}

	cfg := config.Default()
	cfg.PositionIndependentCode = opts.pic
	cfg.EmulatedTLS = opts.emulatedTLS

	translator := codegen.NewTranslator(cfg, logrus.NewEntry(log))

	out := cmd.OutOrStdout()
	for _, fn := range mod.Functions {
		rec := &asmfmttest.Recorder{}
		if err := translator.TranslateFunction(rec, mod, fn); err != nil {
			return fmt.Errorf("translating %s: %w", fn.Name, err)
		}
		fmt.Fprintf(out, "; %s\n%s", fn.Name, rec.String())
	}

	return nil
}

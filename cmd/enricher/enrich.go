package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hpn/hpn-co2-enricher/internal/config"
	"github.com/hpn/hpn-co2-enricher/internal/domain"
	"github.com/hpn/hpn-co2-enricher/internal/store"
	"github.com/hpn/hpn-co2-enricher/internal/ui"
)

type enrichOptions struct {
	file   string
	apiKey string
	save   bool
}

func newEnrichCmd(root *rootOptions) *cobra.Command {
	opts := &enrichOptions{}

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Estimate the CO2 footprint of one product described in a YAML or JSON file",
		Example: `  hpn-co2-enricher enrich --file product.yaml
  hpn-co2-enricher enrich --file - --save < product.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			product, err := readProduct(opts.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runEnrich(cmd.Context(), cfg, logger, opts, product, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", `product file (YAML or JSON), "-" for stdin`)
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Gemini API key (default: stored key, then "+config.EnvAPIKeys+")")
	cmd.Flags().BoolVar(&opts.save, "save", false, "add the product and its estimate to history")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runEnrich(ctx context.Context, cfg *config.Configuration, logger *slog.Logger, opts *enrichOptions, p domain.Product, stdout, stderr io.Writer) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	key, err := resolveCLIKey(ctx, opts.apiKey, st, cfg.Gemini.APIKeys)
	if err != nil {
		return err
	}

	registry := newRegistry(cfg, logger, ui.NewConsole(stderr))
	result, err := registry.Enrich(ctx, p, key)
	if err != nil {
		return err
	}

	if opts.save {
		inserted, err := st.SaveProduct(ctx, p, result)
		if err != nil {
			return err
		}
		if !inserted {
			fmt.Fprintf(stderr, "product %s is already in history, not saved again\n", p.ID)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// resolveCLIKey picks the flag, then the stored key, then the first configured server key.
func resolveCLIKey(ctx context.Context, flag string, st *store.Store, serverKeys []string) (string, error) {
	if k := strings.TrimSpace(flag); k != "" {
		return k, nil
	}
	k, err := st.GeminiAPIKey(ctx)
	if err != nil {
		return "", err
	}
	if k != "" {
		return k, nil
	}
	if len(serverKeys) > 0 {
		return serverKeys[0], nil
	}
	return "", domain.ErrMissingAPIKey
}

// readProduct decodes a product from path, or from stdin when path is "-".
// YAML is a superset of JSON, so both formats go through the YAML decoder.
func readProduct(path string, stdin io.Reader) (domain.Product, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("read product file: %w", err)
	}

	var p domain.Product
	if err := yaml.Unmarshal(data, &p); err != nil {
		return domain.Product{}, fmt.Errorf("decode product file: %w", err)
	}
	if strings.TrimSpace(p.Title) == "" {
		return domain.Product{}, fmt.Errorf("product file %s: title is required", path)
	}
	return p, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Akansha-Mulchandani/GAIA/internal/cache"
	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	"github.com/Akansha-Mulchandani/GAIA/internal/jobs"
	"github.com/Akansha-Mulchandani/GAIA/internal/realtime"
	"github.com/Akansha-Mulchandani/GAIA/internal/server"
)

const classifyTimeout = 60 * time.Second

// options are the persistent flags shared by every command.
type options struct {
	apiURL     string
	gatewayURL string
	cacheDir   string
	noRealtime bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "gaiactl",
		Short:        "Command-line access to the GAIA backend",
		Long:         `gaiactl reads console data, runs intervention simulations and classifies images through the same client the GAIA console uses.`,
		SilenceUsage: true,
	}

	cfg := server.LoadConfig()
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", cfg.ResolveBaseURL(), "backend API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.gatewayURL, "gateway", "http://localhost:"+cfg.Port, "GAIA gateway URL used for uploads")
	rootCmd.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "persist cached reads in a badger database at this path")
	rootCmd.PersistentFlags().BoolVar(&opts.noRealtime, "no-realtime", false, "track simulations by polling only")

	rootCmd.AddCommand(newGetCmd(opts), newSimulateCmd(opts), newClassifyCmd(opts))
	return rootCmd
}

// newClient builds the backend client; the returned func releases the cache.
func (o *options) newClient() (*client.Client, func(), error) {
	var (
		durable cache.Store
		closeFn = func() {}
	)
	if o.cacheDir != "" {
		store, err := cache.OpenBadgerStore(cache.BadgerConfig{Path: o.cacheDir, MaxAge: 24 * time.Hour})
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		durable = store
		closeFn = func() { _ = store.Close() }
	}
	c := client.New(client.Config{
		BaseURL: o.apiURL,
		Cache:   cache.New(durable),
	})
	return c, closeFn, nil
}

func newGetCmd(opts *options) *cobra.Command {
	var (
		ttl     time.Duration
		retries int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch a backend read endpoint through the response cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := opts.newClient()
			if err != nil {
				return err
			}
			defer closeFn()

			payload, err := c.CachedFetchJSON(cmd.Context(), args[0], nil, client.CacheOptions{
				TTL:     ttl,
				Retries: retries,
				Timeout: timeout,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", client.DefaultCacheTTL, "serve a cached copy younger than this")
	cmd.Flags().IntVar(&retries, "retries", client.DefaultRetries, "retries after the first attempt")
	cmd.Flags().DurationVar(&timeout, "timeout", client.DefaultCachedTimeout, "timeout of each attempt")
	return cmd
}

func newSimulateCmd(opts *options) *cobra.Command {
	iv := core.DefaultIntervention()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Create and run an intervention simulation and wait for its result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			c, closeFn, err := opts.newClient()
			if err != nil {
				return err
			}
			defer closeFn()

			var events jobs.EventSource
			if !opts.noRealtime {
				if rt := connectRealtime(ctx, opts.apiURL); rt != nil {
					defer rt.Disconnect()
					events = rt
				}
			}
			svc := jobs.NewSimulationService(c, events)

			id, err := svc.Create(ctx)
			if err != nil {
				return fmt.Errorf("create simulation: %w", err)
			}
			fmt.Fprintf(out, "simulation %d created\n", id)

			job, source, err := svc.RunAndWatch(ctx, id, iv, func(j *core.Job) {
				fmt.Fprintf(out, "%3d%% %s\n", j.Progress, j.Phase)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "simulation %d %s (via %s)\n", job.ID, job.Status, source)
			if job.Status == core.StatusFailed {
				return fmt.Errorf("simulation %d failed", job.ID)
			}
			if !job.HasResults() {
				return nil
			}
			if res, err := job.SimulationResults(); err == nil {
				printSummary(out, res)
			}
			return printJSON(out, job.Results)
		},
	}
	cmd.Flags().StringVar(&iv.Action, "action", iv.Action, "intervention action")
	cmd.Flags().Float64Var(&iv.Intensity, "intensity", iv.Intensity, "intervention intensity between 0 and 1")
	cmd.Flags().IntVar(&iv.SpeciesLimit, "species-limit", iv.SpeciesLimit, "maximum number of species simulated")
	cmd.Flags().StringVar(&iv.Sampling, "sampling", iv.Sampling, "species sampling strategy")
	return cmd
}

// connectRealtime opens the realtime channel next to apiURL. It returns nil
// when no channel can be derived; a channel that never connects is harmless
// because polling still observes the run.
func connectRealtime(ctx context.Context, apiURL string) *realtime.Client {
	wsURL, err := realtime.DeriveURL(apiURL, realtime.DefaultPath)
	if err != nil {
		return nil
	}
	rt := realtime.New(realtime.Config{URL: wsURL, ReconnectAttempts: 3})
	if err := rt.Connect(ctx); err != nil {
		return nil
	}
	return rt
}

func newClassifyCmd(opts *options) *cobra.Command {
	var (
		gemini      bool
		speciesHint string
	)
	cmd := &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify a butterfly image through the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, contentType, err := multipartFile(args[0])
			if err != nil {
				return err
			}

			if speciesHint != "" && !gemini {
				return errors.New("--species-hint requires --gemini")
			}
			path := "/butterfly/classify"
			switch {
			case gemini && speciesHint != "":
				path = "/butterfly/gemini?species_hint=" + url.QueryEscape(speciesHint)
			case gemini:
				path = "/gemini/classify"
			}

			gw := client.New(client.Config{BaseURL: opts.gatewayURL + client.NamespacePrefix})
			resp, err := gw.FetchWithRetry(cmd.Context(), path, &client.Request{
				Method: http.MethodPost,
				Header: http.Header{"Content-Type": {contentType}},
				Body:   body,
			}, 0, classifyTimeout)
			if err != nil {
				var apiErr *core.APIError
				if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
					_ = printJSON(cmd.ErrOrStderr(), apiErr.Body)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Body)
		},
	}
	cmd.Flags().BoolVar(&gemini, "gemini", false, "use the Gemini classifier")
	cmd.Flags().StringVar(&speciesHint, "species-hint", "", "species hint; with --gemini the result is also stored")
	return cmd
}

func multipartFile(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func printSummary(w io.Writer, r *core.SimulationResults) {
	fmt.Fprintf(w, "population change %+.1f%%, risk change %+.1f%%, biodiversity index %.2f\n",
		r.PopulationChangePercent, r.RiskChangePercent, r.BiodiversityIndex)
	for _, tr := range r.Trajectories {
		fmt.Fprintf(w, "  %-24s %8.0f -> %.0f\n", tr.Species, tr.Before, tr.After)
	}
}

func printJSON(w io.Writer, payload []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

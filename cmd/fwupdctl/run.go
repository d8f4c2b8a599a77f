package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/fwupdctl/internal/config"
	"github.com/danmuck/fwupdctl/internal/fdsim"
	"github.com/danmuck/fwupdctl/internal/fwpkg"
	"github.com/danmuck/fwupdctl/internal/statusapi"
	"github.com/danmuck/fwupdctl/internal/update"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
		serve      bool
		statusAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rehearse an update campaign against simulated devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadCampaign(configPath)
			if err != nil {
				return err
			}
			if statusAddr != "" {
				cfg.StatusAddr = statusAddr
			}
			pkg, err := fwpkg.LoadManifest(cfg.Package)
			if err != nil {
				return err
			}
			return runCampaign(cmd, cfg, pkg, serve, asJSON)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "campaign.toml", "campaign config path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the final campaign status as JSON")
	cmd.Flags().BoolVar(&serve, "serve", false, "serve the status API while the campaign runs")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "status API listen address (overrides status_addr)")
	return cmd
}

func runCampaign(cmd *cobra.Command, cfg config.Campaign, pkg *fwpkg.Package, serve, asJSON bool) error {
	campaign := update.NewCampaign(len(cfg.Devices), update.Options{
		Config: cfg.Update,
		Progress: func(percent int) {
			log.Info().Int("percent", percent).Msg("campaign progress")
		},
	})
	devices := make([]*fdsim.Device, 0, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		dev := fdsim.New(dc.Name, dc.Behavior)
		if _, err := campaign.CreateSession(dev, pkg); err != nil {
			return fmt.Errorf("create session %s: %w", dc.Name, err)
		}
		devices = append(devices, dev)
	}

	if serve {
		ctx, cancel := context.WithCancel(cmd.Context())
		srv := statusapi.New("fwupdctl", cfg.StatusAddr, cfg.CorsOrigins, campaign)
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()
		defer func() {
			cancel()
			if err := <-done; err != nil {
				log.Warn().Err(err).Msg("status api stopped")
			}
		}()
	}

	result, runErr := campaign.ExecuteAll(cmd.Context())
	if runErr == nil {
		runErr = verifyImages(pkg, devices)
	}

	status := campaign.Status()
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			return err
		}
	} else if err := writeResult(cmd.OutOrStdout(), result, status); err != nil {
		return err
	}
	return runErr
}

// verifyImages compares what every simulated device received against the
// package images.
func verifyImages(pkg *fwpkg.Package, devices []*fdsim.Device) error {
	for _, dev := range devices {
		for i, c := range pkg.ComponentTable() {
			got, ok := dev.Image(c.ID)
			if !ok {
				continue
			}
			want := make([]byte, c.Size)
			if err := pkg.ReadImage(i, 0, want); err != nil {
				return err
			}
			if !bytes.Equal(got, want) {
				return fmt.Errorf("%s: component %d image mismatch", dev.DeviceName(), c.ID)
			}
		}
	}
	return nil
}

func writeResult(w io.Writer, result update.Result, status update.Status) error {
	outcome := "ok"
	if result.Kind != update.KindNone {
		outcome = fmt.Sprintf("failed (%s, code 0x%02x)", result.Kind, result.Code)
	}
	if _, err := fmt.Fprintf(w, "campaign %s: %s\n  sessions=%d failed=%d activation=0x%04x\n",
		result.ID, outcome, result.Sessions, result.Failed, result.ActivationMethods); err != nil {
		return err
	}
	for _, d := range status.Devices {
		line := fmt.Sprintf("  %-12s %-20s phase=%-16s served=%d", d.Name, d.State, d.Phase, d.BytesServed)
		if d.Error != "" {
			line += " error=" + d.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/fwupdctl/internal/fwpkg"
)

type packageView struct {
	Identifier     string          `json:"identifier"`
	FormatRevision uint8           `json:"format_revision"`
	Release        time.Time       `json:"release"`
	Version        string          `json:"version"`
	Components     []componentView `json:"components"`
	Devices        []deviceView    `json:"devices"`
}

type componentView struct {
	Index            int    `json:"index"`
	Classification   uint16 `json:"classification"`
	ID               uint16 `json:"id"`
	Size             uint32 `json:"size"`
	Version          string `json:"version"`
	ComparisonStamp  uint32 `json:"comparison_stamp"`
	ForceUpdate      bool   `json:"force_update"`
	ActivationMethod uint16 `json:"activation_method"`
}

type deviceView struct {
	ImageSetVersion string   `json:"image_set_version"`
	Descriptors     []string `json:"descriptors"`
	Components      []int    `json:"components"`
}

func newInspectCmd() *cobra.Command {
	var (
		manifest string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the components and device records of a package manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pkg, err := fwpkg.LoadManifest(manifest)
			if err != nil {
				return err
			}
			view := describePackage(pkg)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return writePackage(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "bundle.toml", "package manifest path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func describePackage(pkg *fwpkg.Package) packageView {
	view := packageView{
		Identifier:     pkg.Header.Identifier.String(),
		FormatRevision: pkg.Header.FormatRevision,
		Release:        pkg.Header.ReleaseDateTime,
		Version:        pkg.Header.Version.String(),
	}
	for i, c := range pkg.ComponentTable() {
		view.Components = append(view.Components, componentView{
			Index:            i,
			Classification:   c.Classification,
			ID:               c.ID,
			Size:             c.Size,
			Version:          c.Version.String(),
			ComparisonStamp:  c.ComparisonStamp,
			ForceUpdate:      c.ForceUpdate(),
			ActivationMethod: c.RequestedActivationMethod,
		})
	}
	for _, rec := range pkg.Devices {
		dv := deviceView{ImageSetVersion: rec.ImageSetVersion.String()}
		for _, d := range rec.Descriptors {
			dv.Descriptors = append(dv.Descriptors, fmt.Sprintf("%04x:%s", d.Type, hex.EncodeToString(d.Data)))
		}
		for i := range pkg.Components {
			if rec.Applicable(i) {
				dv.Components = append(dv.Components, i)
			}
		}
		view.Devices = append(view.Devices, dv)
	}
	return view
}

func writePackage(w io.Writer, view packageView) error {
	if _, err := fmt.Fprintf(w, "package %s (%s) revision %d\n", view.Version, view.Identifier, view.FormatRevision); err != nil {
		return err
	}
	for _, c := range view.Components {
		force := ""
		if c.ForceUpdate {
			force = " force"
		}
		if _, err := fmt.Fprintf(w, "  component[%d] class=0x%04x id=%d version=%s size=%d activation=0x%04x%s\n",
			c.Index, c.Classification, c.ID, c.Version, c.Size, c.ActivationMethod, force); err != nil {
			return err
		}
	}
	for i, d := range view.Devices {
		if _, err := fmt.Fprintf(w, "  device[%d] set=%s descriptors=%v components=%v\n",
			i, d.ImageSetVersion, d.Descriptors, d.Components); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/sells-group/geocoder-cli/internal/export"
	"github.com/sells-group/geocoder-cli/internal/translate"
	"github.com/sells-group/geocoder-cli/pkg/geocode"
)

var (
	lookupFormat string
	lookupOutput string
	lookupFields []string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Geocode a single free-form query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		session, err := geocode.NewSession(cfg.SessionOptions())
		if err != nil {
			return err
		}
		defer session.Close()

		query := strings.Join(args, " ")
		rs, err := session.Geocode(ctx, query)
		if err != nil {
			return err
		}

		zap.L().Debug("lookup complete",
			zap.String("query", query),
			zap.Int("results", rs.Len()),
			zap.String("cache", session.CacheLocator()),
		)

		switch lookupFormat {
		case "table":
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(rs, lookupFields))
			return nil
		case "geojson":
			data, err := export.GeoJSON(rs)
			if err != nil {
				return err
			}
			if lookupOutput != "" {
				return os.WriteFile(lookupOutput, data, 0o644)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		case "shp":
			if lookupOutput == "" {
				return eris.New("lookup: --output is required for shp format")
			}
			n, err := export.Shapefile(rs, lookupOutput)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d features to %s\n", n, lookupOutput)
			return nil
		default:
			return eris.Errorf("lookup: unknown format %q", lookupFormat)
		}
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupFormat, "format", "table", "output format: table, geojson or shp")
	lookupCmd.Flags().StringVarP(&lookupOutput, "output", "o", "", "output file (required for shp)")
	lookupCmd.Flags().StringSliceVar(&lookupFields, "fields", nil, "restrict table columns to these field names")
	rootCmd.AddCommand(lookupCmd)
}

// renderTable formats a result set as an ASCII table, one column per
// discovered field plus the geometry as WKT. A non-empty fields list
// restricts the columns shown.
func renderTable(rs *translate.ResultSet, fields []string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	indexes := make([]int, 0, len(rs.Fields()))
	if len(fields) == 0 {
		for i := range rs.Fields() {
			indexes = append(indexes, i)
		}
	} else {
		for _, name := range fields {
			if idx := rs.FieldIndex(name); idx >= 0 {
				indexes = append(indexes, idx)
			}
		}
	}

	header := make(table.Row, 0, len(indexes)+1)
	for _, idx := range indexes {
		header = append(header, rs.Fields()[idx].Name)
	}
	header = append(header, "geometry")
	t.AppendHeader(header)

	for i := 0; i < rs.Len(); i++ {
		row := rs.Row(i)
		cells := make(table.Row, 0, len(indexes)+1)
		for _, idx := range indexes {
			v, ok := row.Value(idx)
			if !ok {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, v.String())
		}
		cells = append(cells, geometryWKT(row))
		t.AppendRow(cells)
	}

	return t.Render()
}

func geometryWKT(row *translate.Row) string {
	g := row.Geometry()
	if g == nil {
		return ""
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return ""
	}
	return s
}

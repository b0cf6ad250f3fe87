package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/brawl/internal/catalog"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Path string
}

// CatalogListing is the printable content of a catalog.
type CatalogListing struct {
	Characters []catalog.Template `json:"characters"`
	Avatars    []string           `json:"avatars"`
}

func (l CatalogListing) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOST\tATTACK\tHEALTH")
	for _, t := range l.Characters {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", t.ID, t.Name, t.Cost, t.Attack, t.Health)
	}
	_ = tw.Flush()
	fmt.Fprintf(&b, "\nAvatars: %s\n", strings.Join(l.Avatars, ", "))
	return b.String()
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and print a character catalog",
		Long: `Load a CUE character catalog, validate it against the catalog schema,
and print its characters and avatars. Without --catalog the embedded
catalog is shown.

Examples:
  brawl catalog
  brawl catalog --catalog ./content
  brawl catalog --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.output(cmd)
			cat, err := loadCatalog(opts.Path)
			if err != nil {
				return out.Fail(ExitFailure, "E_CATALOG", "invalid catalog", err)
			}
			return out.Result(CatalogListing{
				Characters: cat.Templates(),
				Avatars:    cat.Avatars(),
			})
		},
	}

	cmd.Flags().StringVar(&opts.Path, "catalog", "", "CUE catalog file or directory (default: embedded)")

	return cmd
}

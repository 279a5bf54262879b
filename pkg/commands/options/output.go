package options

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/taskly/pkg/errs"
	"tableflip.dev/taskly/pkg/printers"
)

// OutputOptions
type OutputOptions struct {
	Format string
}

func AddOutputArg(cmd *cobra.Command, po *OutputOptions) {
	cmd.PersistentFlags().StringVarP(&po.Format, "output", "o", printers.FormatPretty,
		"Output format. One of 'pretty', 'json' or 'yaml'.")
}

// Printer returns a printer for the selected format.
func (o *OutputOptions) Printer(showID bool) (*printers.PrettyPrint, error) {
	f, err := printers.ParseFormat(o.Format)
	if err != nil {
		return nil, err
	}
	return &printers.PrettyPrint{ShowID: showID, Format: f}, nil
}

// HandleError prints err as a document for machine formats. The error is
// still returned so the exit status reflects it.
func (o *OutputOptions) HandleError(err error) error {
	if err == nil {
		return nil
	}
	if o.Format == "" || o.Format == printers.FormatPretty {
		return &described{err: err}
	}
	out := map[string]string{
		"error": err.Error(),
		"kind":  errs.Kind(err),
	}
	var b []byte
	var merr error
	if o.Format == printers.FormatYAML {
		b, merr = printers.ToYAML(out)
	} else {
		b, merr = json.Marshal(out)
		b = append(b, '\n')
	}
	if merr != nil {
		return merr
	}
	_, _ = fmt.Fprint(color.Output, string(b))
	return err
}

// described prefixes the message with the error kind.
type described struct {
	err error
}

func (d *described) Error() string { return errs.Describe(d.err) }
func (d *described) Unwrap() error { return d.err }

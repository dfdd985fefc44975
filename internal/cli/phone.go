package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veriops/contactsync/internal/phone"
)

type phoneResult struct {
	Raw string `json:"raw"`
	phone.Components
	E164 string `json:"e164,omitempty"`
}

// NewPhoneCommand creates the phone command, which prints how raw numbers are split.
func NewPhoneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "phone <raw>...",
		Short: "Split phone numbers into calling code, national number and country",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]phoneResult, 0, len(args))
			for _, raw := range args {
				c := phone.Normalize(raw)
				results = append(results, phoneResult{Raw: raw, Components: c, E164: c.E164()})
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, r := range results {
				if _, err := fmt.Fprintf(out, "%s\tcode=%s national=%s country=%s\n",
					r.Raw, dash(r.CallingCode), dash(r.NationalNumber), dash(r.Country)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

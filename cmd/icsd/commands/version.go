package commands

import (
	"encoding/json"
	"fmt"

	"github.com/icsd/icsd/internal/version"
	"github.com/spf13/cobra"
)

// VersionCmd prints the daemon's build identity.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show icsd version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(out))
			return
		}
		fmt.Println(info.String())
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "output as JSON")
}

package seed

import (
	"github.com/spf13/cobra"

	"github.com/replysuite/session-gateway/internal/business"
	"github.com/replysuite/session-gateway/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"seed",
		"Session Gateway tenant seed",
		"Loads tenant provider mappings from the seed file into the database.",
		buildInfo,
		cmdutils.RunAsJob,
		business.SeedMain,
	)
}

package migrate

import (
	"github.com/spf13/cobra"

	"github.com/replysuite/session-gateway/internal/business"
	"github.com/replysuite/session-gateway/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Session Gateway migrations",
		"Applies the database migrations.",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}

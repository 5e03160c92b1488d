package housekeeper

import (
	"github.com/spf13/cobra"

	"github.com/replysuite/session-gateway/internal/business"
	"github.com/replysuite/session-gateway/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"housekeeper",
		"Session Gateway Housekeeping job",
		"Session Gateway Housekeeping job refreshes access tokens close to expiry and deletes idle sessions.",
		buildInfo,
		cmdutils.RunAsService,
		business.HousekeeperMain,
	)
}

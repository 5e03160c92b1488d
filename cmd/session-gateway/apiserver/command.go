package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/replysuite/session-gateway/internal/business"
	"github.com/replysuite/session-gateway/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Session Gateway API server",
		"Session Gateway API server hosts the public http API browsers talk to and the private gRPC verification API.",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}

package root

import (
	"github.com/harmony-hq/harmony/apps/cli/cmd/auth"
	"github.com/harmony-hq/harmony/apps/cli/cmd/bootstrap"
	companycmd "github.com/harmony-hq/harmony/apps/cli/cmd/company"
	schemacmd "github.com/harmony-hq/harmony/apps/cli/cmd/schema"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(companycmd.Command())
	Root().AddCommand(schemacmd.Command())
}

package client

import (
	"github.com/loykin/srvctl/internal/manager"
	"github.com/loykin/srvctl/internal/registry"
	"github.com/loykin/srvctl/internal/server"
)

// Wire types shared with the daemon.
type (
	Server     = registry.Server
	Detail     = manager.Detail
	PortUsage  = manager.PortUsage
	Patch      = manager.Patch
	BulkResult = server.ResultResponse
)

package mcpserver

import (
	"fmt"
	"time"

	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/errs"
	"github.com/koustreak/schemalens/internal/logger"
)

// Transport names accepted by Config.Transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const (
	defaultListenAddr        = "127.0.0.1:8080"
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

type Config struct {
	Logger  *logger.Logger
	Backend database.Backend
	Version string

	Transport         string
	ListenAddr        string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Backend == nil {
		return errs.New(errs.ErrKindConfiguration, "backend is required")
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Version == "" {
		c.Version = "dev"
	}

	switch c.Transport {
	case "":
		c.Transport = TransportStdio
	case TransportStdio, TransportHTTP:
	default:
		return errs.New(errs.ErrKindConfiguration,
			fmt.Sprintf("unknown transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP))
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	return nil
}

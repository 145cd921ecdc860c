package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/loykin/srvctl"
	"github.com/loykin/srvctl/internal/logger"
	"github.com/loykin/srvctl/pkg/client"
)

type command struct {
	global *GlobalFlags
	out    io.Writer
	errOut io.Writer
}

func (c *command) loadConfig() (*srvctl.Config, error) {
	cfg, err := srvctl.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.global.RegistryPath != "" {
		cfg.Registry.Path = c.global.RegistryPath
	}
	return cfg, nil
}

func (c *command) open(ctx context.Context) (backend, error) {
	if c.global.APIUrl != "" {
		cl := client.New(client.Config{BaseURL: c.global.APIUrl, Timeout: c.global.APITimeout})
		if !cl.IsReachable(ctx) {
			return nil, fmt.Errorf("daemon not reachable at %s - start it with 'srvctl serve'", c.global.APIUrl)
		}
		return remoteBackend{c: cl}, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log, c.errOut)
	if err != nil {
		return nil, err
	}
	sup, err := srvctl.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return localBackend{sup: sup}, nil
}

// with opens a backend for the duration of fn.
func (c *command) with(fn func(ctx context.Context, b backend) error) error {
	ctx := context.Background()
	b, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()
	return fn(ctx, b)
}

func (c *command) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *command) Add(name string, f AddFlags) error {
	dir := f.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	} else if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	srv := srvctl.Server{
		Name:             name,
		Command:          f.Command,
		Port:             f.Port,
		WorkingDirectory: dir,
		Description:      f.Description,
		AutoStart:        f.AutoStart,
	}
	return c.with(func(ctx context.Context, b backend) error {
		if err := b.Add(ctx, srv); err != nil {
			return err
		}
		return c.showServer(ctx, b, name, "added")
	})
}

func (c *command) Edit(name string, f EditFlags) error {
	var p srvctl.Patch
	if f.changed("cmd") {
		p.Command = &f.Command
	}
	if f.changed("port") {
		p.Port = &f.Port
	}
	if f.changed("dir") {
		dir := f.Dir
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		p.WorkingDirectory = &dir
	}
	if f.changed("desc") {
		p.Description = &f.Description
	}
	if f.changed("auto-start") {
		p.AutoStart = &f.AutoStart
	}
	if p.Empty() {
		return errors.New("nothing to change: pass at least one of --cmd, --port, --dir, --desc, --auto-start")
	}
	return c.with(func(ctx context.Context, b backend) error {
		if err := b.Update(ctx, name, p); err != nil {
			return err
		}
		return c.showServer(ctx, b, name, "updated")
	})
}

func (c *command) Remove(name string) error {
	return c.with(func(ctx context.Context, b backend) error {
		if err := b.Remove(ctx, name); err != nil {
			return err
		}
		if c.global.JSON {
			return printJSON(c.out, map[string]string{"removed": name})
		}
		c.printf("removed %s\n", name)
		return nil
	})
}

func (c *command) Start(name string) error {
	return c.lifecycle(name, "started", backend.Start)
}

func (c *command) Stop(name string) error {
	return c.lifecycle(name, "stopped", backend.Stop)
}

func (c *command) Restart(name string) error {
	return c.lifecycle(name, "restarted", backend.Restart)
}

func (c *command) lifecycle(name, verb string, op func(backend, context.Context, string) error) error {
	return c.with(func(ctx context.Context, b backend) error {
		if err := op(b, ctx, name); err != nil {
			return err
		}
		return c.showServer(ctx, b, name, verb)
	})
}

func (c *command) showServer(ctx context.Context, b backend, name, verb string) error {
	srv, err := b.Get(ctx, name)
	if err != nil {
		return err
	}
	if c.global.JSON {
		return printJSON(c.out, srv)
	}
	if srv.PID != nil {
		c.printf("%s %s (pid %d, %s)\n", verb, name, *srv.PID, srv.Status)
	} else {
		c.printf("%s %s (%s)\n", verb, name, srv.Status)
	}
	return nil
}

func (c *command) Status(name string, f StatusFlags) error {
	return c.with(func(ctx context.Context, b backend) error {
		if f.Detail {
			d, err := b.Detail(ctx, name)
			if err != nil {
				return err
			}
			if c.global.JSON {
				return printJSON(c.out, d)
			}
			printDetail(c.out, d)
			return nil
		}
		srv, err := b.Get(ctx, name)
		if err != nil {
			return err
		}
		if c.global.JSON {
			return printJSON(c.out, srv)
		}
		printPairs(c.out, serverPairs(srv))
		return nil
	})
}

func (c *command) List() error {
	return c.with(func(ctx context.Context, b backend) error {
		servers, err := b.List(ctx)
		if err != nil {
			return err
		}
		if c.global.JSON {
			return printJSON(c.out, servers)
		}
		if len(servers) == 0 {
			c.printf("no servers registered\n")
			return nil
		}
		printServers(c.out, servers)
		return nil
	})
}

func (c *command) Ports() error {
	return c.with(func(ctx context.Context, b backend) error {
		ports, err := b.Ports(ctx)
		if err != nil {
			return err
		}
		if c.global.JSON {
			return printJSON(c.out, ports)
		}
		printPorts(c.out, ports)
		return nil
	})
}

func (c *command) StartAll() error { return c.bulk("start-all", backend.StartAll) }
func (c *command) StopAll() error  { return c.bulk("stop-all", backend.StopAll) }
func (c *command) Boot() error     { return c.bulk("boot", backend.Boot) }

func (c *command) bulk(action string, op func(backend, context.Context) ([]srvctl.Result, error)) error {
	return c.with(func(ctx context.Context, b backend) error {
		rs, err := op(b, ctx)
		if err != nil {
			return err
		}
		if c.global.JSON {
			if err := printJSON(c.out, resultsJSON(rs)); err != nil {
				return err
			}
		} else if len(rs) > 0 {
			printResults(c.out, rs)
		}
		return summarize(action, rs)
	})
}

package main

import (
	"context"
	"errors"

	"github.com/loykin/srvctl"
	"github.com/loykin/srvctl/pkg/client"
)

// backend is what the commands operate on: the local registry through an
// in-process engine, or a running daemon through its HTTP API.
type backend interface {
	List(ctx context.Context) ([]srvctl.Server, error)
	Get(ctx context.Context, name string) (srvctl.Server, error)
	Detail(ctx context.Context, name string) (srvctl.Detail, error)
	Add(ctx context.Context, s srvctl.Server) error
	Update(ctx context.Context, name string, p srvctl.Patch) error
	Remove(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	StartAll(ctx context.Context) ([]srvctl.Result, error)
	StopAll(ctx context.Context) ([]srvctl.Result, error)
	Ports(ctx context.Context) ([]srvctl.PortUsage, error)
	Boot(ctx context.Context) ([]srvctl.Result, error)
	Close() error
}

var errRemoteBoot = errors.New("boot runs against the local registry; a daemon boots its servers when it starts")

type localBackend struct {
	sup *srvctl.Supervisor
}

func (l localBackend) List(context.Context) ([]srvctl.Server, error) { return l.sup.List(), nil }
func (l localBackend) Get(_ context.Context, name string) (srvctl.Server, error) {
	return l.sup.Get(name)
}
func (l localBackend) Detail(_ context.Context, name string) (srvctl.Detail, error) {
	return l.sup.Inspect(name)
}
func (l localBackend) Add(ctx context.Context, s srvctl.Server) error { return l.sup.Add(ctx, s) }
func (l localBackend) Update(ctx context.Context, name string, p srvctl.Patch) error {
	return l.sup.Update(ctx, name, p)
}
func (l localBackend) Remove(ctx context.Context, name string) error  { return l.sup.Remove(ctx, name) }
func (l localBackend) Start(ctx context.Context, name string) error   { return l.sup.Start(ctx, name) }
func (l localBackend) Stop(ctx context.Context, name string) error    { return l.sup.Stop(ctx, name) }
func (l localBackend) Restart(ctx context.Context, name string) error { return l.sup.Restart(ctx, name) }
func (l localBackend) StartAll(ctx context.Context) ([]srvctl.Result, error) {
	return l.sup.StartAll(ctx), nil
}
func (l localBackend) StopAll(ctx context.Context) ([]srvctl.Result, error) {
	return l.sup.StopAll(ctx), nil
}
func (l localBackend) Ports(context.Context) ([]srvctl.PortUsage, error) { return l.sup.Ports(), nil }
func (l localBackend) Boot(ctx context.Context) ([]srvctl.Result, error) { return l.sup.Boot(ctx), nil }
func (l localBackend) Close() error                                      { return l.sup.Close() }

type remoteBackend struct {
	c *client.Client
}

func (r remoteBackend) List(ctx context.Context) ([]srvctl.Server, error) { return r.c.List(ctx) }
func (r remoteBackend) Get(ctx context.Context, name string) (srvctl.Server, error) {
	return r.c.Get(ctx, name)
}
func (r remoteBackend) Detail(ctx context.Context, name string) (srvctl.Detail, error) {
	return r.c.Detail(ctx, name)
}
func (r remoteBackend) Add(ctx context.Context, s srvctl.Server) error {
	_, err := r.c.Add(ctx, s)
	return err
}
func (r remoteBackend) Update(ctx context.Context, name string, p srvctl.Patch) error {
	_, err := r.c.Update(ctx, name, p)
	return err
}
func (r remoteBackend) Remove(ctx context.Context, name string) error { return r.c.Remove(ctx, name) }
func (r remoteBackend) Start(ctx context.Context, name string) error {
	_, err := r.c.Start(ctx, name)
	return err
}
func (r remoteBackend) Stop(ctx context.Context, name string) error {
	_, err := r.c.Stop(ctx, name)
	return err
}
func (r remoteBackend) Restart(ctx context.Context, name string) error {
	_, err := r.c.Restart(ctx, name)
	return err
}
func (r remoteBackend) StartAll(ctx context.Context) ([]srvctl.Result, error) {
	return r.c.StartAll(ctx)
}
func (r remoteBackend) StopAll(ctx context.Context) ([]srvctl.Result, error) {
	return r.c.StopAll(ctx)
}
func (r remoteBackend) Ports(ctx context.Context) ([]srvctl.PortUsage, error) { return r.c.Ports(ctx) }
func (r remoteBackend) Boot(context.Context) ([]srvctl.Result, error)         { return nil, errRemoteBoot }
func (r remoteBackend) Close() error                                          { return nil }

package main

import "time"

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath   string
	RegistryPath string
	// Remote daemon connection; empty means operate on the local registry.
	APIUrl     string
	APITimeout time.Duration
	JSON       bool
}

// AddFlags Flag structs to decouple cobra from logic for testing.
type AddFlags struct {
	Command     string
	Port        int
	Dir         string
	Description string
	AutoStart   bool
}

// EditFlags only applies the flags set on the command line.
type EditFlags struct {
	Command     string
	Port        int
	Dir         string
	Description string
	AutoStart   bool

	changed func(name string) bool
}

type StatusFlags struct {
	Detail bool
}

type ServeFlags struct {
	Listen   string
	BasePath string
	NoBoot   bool
}

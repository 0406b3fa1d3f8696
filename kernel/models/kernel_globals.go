package models

import (
	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

type Config struct {
	LogLevel       string         `json:"log_level"`
	LogPath        string         `json:"log_path"`
	Scheduler      string         `json:"scheduler"`
	StackPages     int            `json:"stack_pages"`
	MaxOpenFiles   int            `json:"max_open_files"`
	MaxArgLength   int            `json:"max_arg_length"`
	FileSystem     string         `json:"file_system"`
	FileSystemRoot string         `json:"file_system_root"`
	ShellProgram   string         `json:"shell_program"`
	PortKernel     int            `json:"port_kernel"`
	SelfTest       bool           `json:"self_test"`
	BoatAdults     int            `json:"boat_adults"`
	BoatChildren   int            `json:"boat_children"`
	Machine        machine.Config `json:"machine"`
}

const (
	FileSystemStub = "stub"
	FileSystemFat  = "fat"

	DefaultStackPages   = 8
	DefaultMaxOpenFiles = 16
	DefaultMaxArgLength = 256
	DefaultLogLevel     = "INFO"
	DefaultScheduler    = "lottery"
	DefaultShellProgram = "halt.coff"
)

var KernelConfig *Config

// DefaultConfig retorna la configuración completa por defecto.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults completa los valores que no vinieron en el archivo.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Scheduler == "" {
		c.Scheduler = DefaultScheduler
	}
	if c.StackPages <= 0 {
		c.StackPages = DefaultStackPages
	}
	if c.MaxOpenFiles <= 2 {
		c.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if c.MaxArgLength <= 0 {
		c.MaxArgLength = DefaultMaxArgLength
	}
	if c.FileSystem == "" {
		c.FileSystem = FileSystemStub
	}
	if c.FileSystemRoot == "" {
		c.FileSystemRoot = "./nachos-fs"
	}
	if c.ShellProgram == "" {
		c.ShellProgram = DefaultShellProgram
	}
	if c.Machine == (machine.Config{}) {
		c.Machine = machine.DefaultConfig()
	}
}

// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Program configuration, loaded from an INI file in the style of
// ipp-usb's Configuration/Conf, but backed by the real gopkg.in/ini.v1
// parser instead of a hand-rolled one.

package main

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// PrinterConfig describes one [printer "name"] section.
type PrinterConfig struct {
	Name        string
	DeviceURI   string
	PrintGroup  string
	ProxyGroup  string
	Command     string // transform command, empty = deliver unmodified
	Info        string
	Location    string
}

// Configuration is the whole program configuration, loaded from one
// INI file, mirroring the shape of ipp-usb's global Conf but scoped to
// this server's own settings.
type Configuration struct {
	Listen     string // host:port for the HTTP listener
	SpoolDir   string
	AllowDirs  []string // directories file:// job/resource URIs may read from
	AdminGroup string
	LogLevel   string // one of error/warning/info/debug/trace

	SystemName string

	Printers []PrinterConfig
}

// DefaultConfig returns the configuration used when no file is given
// and no [server]/[printer] overrides are present.
func DefaultConfig() Configuration {
	return Configuration{
		Listen:     ":631",
		SpoolDir:   "/var/spool/ippd",
		LogLevel:   "info",
		SystemName: "go-ippd",
	}
}

// LoadConfig reads path and overlays it onto DefaultConfig.
func LoadConfig(path string) (Configuration, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	if sec, err := f.GetSection("server"); err == nil {
		readServerSection(sec, &cfg)
	}

	for _, sec := range f.Sections() {
		pname, ok := printerSectionName(sec.Name())
		if !ok {
			continue
		}
		cfg.Printers = append(cfg.Printers, PrinterConfig{
			Name:       pname,
			DeviceURI:  sec.Key("device-uri").String(),
			PrintGroup: sec.Key("print-group").String(),
			ProxyGroup: sec.Key("proxy-group").String(),
			Command:    sec.Key("command").String(),
			Info:       sec.Key("info").String(),
			Location:   sec.Key("location").String(),
		})
	}

	return cfg, nil
}

func readServerSection(sec *ini.Section, cfg *Configuration) {
	if v := sec.Key("listen").String(); v != "" {
		cfg.Listen = v
	}
	if v := sec.Key("spool-dir").String(); v != "" {
		cfg.SpoolDir = v
	}
	if v := sec.Key("admin-group").String(); v != "" {
		cfg.AdminGroup = v
	}
	if v := sec.Key("log-level").String(); v != "" {
		cfg.LogLevel = v
	}
	if v := sec.Key("system-name").String(); v != "" {
		cfg.SystemName = v
	}
	if v := sec.Key("allow-dir").ValueWithShadows(); len(v) > 0 {
		cfg.AllowDirs = append(cfg.AllowDirs, v...)
	}
}

// printerSectionName recognizes a `printer "name"` INI section header
// and extracts the quoted name.
func printerSectionName(section string) (string, bool) {
	const prefix = `printer "`
	if !strings.HasPrefix(section, prefix) || !strings.HasSuffix(section, `"`) {
		return "", false
	}
	name := section[len(prefix) : len(section)-1]
	if name == "" {
		return "", false
	}
	return name, true
}

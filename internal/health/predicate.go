package health

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// PredicateType selects how a health check is executed.
type PredicateType string

const (
	// TypeProcess passes when a process with the given name exists.
	TypeProcess PredicateType = "process"
	// TypePort passes when a TCP connection to Address can be opened.
	TypePort PredicateType = "port"
	// TypeHTTP passes when a GET on URL answers with the expected status.
	TypeHTTP PredicateType = "http"
	// TypeFile passes when Path exists.
	TypeFile PredicateType = "file"
	// TypeCommand passes when Command exits zero (and prints Expect, if set).
	TypeCommand PredicateType = "command"
)

// PredicateSpec is the static, side-effect free check attached to a service.
// Only the fields relevant to Type are read.
type PredicateSpec struct {
	Type PredicateType `yaml:"type" json:"type"`

	Process      string   `yaml:"process,omitempty" json:"process,omitempty"`
	Address      string   `yaml:"address,omitempty" json:"address,omitempty"`
	URL          string   `yaml:"url,omitempty" json:"url,omitempty"`
	ExpectStatus int      `yaml:"expectStatus,omitempty" json:"expectStatus,omitempty"`
	Path         string   `yaml:"path,omitempty" json:"path,omitempty"`
	Command      []string `yaml:"command,omitempty" json:"command,omitempty"`
	Expect       string   `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Validate reports whether the predicate is complete for its type.
func (p PredicateSpec) Validate() error {
	switch p.Type {
	case TypeProcess:
		if p.Process == "" {
			return fmt.Errorf("process check requires a process name")
		}
	case TypePort:
		if p.Address == "" {
			return fmt.Errorf("port check requires an address")
		}
		if _, _, err := net.SplitHostPort(p.Address); err != nil {
			return fmt.Errorf("port check address %q: %w", p.Address, err)
		}
	case TypeHTTP:
		if p.URL == "" {
			return fmt.Errorf("http check requires a url")
		}
		u, err := url.Parse(p.URL)
		if err != nil {
			return fmt.Errorf("http check url %q: %w", p.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("http check url %q must use http or https", p.URL)
		}
		if p.ExpectStatus != 0 && (p.ExpectStatus < 100 || p.ExpectStatus > 599) {
			return fmt.Errorf("http check expectStatus %d out of range", p.ExpectStatus)
		}
	case TypeFile:
		if p.Path == "" {
			return fmt.Errorf("file check requires a path")
		}
	case TypeCommand:
		if len(p.Command) == 0 || p.Command[0] == "" {
			return fmt.Errorf("command check requires a command")
		}
	case "":
		return fmt.Errorf("health check type is required")
	default:
		return fmt.Errorf("unknown health check type %q", p.Type)
	}
	return nil
}

// String renders the predicate for reports and log lines.
func (p PredicateSpec) String() string {
	switch p.Type {
	case TypeProcess:
		return "process " + p.Process
	case TypePort:
		return "port " + p.Address
	case TypeHTTP:
		return "http " + p.URL
	case TypeFile:
		return "file " + p.Path
	case TypeCommand:
		return "command " + strings.Join(p.Command, " ")
	default:
		return string(p.Type)
	}
}

// Package config resolves icsd's on-disk layout, (de)serializes the
// JSON configuration file, persists it back with timestamped backups
// when attributes change, and watches it for external edits.
//
// Environment-variable bindings are resolved through viper, with JSON
// as the on-disk main.cf format.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Paths is the resolved set of on-disk locations icsd operates under,
// each overridable by its own ICS_* environment variable.
type Paths struct {
	Home       string
	Log        string
	Conf       string
	Var        string
	UDS        string
	ConsoleLog string // "json" forces structured stdout logging
	RPCAddr    string // cluster gRPC listen address
	DashAddr   string // dashboard HTTP/websocket listen address
	SMTPAddr   string // host:port of the alert mail relay
	SMTPFrom   string // From address on alert mail
}

// Default path and address values used when no environment override is set.
const (
	DefaultHome     = "/opt/ICS"
	DefaultLog      = "/var/opt/ics/log"
	DefaultConf     = "/var/opt/ics/config"
	DefaultVar      = "/var/opt/ics"
	DefaultUDS      = "/var/opt/ics/uds"
	DefaultRPCAddr  = ":7045"
	DefaultDashAddr = ":7046"
)

// LoadPaths resolves Paths from the environment via Viper, the way
// am.initViper layers AutomaticEnv on top of defaults.
func LoadPaths() Paths {
	v := viper.New()
	v.SetEnvPrefix("ICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("home", DefaultHome)
	v.SetDefault("log", DefaultLog)
	v.SetDefault("conf", DefaultConf)
	v.SetDefault("var", DefaultVar)
	v.SetDefault("uds", DefaultUDS)
	v.SetDefault("console_log", "")
	v.SetDefault("rpc_addr", DefaultRPCAddr)
	v.SetDefault("dash_addr", DefaultDashAddr)
	v.SetDefault("smtp_addr", "")
	v.SetDefault("smtp_from", "icsd@localhost")

	return Paths{
		Home:       v.GetString("home"),
		Log:        v.GetString("log"),
		Conf:       v.GetString("conf"),
		Var:        v.GetString("var"),
		UDS:        v.GetString("uds"),
		ConsoleLog: v.GetString("console_log"),
		RPCAddr:    v.GetString("rpc_addr"),
		DashAddr:   v.GetString("dash_addr"),
		SMTPAddr:   v.GetString("smtp_addr"),
		SMTPFrom:   v.GetString("smtp_from"),
	}
}

// ConfFile is the path to the primary JSON configuration, main.cf.
func (p Paths) ConfFile() string { return filepath.Join(p.Conf, "main.cf") }

// AutoBackupFile is overwritten on every persist.
func (p Paths) AutoBackupFile() string { return filepath.Join(p.Conf, "main.cf.autobackup") }

// AlertLogDir is the hourly-rotated alert log directory (internal/alert
// derives the actual per-hour filename from this directory).
func (p Paths) AlertLogDir() string { return p.Log }

// ResourceLog is the stdout/stderr sink for resource commands at the
// given moment, rotating on the hour ("resource.log.YYYY-MM-DD_HH").
func (p Paths) ResourceLog(at time.Time) string {
	return filepath.Join(p.Log, "resource.log."+at.Format("2006-01-02_15"))
}

// PIDFile returns the PID file path for a named daemon (icsd, icsd-alert, ...).
func (p Paths) PIDFile(server string) string { return filepath.Join(p.Var, server+".pid") }

// UDSSocket is the Unix domain socket path local CLI clients connect to.
func (p Paths) UDSSocket() string { return filepath.Join(p.UDS, "uds_socket") }

// CommandLogFile is the SQLite database backing the command audit trail.
func (p Paths) CommandLogFile() string { return filepath.Join(p.Var, "command_log.db") }

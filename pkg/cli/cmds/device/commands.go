// Package device provides shell commands operating on device fields.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/fieldlink/pkg/cli/sh"
	"github.com/robotalks/fieldlink/pkg/l0/field"
)

// GetTimeout bounds waiting for a value in the get command.
var GetTimeout = 2 * time.Second

// FieldInfo is the printed form of a field.
type FieldInfo struct {
	Name     string `json:"name"`
	ID       byte   `json:"id"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Pending  int    `json:"pending"`
}

// Stats is the printed form of the connection statistics.
type Stats struct {
	Port             string         `json:"port"`
	InvalidChecksums int            `json:"invalid_checksums"`
	ParserState      string         `json:"parser_state"`
	Pending          map[string]int `json:"pending"`
}

func printJSON(c *ishell.Context, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

func control(name string, fn func(*field.Device) error) func(*ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context, conn *sh.DeviceConn) {
		if err := fn(conn.Device); err != nil {
			c.Err(fmt.Errorf("%s: %w", name, err))
			return
		}
		c.Println("OK")
	})
}

var (
	// FieldsCmd lists registered fields.
	FieldsCmd = ishell.Cmd{
		Name:    "fields",
		Aliases: []string{"ls"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context, conn *sh.DeviceConn) {
			fields := conn.Device.Fields()
			infos := make([]FieldInfo, len(fields))
			for i, f := range fields {
				infos[i] = FieldInfo{Name: f.Name(), ID: f.ID(), Type: f.Type().String(), Quantity: f.Quantity(), Pending: f.Pending()}
			}
			if sh.ShellFrom(c).OutputJSON {
				printJSON(c, infos)
				return
			}
			if len(infos) == 0 {
				c.Println("No fields registered")
				return
			}
			for _, f := range fields {
				c.Println(f.String())
			}
		}),
	}

	// GetCmd requests a field value.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "NAME",
		Func: sh.WithField(func(c *ishell.Context, conn *sh.DeviceConn, f *field.Field) {
			ctx, cancel := context.WithTimeout(conn.Ctx, GetTimeout)
			defer cancel()
			v, err := f.Fetch(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			sh.PrintValue(c, f, v)
		}),
	}

	// SetCmd sets a field value.
	SetCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "NAME VALUE...",
		Func: sh.WithField(func(c *ishell.Context, conn *sh.DeviceConn, f *field.Field) {
			v, err := sh.ParseValue(f, c.Args[1:])
			if err == nil {
				err = f.Set(v)
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// WatchCmd prints every value received for a field.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "NAME",
		Func: sh.WithField(func(c *ishell.Context, conn *sh.DeviceConn, f *field.Field) {
			conn.Watch(f, func(v field.Value) { sh.PrintValue(c, f, v) })
			if !sh.ShellFrom(c).Interactive {
				<-conn.Ctx.Done()
			}
		}),
	}

	// UnwatchCmd stops watching a field.
	UnwatchCmd = ishell.Cmd{
		Name:    "unwatch",
		Aliases: []string{"uw"},
		Help:    "NAME",
		Func: sh.WithField(func(c *ishell.Context, conn *sh.DeviceConn, f *field.Field) {
			if !conn.Unwatch(f) {
				c.Err(fmt.Errorf("%s is not watched", f.Name()))
			}
		}),
	}

	// StatsCmd prints connection statistics.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context, conn *sh.DeviceConn) {
			stats := Stats{
				Port:             conn.Port,
				InvalidChecksums: conn.Device.Conn.InvalidChecksums(),
				ParserState:      conn.Device.Conn.State().String(),
				Pending:          make(map[string]int),
			}
			for _, f := range conn.Device.Fields() {
				stats.Pending[f.Name()] = f.Pending()
			}
			if sh.ShellFrom(c).OutputJSON {
				printJSON(c, stats)
				return
			}
			c.Printf("port: %s\ninvalid checksums: %d\nparser: %s\n", stats.Port, stats.InvalidChecksums, stats.ParserState)
			for _, f := range conn.Device.Fields() {
				if n := stats.Pending[f.Name()]; n > 0 {
					c.Printf("pending %s: %d\n", f.Name(), n)
				}
			}
		}),
	}

	// EEPROMWriteCmd persists device state.
	EEPROMWriteCmd = ishell.Cmd{
		Name: "eeprom-write",
		Help: "",
		Func: control("eeprom-write", (*field.Device).WriteEEPROM),
	}

	// EEPROMReadCmd reloads persisted device state.
	EEPROMReadCmd = ishell.Cmd{
		Name: "eeprom-read",
		Help: "",
		Func: control("eeprom-read", (*field.Device).ReadEEPROM),
	}

	// FactoryResetCmd restores device defaults.
	FactoryResetCmd = ishell.Cmd{
		Name: "factory-reset",
		Help: "",
		Func: control("factory-reset", (*field.Device).FactoryReset),
	}

	// RebootCmd restarts the device.
	RebootCmd = ishell.Cmd{
		Name: "reboot",
		Help: "",
		Func: control("reboot", (*field.Device).Reboot),
	}
)

func init() {
	sh.AddCmds(
		&FieldsCmd,
		&GetCmd,
		&SetCmd,
		&WatchCmd,
		&UnwatchCmd,
		&StatsCmd,
		&EEPROMWriteCmd,
		&EEPROMReadCmd,
		&FactoryResetCmd,
		&RebootCmd,
	)
}

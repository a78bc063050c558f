package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/fieldlink/pkg/config"
	"github.com/robotalks/fieldlink/pkg/l0/field"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *config.Config
	Conn   *DeviceConn
}

// DeviceConn is a running device.
type DeviceConn struct {
	Ctx    context.Context
	Cancel func()
	Port   string
	Device *field.Device

	lock     sync.Mutex
	watchers map[string]func()
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context, conn *DeviceConn)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		conn := ShellFrom(c).Conn
		if conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c, conn)
	}
}

// WithField wraps command func requires a field named by the first argument.
func WithField(fn func(c *ishell.Context, conn *DeviceConn, f *field.Field)) func(c *ishell.Context) {
	return MustBeConnected(func(c *ishell.Context, conn *DeviceConn) {
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("NAME required"))
			return
		}
		f := conn.Device.Field(c.Args[0])
		if f == nil {
			c.Err(fmt.Errorf("unknown field %q", c.Args[0]))
			return
		}
		fn(c, conn, f)
	})
}

// PrintValue prints a field value as text or JSON.
func PrintValue(c *ishell.Context, f *field.Field, v field.Value) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(ValueJSON(f, v))
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Printf("%s = %s\n", f.Name(), v)
}

// ValueJSON returns the JSON form of a field value.
func ValueJSON(f *field.Field, v field.Value) map[string]interface{} {
	var val interface{}
	if nums := v.Numbers(); f.IsList() {
		val = nums
	} else if len(nums) == 1 {
		val = nums[0]
	}
	return map[string]interface{}{"name": f.Name(), "value": val}
}

// ParseValue parses command arguments into a value for f. Numbers are
// accepted for all types, true/false for bytes, and a single string for
// byte arrays.
func ParseValue(f *field.Field, args []string) (field.Value, error) {
	if len(args) == 0 {
		return field.Value{}, fmt.Errorf("VALUE required")
	}
	nums := make([]float64, 0, len(args))
	for _, arg := range args {
		if f.Type() == field.TypeByte {
			switch strings.ToLower(arg) {
			case "true", "on":
				nums = append(nums, 1)
				continue
			case "false", "off":
				nums = append(nums, 0)
				continue
			}
		}
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			if f.Type() == field.TypeByte && f.IsList() && len(args) == 1 {
				return field.Chars(arg), nil
			}
			return field.Value{}, fmt.Errorf("invalid value %q: %w", arg, err)
		}
		nums = append(nums, n)
	}
	return field.FromNumbers(f.Type(), nums)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the device on port, or the configured port if empty.
func (s *Shell) Connect(port string) error {
	conf := *s.Config
	if port != "" {
		conf.Port = port
	}
	device, err := conf.OpenDevice()
	if err != nil {
		return err
	}
	conn := &DeviceConn{Port: conf.Port, Device: device, watchers: make(map[string]func())}
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	s.Disconnect()
	s.Conn = conn
	go func() {
		if err := device.Run(conn.Ctx); err != nil && err != context.Canceled {
			glog.Errorf("device %s stopped: %v", conn.Port, err)
		}
	}()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", conf.Port))
	return nil
}

// Disconnect disconnects current device.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Watch starts printing values of f, replacing an existing watch.
func (conn *DeviceConn) Watch(f *field.Field, fn func(field.Value)) {
	cancel := f.Watch(fn)
	conn.lock.Lock()
	prev := conn.watchers[f.Name()]
	conn.watchers[f.Name()] = cancel
	conn.lock.Unlock()
	if prev != nil {
		prev()
	}
}

// Unwatch stops watching f.
func (conn *DeviceConn) Unwatch(f *field.Field) bool {
	conn.lock.Lock()
	cancel := conn.watchers[f.Name()]
	delete(conn.watchers, f.Name())
	conn.lock.Unlock()
	if cancel != nil {
		cancel()
	}
	return cancel != nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Port)
		}
		if err := s.Connect(""); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd opens a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT-URL]",
		Func: func(c *ishell.Context) {
			var port string
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			if err := ShellFrom(c).Connect(port); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(config.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}

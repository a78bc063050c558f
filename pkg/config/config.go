// Package config provides the common options of fieldlink commands.
package config

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/robotalks/fieldlink/pkg/l0/comm"
	"github.com/robotalks/fieldlink/pkg/l0/field"
	"github.com/robotalks/fieldlink/pkg/l0/transport"
)

// Config provides options to open a device and its services.
type Config struct {
	// Port is the transport URL, e.g. serial:///dev/ttyUSB0?baud=9600.
	Port string
	// FieldsFile is the YAML field table.
	FieldsFile string
	// MQTTBrokerURL enables the MQTT bridge,
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	// DeviceID names the device in MQTT topics.
	DeviceID string
	// MetricsAddr enables the Prometheus endpoint.
	MetricsAddr string

	FrameTimeout      time.Duration
	PendingExpiration time.Duration
}

var defaultConfig = Config{
	Port:              "serial:///dev/ttyUSB0?baud=9600",
	FrameTimeout:      comm.DefaultTimeout,
	PendingExpiration: field.DefaultExpiration,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
}

func loadEnv(c *Config, getenv func(string) string) {
	if val := getenv("FIELDLINK_PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("FIELDLINK_FIELDS"); val != "" {
		c.FieldsFile = val
	}
	if val := getenv("FIELDLINK_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("FIELDLINK_METRICS_ADDR"); val != "" {
		c.MetricsAddr = val
	}
	if val := getenv("FIELDLINK_DEVICE_ID"); val != "" {
		c.DeviceID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.SetupFlags(flag.CommandLine)
}

// SetupFlags registers the options to fs.
func (c *Config) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Port, "port", c.Port, "Transport URL (serial://, tcp://, ws://)")
	fs.StringVar(&c.FieldsFile, "fields", c.FieldsFile, "YAML field table")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty disables the bridge")
	fs.StringVar(&c.DeviceID, "device-id", c.DeviceID, "Device ID in MQTT topics, default is the machine ID")
	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "Prometheus listen address, empty disables metrics")
	fs.DurationVar(&c.FrameTimeout, "frame-timeout", c.FrameTimeout, "Max gap between bytes of a frame")
	fs.DurationVar(&c.PendingExpiration, "pending-expiration", c.PendingExpiration, "How long a GET waits for its value, 0 disables")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ResolvedDeviceID returns DeviceID or the machine ID if not set.
func (c *Config) ResolvedDeviceID() (string, error) {
	if c.DeviceID != "" {
		return c.DeviceID, nil
	}
	return MachineID()
}

// NewDevice creates a device on rw with the configured timeouts and fields.
func (c *Config) NewDevice(rw io.ReadWriter) (*field.Device, error) {
	if c.FrameTimeout <= 0 {
		return nil, fmt.Errorf("frame timeout must be positive")
	}
	d := field.NewDevice(rw)
	d.Conn.Timeout = c.FrameTimeout
	d.Expiration = c.PendingExpiration
	if c.FieldsFile != "" {
		table, err := LoadFieldTable(c.FieldsFile)
		if err != nil {
			return nil, err
		}
		if err := table.Register(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// OpenDevice opens the transport and creates the device on it.
func (c *Config) OpenDevice() (*field.Device, error) {
	rw, err := transport.Open(c.Port)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Port, err)
	}
	d, err := c.NewDevice(rw)
	if err != nil {
		rw.Close()
		return nil, err
	}
	return d, nil
}

// MustOpenDevice opens the device and fails on error.
func (c *Config) MustOpenDevice() *field.Device {
	d, err := c.OpenDevice()
	if err != nil {
		log.Fatalln(err)
	}
	return d
}

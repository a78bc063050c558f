package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/fieldlink/pkg/bridge/mqtt"
	"github.com/robotalks/fieldlink/pkg/config"
	"github.com/robotalks/fieldlink/pkg/framework"
	"github.com/robotalks/fieldlink/pkg/l0/comm"
	"github.com/robotalks/fieldlink/pkg/l0/metrics"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := config.NewConfig()
	device := conf.MustOpenDevice()
	runner := framework.NewRunner().HandleSignals()

	if conf.MetricsAddr != "" {
		reg := metrics.NewRegistry()
		device.Conn.Monitor = comm.Monitors{device.Conn.Monitor, metrics.NewMonitor(reg)}
		runner.Go(&metrics.Server{Addr: conf.MetricsAddr, Registry: reg})
	}
	if conf.MQTTBrokerURL != "" {
		deviceID, err := conf.ResolvedDeviceID()
		if err != nil {
			log.Fatalln(err)
		}
		bridge, err := mqtt.NewBridge(conf.MQTTBrokerURL, deviceID, device)
		if err != nil {
			log.Fatalln(err)
		}
		runner.Go(bridge)
	}

	glog.Infof("serving %d fields on %s", len(device.Fields()), conf.Port)
	runner.Go(framework.NamedRun("device", device))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/fieldlink/pkg/bridge/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/fieldlink/"
)

func init() {
	if val := os.Getenv("FIELDLINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, err := mqtt.ParseBrokerURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q := mqtt.NewQueue(opts.Client, opts.TopicPrefix)
	q.Sub("#", func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/meta") || strings.HasSuffix(topic, "/get") {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		desc, err := opts.Format.Describe(payload)
		if err != nil {
			log.Printf("%s: bad value: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, desc)
	})
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}

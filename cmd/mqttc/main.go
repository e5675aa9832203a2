package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RoanBrand/mqttc"
	"github.com/RoanBrand/mqttc/internal/config"
	"github.com/RoanBrand/mqttc/internal/model"
	"github.com/RoanBrand/mqttc/internal/store"
)

var (
	v   = viper.New()
	cfg *config.Config

	configFile string
	svcFlag    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mqttc",
		Short:         "MQTT 3.1.1 client that publishes or subscribes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
			}
			var err error
			if cfg, err = config.Load(v); err != nil {
				return err
			}
			return cfg.SetupLogging()
		},
	}

	config.SetDefaults(v)

	f := root.PersistentFlags()
	f.StringVarP(&configFile, "config", "c", "", "Path of config file.")
	f.String("broker", "localhost:1883", "Broker address: host[:port] or tcp, tls, ws or wss URL.")
	f.StringP("username", "u", "", "Username.")
	f.StringP("password", "p", "", "Password. Requires username.")
	f.String("clientid", "", "Client identifier. Generated if empty.")
	f.Uint8("qos", 0, "QoS level 0, 1 or 2.")
	f.Uint16("keepalive", 60, "Keep alive in seconds.")
	f.Bool("cleansession", false, "Start a clean session.")
	f.Bool("will", false, "Register a will message.")
	f.String("willtopic", "", "Will topic.")
	f.String("willmessage", "", "Will message.")
	f.Uint8("will-qos", 0, "Will QoS level.")
	f.Bool("will-retain", false, "Retain the will message.")
	f.String("tmpdir", "/var/tmp/mqttc", "Directory of the message store.")
	f.String("store", config.StoreNone, "Message store: none, badger, pebble, bolt or redis.")
	f.String("log-level", "info", "Log level: error, warn, info or debug.")
	f.String("log-file", "", "Log to file instead of stderr.")

	for key, flag := range map[string]string{
		"broker":        "broker",
		"username":      "username",
		"password":      "password",
		"client_id":     "clientid",
		"qos":           "qos",
		"keep_alive":    "keepalive",
		"clean_session": "cleansession",
		"will.enabled":  "will",
		"will.topic":    "willtopic",
		"will.message":  "willmessage",
		"will.qos":      "will-qos",
		"will.retain":   "will-retain",
		"store.dir":     "tmpdir",
		"store.type":    "store",
		"log.level":     "log-level",
		"log.file":      "log-file",
	} {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newPubCmd(), newSubCmd(), newHistoryCmd())
	return root
}

func newPubCmd() *cobra.Command {
	var (
		topic, message string
		retain         bool
	)

	cmd := &cobra.Command{
		Use:   "pub",
		Short: "Publish one message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := &mqttc.Client{Config: *cfg}
			if err := c.Connect(ctx); err != nil {
				return err
			}

			err := c.Publish(ctx, topic, []byte(message), model.QoS(cfg.QoS), retain)
			if dErr := c.Disconnect(); err == nil {
				err = dErr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to publish to.")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message payload.")
	cmd.Flags().BoolVar(&retain, "retain", false, "Ask the broker to retain the message.")
	cmd.MarkFlagRequired("topic")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newSubCmd() *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "sub",
		Short: "Subscribe to a topic filter and print received messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(&program{topic: topic})
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic filter to subscribe to.")
	cmd.Flags().StringVar(&svcFlag, "service", "", "Control the system service.")
	cmd.MarkFlagRequired("topic")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List messages archived for a topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(cfg)
			if err != nil {
				return err
			}
			if s == nil {
				return errors.New("no message store configured, see --store")
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			return s.Messages(topic, func(m store.Message) error {
				_, err := fmt.Fprintf(out, "%s %s %s\n", m.Received.Format(time.RFC3339Nano), m.Topic, m.Payload)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to list.")
	cmd.MarkFlagRequired("topic")
	return cmd
}

// subscribe runs one subscriber session until ctx is cancelled.
func subscribe(ctx context.Context, topic string) error {
	s, err := store.Open(cfg)
	if err != nil {
		return err
	}

	c := &mqttc.Client{Config: *cfg}
	sink := mqttc.Tee{&mqttc.Printer{W: os.Stdout}}
	if s != nil {
		defer s.Close()
		sink = append(sink, s)
		log.WithField("type", cfg.Store.Type).Info("Archiving received messages")
	}
	c.Sink = sink

	if err = c.Connect(ctx); err != nil {
		return err
	}
	if err = c.Subscribe(ctx, topic, model.QoS(cfg.QoS)); err != nil {
		c.Disconnect()
		return err
	}
	return c.Listen(ctx)
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
)

type program struct {
	topic string

	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		err := subscribe(ctx, p.topic)
		p.done <- err
		if err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()

	select {
	case err := <-p.done:
		return err
	case <-time.After(cfg.ShutdownGrace + time.Second):
		log.Warnln("Subscriber did not stop in time")
		return nil
	}
}

// runService runs p in the foreground, under the service manager,
// or applies the --service control action.
func runService(p *program) error {
	if !service.Interactive() && cfg.Log.File == "" {
		ePath, err := os.Executable()
		if err != nil {
			return err
		}
		cfg.Log.File = filepath.Join(filepath.Dir(ePath), "mqttc.log")
		if err = cfg.SetupLogging(); err != nil {
			return err
		}
	}

	svcConfig := service.Config{
		Name:        "mqttc",
		DisplayName: "mqttc MQTT subscriber",
		Description: "Subscribes to " + p.topic + " on " + cfg.Broker,
		Arguments:   serviceArgs(os.Args[1:]),
	}

	s, err := service.New(p, &svcConfig)
	if err != nil {
		return err
	}

	if svcFlag != "" {
		if err = service.Control(s, svcFlag); err != nil {
			log.Printf("Valid actions: %q\n", service.ControlAction)
			return err
		}
		return nil
	}

	return s.Run()
}

// serviceArgs is the command line the installed service runs with: ours without --service.
func serviceArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "--service":
			i++
		case strings.HasPrefix(a, "--service="):
		default:
			out = append(out, a)
		}
	}
	return out
}

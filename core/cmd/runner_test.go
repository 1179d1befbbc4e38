package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/dreambot/core/config"
	coretelegram "github.com/m3rciful/dreambot/core/telegram"
)

type carrier struct{ core *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.core }

type fakeApp struct {
	started, stopped bool
	closed           bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { a.started = true; return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { a.stopped = true; return nil },
	}, nil
}

func (a *fakeApp) Close() error { a.closed = true; return nil }

func TestRunWiresLifecycle(t *testing.T) {
	t.Setenv("DREAMBOT_TEST_CONFIG", "from-env.yaml")
	app := &fakeApp{}
	var loaded string
	loggerDown := false

	err := Run(Options{
		ConfigEnvVar: "DREAMBOT_TEST_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error {
			if !app.closed {
				t.Error("logger shut down before the app was closed")
			}
			loggerDown = true
			return nil
		},
		RunTelegram: func(ctx context.Context, o coretelegram.RunOptions) error {
			if err := o.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return o.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if loaded != "from-env.yaml" {
		t.Fatalf("loaded %q", loaded)
	}
	if !app.started || !app.stopped || !app.closed || !loggerDown {
		t.Fatalf("lifecycle incomplete: %+v logger=%v", app, loggerDown)
	}
}

func TestRunStopsOnBootstrapError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigPathRequired(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if _, err := configPath(Options{}); err == nil {
		t.Fatal("expected error without env or default")
	}
}

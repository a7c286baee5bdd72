package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func clearEnv(t *testing.T) {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				name := kv[:i]
				if len(name) > len(envPrefix) && name[:len(envPrefix)] == envPrefix {
					t.Setenv(name, "")
					_ = os.Unsetenv(name)
				}
				break
			}
		}
	}
	t.Setenv("TELEGRAM_TOKEN", "")
}

func TestLoad(t *testing.T) {
	Convey("Given a config loader", t, func() {
		clearEnv(t)
		t.Chdir(t.TempDir())

		Convey("When nothing is set", func() {
			cfg, err := Load()

			Convey("Then defaults are used", func() {
				So(err, ShouldBeNil)
				So(cfg.APIBase, ShouldEqual, "/api")
				So(cfg.FallbackBase, ShouldEqual, "http://localhost:8000")
				So(cfg.StoreDriver, ShouldEqual, StoreFile)
				So(cfg.Endpoints(), ShouldResemble, []string{"http://localhost/api", "http://localhost:8000"})
				So(cfg.SlogLevel(), ShouldEqual, slog.LevelInfo)
			})
		})

		Convey("When environment variables are set", func() {
			t.Setenv("VEIN_API_BASE", "https://veins.example.org/api")
			t.Setenv("VEIN_STORE_DRIVER", "memory")
			t.Setenv("VEIN_HTTP_TIMEOUT", "30s")
			t.Setenv("VEIN_CAMERA_DEVICE", "2")
			t.Setenv("VEIN_LOG_LEVEL", "debug")
			t.Setenv("TELEGRAM_TOKEN", "token-123")

			cfg, err := Load()

			Convey("Then they override defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Endpoints()[0], ShouldEqual, "https://veins.example.org/api")
				So(cfg.StoreDriver, ShouldEqual, StoreMemory)
				So(cfg.HTTPTimeout, ShouldEqual, 30*time.Second)
				So(cfg.CameraDevice, ShouldEqual, 2)
				So(cfg.TelegramToken, ShouldEqual, "token-123")
				So(cfg.SlogLevel(), ShouldEqual, slog.LevelDebug)
			})
		})

		Convey("When a YAML file is given", func() {
			path := filepath.Join(t.TempDir(), "vein.yaml")
			So(os.WriteFile(path, []byte("origin: http://gateway:8080\nprofile: ward-3\n"), 0o600), ShouldBeNil)
			t.Setenv("VEIN_CONFIG", path)

			cfg, err := Load()

			Convey("Then file values are applied", func() {
				So(err, ShouldBeNil)
				So(cfg.Profile, ShouldEqual, "ward-3")
				So(cfg.Endpoints()[0], ShouldEqual, "http://gateway:8080/api")
			})
		})

		Convey("When postgres is selected without a DSN", func() {
			t.Setenv("VEIN_STORE_DRIVER", "postgres")

			_, err := Load()

			Convey("Then loading fails", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When the store driver is unknown", func() {
			t.Setenv("VEIN_STORE_DRIVER", "redis")

			_, err := Load()

			Convey("Then loading fails", func() {
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	conf := NewDefaultConfig()

	if conf.HandshakeInterval != 30*time.Second {
		t.Fatalf("HandshakeInterval should be 30s, not %v", conf.HandshakeInterval)
	}
	if conf.DiscoveryInterval != 300*time.Second {
		t.Fatalf("DiscoveryInterval should be 300s, not %v", conf.DiscoveryInterval)
	}
	if !conf.Bootstrap {
		t.Fatal("Bootstrap should default to true")
	}
	if conf.Relay {
		t.Fatal("Relay should default to false")
	}
	if !conf.DHT {
		t.Fatal("DHT should default to true")
	}
	if !conf.MDNS {
		t.Fatal("MDNS should default to true")
	}
	if conf.Port != 0 {
		t.Fatalf("Port should default to 0, not %d", conf.Port)
	}
	if conf.ServiceAddr != "127.0.0.1:8000" {
		t.Fatalf("ServiceAddr should be 127.0.0.1:8000, not %s", conf.ServiceAddr)
	}
}

func TestKeyfile(t *testing.T) {
	conf := NewDefaultConfig()
	conf.SetDataDir("/tmp/howdy-test")

	expected := filepath.Join("/tmp/howdy-test", DefaultKeyfile)
	if conf.Keyfile() != expected {
		t.Fatalf("Keyfile should be %s, not %s", expected, conf.Keyfile())
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
		"bogus": logrus.DebugLevel,
		"":      logrus.DebugLevel,
	}

	for in, expected := range cases {
		if l := LogLevel(in); l != expected {
			t.Fatalf("LogLevel(%q) should be %v, not %v", in, expected, l)
		}
	}
}

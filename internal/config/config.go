// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package config bootstraps the process's command-line flags and
// environment variables through viper: flags are bound into a Viper
// instance, which is then unmarshalled into a plain Options struct.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the environment variable prefix applied to every
	// UIAUTODEV_* setting.
	EnvPrefix = "uiautodev"

	// DefaultPort is the bind address port for the HTTP API when no
	// --port flag or UIAUTODEV_PORT is supplied.
	DefaultPort = 20242

	// DefaultAndroidScreenshotTimeoutSeconds is the fallback for
	// UIAUTODEV_ANDROID_SCREENSHOT_TIMEOUT.
	DefaultAndroidScreenshotTimeoutSeconds = 15.0
	// DefaultAndroidHierarchyTimeoutSeconds is the fallback for
	// UIAUTODEV_ANDROID_HIERARCHY_TIMEOUT.
	DefaultAndroidHierarchyTimeoutSeconds = 20.0
	// DefaultAndroidU2RPCTimeoutSeconds is the fallback for
	// UIAUTODEV_ANDROID_U2_RPC_TIMEOUT.
	DefaultAndroidU2RPCTimeoutSeconds = 15.0

	// DefaultWDABundleID and DefaultWDAPort seed the global iOS defaults
	// an operator can override with --wda-bundle-id/--wda-port, matching
	// IOSProvider's wda_bundle_id/wda_port constructor parameters.
	DefaultWDABundleID = "com.facebook.WebDriverAgentRunner.xctrunner"
	DefaultWDAPort     = 8100
)

// Options is the fully-resolved process configuration, unmarshalled from
// a Viper environment seeded by flags and UIAUTODEV_* environment
// variables.
type Options struct {
	Port int `mapstructure:"port"`

	UseADBDriver bool `mapstructure:"use-adb-driver"`

	AndroidScreenshotTimeoutSeconds float64 `mapstructure:"android-screenshot-timeout"`
	AndroidHierarchyTimeoutSeconds  float64 `mapstructure:"android-hierarchy-timeout"`
	AndroidU2RPCTimeoutSeconds      float64 `mapstructure:"android-u2-rpc-timeout"`

	WDABundleID string `mapstructure:"wda-bundle-id"`
	WDAPort     int    `mapstructure:"wda-port"`

	RecordingsDir string `mapstructure:"recordings-dir"`
	ConfigDir     string `mapstructure:"config-dir"`
}

// ConfigureFlagSet adds the standard flag set, matching the shape of
// server.ConfigureFlagSet: optional, but recommended so operators get
// `--port`, `--use-adb-driver`, etc. on the CLI in addition to env vars.
func ConfigureFlagSet(f *pflag.FlagSet) {
	f.Int("port", DefaultPort, "HTTP API bind port")
	f.Bool("use-adb-driver", false, "use the adb-CLI-only Android driver instead of the uiautomator2 agent driver")
	f.Float64("android-screenshot-timeout", DefaultAndroidScreenshotTimeoutSeconds, "android screenshot helper timeout, in seconds")
	f.Float64("android-hierarchy-timeout", DefaultAndroidHierarchyTimeoutSeconds, "android hierarchy dump helper timeout, in seconds")
	f.Float64("android-u2-rpc-timeout", DefaultAndroidU2RPCTimeoutSeconds, "android uiautomator2 agent RPC timeout, in seconds")
	f.String("wda-bundle-id", DefaultWDABundleID, "global default WebDriverAgent bundle id, applied to any iOS device with no stored override")
	f.Int("wda-port", DefaultWDAPort, "global default WebDriverAgent control port")
	f.String("recordings-dir", "", "recordings store root (defaults to $HOME/.buiauto)")
	f.String("config-dir", "", "device config store root (defaults to $HOME/.byteautoui)")
}

// New builds a Viper instance seeded with UIAUTODEV_* environment
// variables and, if f is non-nil, bound CLI flags — the same
// AutomaticEnv + key-replacer + BindPFlags combination as
// server.ConfigureViper.
func New(f *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if f != nil {
		if err := v.BindPFlags(f); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	bindEnv(v, "port", "PORT")
	bindEnv(v, "use-adb-driver", "USE_ADB_DRIVER")
	bindEnv(v, "android-screenshot-timeout", "ANDROID_SCREENSHOT_TIMEOUT")
	bindEnv(v, "android-hierarchy-timeout", "ANDROID_HIERARCHY_TIMEOUT")
	bindEnv(v, "android-u2-rpc-timeout", "ANDROID_U2_RPC_TIMEOUT")
	bindEnv(v, "wda-bundle-id", "WDA_BUNDLE_ID")
	bindEnv(v, "wda-port", "WDA_PORT")
	bindEnv(v, "recordings-dir", "RECORDINGS_DIR")
	bindEnv(v, "config-dir", "CONFIG_DIR")

	return v, nil
}

func bindEnv(v *viper.Viper, key, envSuffix string) {
	_ = v.BindEnv(key, strings.ToUpper(EnvPrefix)+"_"+envSuffix)
}

// NewOptions unmarshals Options from a Viper environment, matching
// device.NewOptions(v *viper.Viper)'s shape (minus the logger argument,
// which this spec's ambient stack wires separately per component).
func NewOptions(v *viper.Viper) (*Options, error) {
	o := &Options{
		Port:                            DefaultPort,
		AndroidScreenshotTimeoutSeconds: DefaultAndroidScreenshotTimeoutSeconds,
		AndroidHierarchyTimeoutSeconds:  DefaultAndroidHierarchyTimeoutSeconds,
		AndroidU2RPCTimeoutSeconds:      DefaultAndroidU2RPCTimeoutSeconds,
		WDABundleID:                     DefaultWDABundleID,
		WDAPort:                         DefaultWDAPort,
	}
	if v == nil {
		return o, nil
	}
	if err := v.Unmarshal(o); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	return o, nil
}

// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package proxy

import (
	"crypto/tls"
	"fmt"
	"io/ioutil"
	"net"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v2"

	"github.com/batproxy/batproxy/proxy/logger"
	"github.com/batproxy/batproxy/proxy/utils"
)

// here's how this works: exported (capitalized) members of the config structs
// are defined in the YAML file and deserialized directly from it. They may
// be postprocessed and overwritten by LoadConfig. Unexported (lowercase) members
// are derived from the exported members in LoadConfig.

// TLSListenConfig defines configuration options for listening on TLS.
type TLSListenConfig struct {
	Cert string
	Key  string
}

// Config returns the TLS configuration associated with this TLSListenConfig.
func (conf *TLSListenConfig) Config() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(conf.Cert, conf.Key)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
	}, nil
}

// listenerConfigBlock is a listening address's config block. An empty
// block is a plaintext TCP (or unix socket) listener.
type listenerConfigBlock struct {
	TLS       TLSListenConfig
	WebSocket bool
}

// UpstreamConfig is the game server the proxy dials on behalf of each
// client.
type UpstreamConfig struct {
	Address          string
	TLS              bool
	DialTimeout      time.Duration `yaml:"dial-timeout"`
	Keepalive        time.Duration
	ReadBufferString string `yaml:"read-buffer"`
	readBufferBytes  int
}

// Config defines the overall configuration.
type Config struct {
	Listeners map[string]listenerConfigBlock

	// parsed listener configs, keyed by listen address
	trueListeners map[string]utils.ListenerConfig

	Upstream UpstreamConfig

	Logging []logger.LoggingConfig

	Filename string
}

// prepareListeners populates Config.trueListeners.
func (conf *Config) prepareListeners() error {
	if len(conf.Listeners) == 0 {
		return ErrNoListenersDefined
	}

	conf.trueListeners = make(map[string]utils.ListenerConfig, len(conf.Listeners))
	for addr, block := range conf.Listeners {
		var lconf utils.ListenerConfig
		if block.TLS.Cert != "" {
			tlsConfig, err := block.TLS.Config()
			if err != nil {
				return fmt.Errorf("Could not load TLS cert/key for listener %s: %s", addr, err.Error())
			}
			lconf.TLSConfig = tlsConfig
		}
		lconf.WebSocket = block.WebSocket
		conf.trueListeners[addr] = lconf
	}
	return nil
}

// LoadRawConfig loads the config without doing any consistency checks or
// postprocessing, for commands that only need the file names out of it.
func LoadRawConfig(filename string) (config *Config, err error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	// a file with no settings at all unmarshals to a nil config
	if config == nil {
		return nil, ErrConfigEmpty
	}

	return config, nil
}

// LoadConfig loads the given YAML configuration file.
func LoadConfig(filename string) (config *Config, err error) {
	config, err = LoadRawConfig(filename)
	if err != nil {
		return nil, err
	}

	config.Filename = filename

	if config.Upstream.Address == "" {
		return nil, ErrUpstreamAddressMissing
	}
	if _, _, err := net.SplitHostPort(config.Upstream.Address); err != nil {
		return nil, fmt.Errorf("Could not parse upstream address: %s", err.Error())
	}
	if config.Upstream.DialTimeout == 0 {
		config.Upstream.DialTimeout = 30 * time.Second
	}
	if config.Upstream.ReadBufferString != "" {
		readBufferBytes, err := bytefmt.ToBytes(config.Upstream.ReadBufferString)
		if err != nil {
			return nil, fmt.Errorf("Could not parse read-buffer size (make sure it only contains whole numbers): %s", err.Error())
		}
		if readBufferBytes == 0 {
			return nil, ErrReadBufferZero
		}
		config.Upstream.readBufferBytes = int(readBufferBytes)
	} else {
		config.Upstream.readBufferBytes = 64 * 1024
	}

	err = config.prepareListeners()
	if err != nil {
		return nil, err
	}

	if len(config.Logging) == 0 {
		config.Logging = []logger.LoggingConfig{{
			Method:      "stderr",
			TypeString:  "*",
			LevelString: "info",
		}}
	}

	var newLogConfigs []logger.LoggingConfig
	for _, logConfig := range config.Logging {
		// methods
		methods := make(map[string]bool)
		for _, method := range strings.Split(logConfig.Method, " ") {
			if len(method) > 0 {
				methods[strings.ToLower(method)] = true
			}
		}
		if methods["file"] && logConfig.Filename == "" {
			return nil, ErrLoggerFilenameMissing
		}
		logConfig.MethodFile = methods["file"]
		logConfig.MethodStdout = methods["stdout"]
		logConfig.MethodStderr = methods["stderr"]

		// levels
		level, exists := logger.LogLevelNames[strings.ToLower(logConfig.LevelString)]
		if !exists {
			return nil, fmt.Errorf("Could not translate log level [%s]", logConfig.LevelString)
		}
		logConfig.Level = level

		// types
		for _, typeStr := range strings.Split(logConfig.TypeString, " ") {
			if len(typeStr) == 0 {
				continue
			}
			if typeStr == "-" {
				return nil, ErrLoggerExcludeEmpty
			}
			if typeStr[0] == '-' {
				typeStr = typeStr[1:]
				logConfig.ExcludedTypes = append(logConfig.ExcludedTypes, typeStr)
			} else {
				logConfig.Types = append(logConfig.Types, typeStr)
			}
		}
		if len(logConfig.Types) < 1 {
			return nil, ErrLoggerHasNoTypes
		}

		newLogConfigs = append(newLogConfigs, logConfig)
	}
	config.Logging = newLogConfigs

	return config, nil
}

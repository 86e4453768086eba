// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package main

import (
	_ "embed"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/muesli/reflow/ansi"
	"golang.org/x/term"

	"github.com/batproxy/batproxy/proxy"
	"github.com/batproxy/batproxy/proxy/logger"
	"github.com/batproxy/batproxy/proxy/mkcerts"
	"github.com/batproxy/batproxy/proxy/xterm"
)

// set via linker flags, either by make or by goreleaser:
var commit = ""  // git hash
var version = "" // tagged version

//go:embed default.yaml
var defaultConfig string

func fileDoesNotExist(file string) bool {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return true
	}
	return false
}

// hostFromAddr guesses the hostname a listener's self-signed cert
// should carry. Unix sockets, wildcard binds and raw IPs yield "",
// which keeps the cert localhost-only.
func hostFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(strings.TrimPrefix(addr, "unix:"))
	if err != nil || host == "" {
		return ""
	}
	if ip := net.ParseIP(host); ip != nil {
		return ""
	}
	return host
}

// implements the `batproxy mkcerts` command
func doMkcerts(configFile string, quiet bool) {
	config, err := proxy.LoadRawConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}
	if !quiet {
		log.Println("making self-signed certificates")
	}

	certToKey := make(map[string]string)
	for name, conf := range config.Listeners {
		if conf.TLS.Cert == "" {
			continue
		}
		existingKey, ok := certToKey[conf.TLS.Cert]
		if ok {
			if existingKey == conf.TLS.Key {
				continue
			} else {
				log.Fatal("Conflicting TLS key files for ", conf.TLS.Cert)
			}
		}
		if !quiet {
			log.Printf(" making cert for %s listener\n", name)
		}
		host := hostFromAddr(name)
		cert, key := conf.TLS.Cert, conf.TLS.Key
		if !(fileDoesNotExist(cert) && fileDoesNotExist(key)) {
			log.Fatalf("Preexisting TLS cert and/or key files: %s %s", cert, key)
		}
		err := mkcerts.CreateCert("batproxy", host, cert, key)
		if err == nil {
			if !quiet {
				log.Printf("  Certificate created at %s : %s\n", cert, key)
			}
			certToKey[cert] = key
		} else {
			log.Fatal("  Could not create certificate:", err.Error())
		}
	}
}

// implements the `batproxy colors` command: the xterm-256 colors the
// renderer can emit, swatched with their index and RGB value.
func doColors(bg bool) {
	colored := term.IsTerminal(int(os.Stdout.Fd()))
	sgr := 38
	if bg {
		sgr = 48
	}

	cell := func(index int) string {
		rgb, _ := xterm.RGB(uint8(index))
		if !colored {
			return fmt.Sprintf("%3d #%06x", index, rgb)
		}
		return fmt.Sprintf("\x1b[%d;5;%dm%3d #%06x\x1b[0m", sgr, index, index, rgb)
	}

	// pad by printable width; the escape sequences contribute zero
	pad := func(s string, width int) string {
		gap := width - ansi.PrintableRuneWidth(s)
		if gap < 0 {
			gap = 0
		}
		return s + strings.Repeat(" ", gap)
	}

	const cellWidth = 13

	fmt.Println("6x6x6 color cube:")
	for red := 0; red < 6; red++ {
		for green := 0; green < 6; green++ {
			var row []string
			for blue := 0; blue < 6; blue++ {
				row = append(row, pad(cell(16+36*red+6*green+blue), cellWidth))
			}
			fmt.Println(strings.Join(row, ""))
		}
		fmt.Println()
	}

	fmt.Println("grayscale ramp:")
	for line := 0; line < 4; line++ {
		var row []string
		for col := 0; col < 6; col++ {
			row = append(row, pad(cell(232+6*line+col), cellWidth))
		}
		fmt.Println(strings.Join(row, ""))
	}
}

func main() {
	proxy.SetVersionString(version, commit)
	usage := `batproxy.
Usage:
	batproxy run [--conf <filename>] [--quiet]
	batproxy mkcerts [--conf <filename>] [--quiet]
	batproxy colors [--bg]
	batproxy defaultconfig
	batproxy -h | --help
	batproxy --version
Options:
	--conf <filename>  Configuration file to use [default: batproxy.yaml].
	--bg               Swatch background colors instead of foreground.
	--quiet            Don't show startup/shutdown lines.
	-h --help          Show this screen.
	--version          Show version.`

	arguments, _ := docopt.ParseArgs(usage, nil, proxy.Ver)

	// these commands don't need a validated config
	if arguments["defaultconfig"].(bool) {
		fmt.Print(defaultConfig)
		return
	} else if arguments["colors"].(bool) {
		doColors(arguments["--bg"].(bool))
		return
	} else if arguments["mkcerts"].(bool) {
		doMkcerts(arguments["--conf"].(string), arguments["--quiet"].(bool))
		return
	}

	configfile := arguments["--conf"].(string)
	config, err := proxy.LoadConfig(configfile)
	if err != nil {
		log.Fatal("Config file did not load successfully: ", err.Error())
	}

	logman, err := logger.NewManager(config.Logging)
	if err != nil {
		log.Fatal("Logger did not load successfully:", err.Error())
	}

	if arguments["run"].(bool) {
		if !arguments["--quiet"].(bool) {
			logman.Info("startup", fmt.Sprintf("%s starting", proxy.Ver))
		}

		server, err := proxy.NewServer(config, logman)
		if err != nil {
			logman.Error("startup", fmt.Sprintf("Could not load server: %s", err.Error()))
			os.Exit(1)
		}
		if !arguments["--quiet"].(bool) {
			logman.Info("startup", "Proxy running")
			defer logman.Info("shutdown", fmt.Sprintf("%s exiting", proxy.Ver))
		}
		server.Run()
	}
}

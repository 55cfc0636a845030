// Package config manages the gemd server configuration file.
//
// The configuration is a YAML file holding the listen address, certificate
// source, ALPN list, served resource and connection hardening settings.
// Command-line flags override the file. The file is stored in
// platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/gemd/config.yaml or $HOME/.config/gemd/config.yaml
//   - macOS: $HOME/.config/gemd/config.yaml
//   - Windows: %LOCALAPPDATA%\gemd\config.yaml
//
// # Usage Example
//
//	file, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	file.Port = 1966
//	if err := file.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// A missing file is not an error: Load returns the defaults
// (127.0.0.1:1965, generated certificate, 30s connection timeout).
package config

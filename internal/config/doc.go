// Package config provides configuration management for cloudphone.
//
// Configuration is loaded from config.yaml in a single directory. The default
// directory is ~/.config/cloudphone; it can be changed with the --config-path
// flag or the CLOUDPHONE_CONFIG_PATH environment variable. Without a
// config.yaml the built-in defaults describe the four services of a
// cloud-phone host.
//
// # Example
//
//	supervisor:
//	  bus: system
//	  target: cloudphone.target
//	poll:
//	  interval: 2s
//	escalation:
//	  promptTimeout: 60
//	services:
//	  - name: redroid
//	    priority: 10
//	    timeout: 120s
//	    health:
//	      type: port
//	      address: 127.0.0.1:{{ env "ADB_PORT" | default "5555" }}
//	  - name: control-api
//	    priority: 30
//	    timeout: 20
//	    health:
//	      type: http
//	      url: http://127.0.0.1:8000/health
//
// The file is a text/template with the sprig functions available. Durations
// are Go duration strings or integer seconds. CLOUDPHONE_UNATTENDED=true
// forces unattended escalation.
package config

// Package config provides configuration loading for the pneumatic dev server.
//
// Values are layered with viper, lowest precedence first:
//
//  1. built-in defaults
//  2. an optional pneumatic.json / pneumatic.yaml in the project root
//  3. environment variables (PORT, HOST, NODE_ENV, and PNEUMATIC_* for the rest)
//  4. command line flags bound by the CLI
//
// # Configuration File Structure
//
//	{
//	  "mode": "development",
//	  "entries": {
//	    "client": "src/clientEntry.tsx",
//	    "server": "src/serverEntry.ts"
//	  },
//	  "dev": {
//	    "port": 8080,
//	    "host": "127.0.0.1",
//	    "debounce": "3s",
//	    "proxy": "http://localhost:9000",
//	    "ignore": ["dist"]
//	  },
//	  "sandbox": {
//	    "installTimeout": "10s",
//	    "drainTimeout": "2s"
//	  },
//	  "publish": {
//	    "bucket": "my-dev-artifacts",
//	    "prefix": "pneumatic/",
//	    "region": "us-east-1"
//	  }
//	}
//
// Only the mode switch affects build settings: "development" builds the client
// unminified with inline source maps, any other value is treated as production.
//
// # Usage
//
//	cfg, err := config.Load(viper.New(), ".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.DevAddress())
package config

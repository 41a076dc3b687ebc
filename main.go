// Grounded on chuimengdaoxizhou-go-redis/main.go: fileExists-gated
// config load, then logger.Setup, then ListenAndServerWithSignal.
// Wires config.Load (viper-backed, C10) through the meta Store,
// Backend Pool, Router and Session handler (C3-C6) into the Listener
// (C9), where the teacher wired its config straight into a single
// local database.
package main

import (
	"flag"
	"fmt"
	"os"

	"rcproxy/cluster"
	"rcproxy/config"
	"rcproxy/lib/logger"
	"rcproxy/lib/metrics"
	"rcproxy/resp/client"
	"rcproxy/resp/handler"
	"rcproxy/tcp"
)

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

func main() {
	configFile := flag.String("config", "rcproxy.yaml", "path to the proxy config file")
	flag.Parse()

	path := *configFile
	if !fileExists(path) {
		path = ""
	}
	props, err := config.Load(path)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	if err := logger.Setup(&logger.Settings{
		Path:       props.LogPath,
		Name:       props.LogName,
		Ext:        props.LogExt,
		TimeFormat: "2006-01-02",
	}); err != nil {
		logger.Fatalf("setting up logger: %v", err)
	}
	metrics.Init("rcproxy")

	store := cluster.NewStore()
	pool := cluster.NewPool(client.Options{
		MaxOutstanding: props.BackendOutstandingCap,
		MinBackoff:     props.BackendBackoffMin,
		MaxBackoff:     props.BackendBackoffMax,
		DialTimeout:    props.BackendConnectTimeout,
	})
	router := cluster.NewRouter(store, pool, props.AdminTenant)
	h := handler.MakeHandler(router, props.PipelineCap)

	addr := fmt.Sprintf("%s:%d", props.Bind, props.Port)
	logger.Infof("rcproxy listening on %s, admin tenant %q", addr, props.AdminTenant)

	err = tcp.ListenAndServerWithSignal(&tcp.Config{
		Address:         addr,
		MaxOpenSessions: props.MaxOpenSessions,
	}, h)
	if err != nil {
		logger.Error(err)
	}
}

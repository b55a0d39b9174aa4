// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// journeycore-demo drives pkg/runtime end to end against an in-memory
// web-view host and plugin registry, for exercising a manifest on a
// developer's machine without a real partner app embedding the SDK.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/partnersdk/journeycore/internal/config"
	"github.com/partnersdk/journeycore/internal/crypto/keystore"
	"github.com/partnersdk/journeycore/internal/log"
	"github.com/partnersdk/journeycore/pkg/bridge"
	"github.com/partnersdk/journeycore/pkg/runtime"
	"github.com/partnersdk/journeycore/pkg/session"
)

// Version information (injected via ldflags at build time).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to a runtime configuration YAML file")
		journeyID    = flag.String("journey-id", "acct-open", "Journey identifier to start")
		contextToken = flag.String("context-token", "demo-context-token", "Authorization token passed to the manifest loader and API client")
		showVersion  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("journeycore-demo %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load runtime configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt := runtime.New(runtime.Options{
		Config:        cfg,
		KeyStore:      keystore.NewStaticStore(nil),
		SnapshotStore: session.NewMemoryStore(),
		WebViewHost:   &consoleWebViewHost{logger: logger},
		Plugins:       newDemoPluginRegistry(),
	}, *contextToken)

	logger.Info("starting journey", slog.String(log.JourneyIDKey, *journeyID))
	res := rt.StartJourney(ctx, *journeyID)

	switch res.Kind {
	case runtime.ResultCompleted:
		logger.Info("journey completed", slog.Any("payload", res.Payload))
	case runtime.ResultPending:
		logger.Info("journey pending", slog.Any("payload", res.Payload))
	case runtime.ResultCancelled:
		logger.Warn("journey cancelled")
		os.Exit(130)
	case runtime.ResultFailed:
		logger.Error("journey failed", slog.String("code", string(res.Code)), slog.String("message", res.Message), slog.Bool("recoverable", res.Recoverable))
		os.Exit(1)
	}
}

// consoleWebViewHost stands in for a real web-view: it logs what would be
// presented to the page and prints every outbound envelope as JSON
// (spec §6 "Web view host").
type consoleWebViewHost struct {
	logger *slog.Logger
}

func (h *consoleWebViewHost) Present(url string, allowedOrigins []string, allowFileOrigins bool) error {
	h.logger.Info("presenting web view", slog.String("url", url), slog.Any("allowed_origins", allowedOrigins), slog.Bool("allow_file_origins", allowFileOrigins))
	return nil
}

func (h *consoleWebViewHost) DispatchToPage(envelope bridge.OutboundEnvelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("failed to marshal outbound envelope", slog.Any("error", err))
		return
	}
	h.logger.Info("dispatch to page", slog.String("envelope", string(data)))
}

// demoPluginRegistry answers a single demo.getDeviceInfo method, standing
// in for a real native capability plugin (spec §6 "Plugin").
type demoPluginRegistry struct {
	plugin bridge.Plugin
}

func newDemoPluginRegistry() *demoPluginRegistry {
	return &demoPluginRegistry{plugin: &deviceInfoPlugin{}}
}

func (r *demoPluginRegistry) Resolve(method string) (bridge.Plugin, bool) {
	if r.plugin.CanHandle(method) {
		return r.plugin, true
	}
	return nil, false
}

type deviceInfoPlugin struct{}

func (p *deviceInfoPlugin) Name() string { return "demo.deviceInfo" }

func (p *deviceInfoPlugin) CanHandle(method string) bool {
	return method == "demo.getDeviceInfo"
}

func (p *deviceInfoPlugin) Handle(method string, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"platform": "journeycore-demo", "version": version}, nil
}

/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"fmt"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/config"
	"github.com/xzzpig/graph-gateway/internal/core/gateway"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

// admissionConfig builds the gate configuration from the [admission] section,
// with the rules file layered on top when one is configured.
func admissionConfig(cfg *config.Config) (admission.Config, error) {
	rules := make([]admission.CostRule, len(cfg.Admission.Rules))
	for i, r := range cfg.Admission.Rules {
		rules[i] = admission.CostRule{FieldName: r.Field, Cost: r.Cost, MultiplierArgument: r.Multiplier}
	}

	out := admission.Config{
		MaximumCost:      cfg.Admission.MaximumCost,
		DefaultCost:      cfg.Admission.DefaultCost,
		MultiplierPolicy: admission.MultiplierPolicy(cfg.Admission.MultiplierPolicy),
		Rules:            rules,
	}

	if cfg.Admission.RulesFile != "" {
		f, err := admission.LoadRulesFile(cfg.Admission.RulesFile)
		if err != nil {
			return admission.Config{}, err
		}
		out = f.Apply(out)
	}
	return out, nil
}

// buildGate creates a gate from the current configuration.
func buildGate(cfg *config.Config, opts ...admission.Option) (*admission.Gate, error) {
	ac, err := admissionConfig(cfg)
	if err != nil {
		return nil, err
	}
	gate, err := admission.New(ac, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid admission configuration: %w", err)
	}
	return gate, nil
}

// buildRegistry creates the upstream registry from the [[upstreams]] entries.
func buildRegistry(cfg *config.Config) (*upstream.Registry, error) {
	services := make([]upstream.Service, len(cfg.Upstreams))
	for i, u := range cfg.Upstreams {
		services[i] = upstream.Service{Name: u.Name, URL: u.URL, RootFields: u.RootFields}
	}
	return upstream.NewRegistry(services)
}

// gatewayConfig builds the runtime configuration. The gate runs as the first
// pre-execution hook.
func gatewayConfig(cfg *config.Config, registry *upstream.Registry, client ports.UpstreamClient, gates ports.GateProvider) gateway.Config {
	return gateway.Config{
		Registry:       registry,
		Client:         client,
		Hooks:          []gateway.PreExecutionHook{gateway.NewAdmissionHook(gates)},
		MaxConcurrency: cfg.Upstream.MaxConcurrency,
		Debug:          cfg.App.Debug,
	}
}

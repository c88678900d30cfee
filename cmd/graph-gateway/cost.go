/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/config"
)

var (
	costQueryFile string
	costVariables string
	costOperation string
)

// costCmd estimates the cost of a query with the configured rules.
var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the cost of a query without running it",
	Long: `Reads a GraphQL document, evaluates it with the configured cost rules and
prints the cost report as JSON. Exits non-zero when the gateway would reject it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return runCost(cmd, cfg)
	},
}

func runCost(cmd *cobra.Command, cfg *config.Config) error {
	query, err := os.ReadFile(costQueryFile)
	if err != nil {
		return fmt.Errorf("failed to read query: %w", err)
	}

	var variables map[string]any
	if costVariables != "" {
		dec := json.NewDecoder(bytes.NewReader([]byte(costVariables)))
		dec.UseNumber()
		if err := dec.Decode(&variables); err != nil {
			return fmt.Errorf("invalid variables: %w", err)
		}
	}

	doc, err := parser.ParseQuery(&ast.Source{Name: costQueryFile, Input: string(query)})
	if err != nil {
		return err
	}

	gate, err := buildGate(cfg)
	if err != nil {
		return err
	}

	report, evalErr := gate.Evaluate(admission.NewRequest(doc, costOperation, variables))
	if report != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	return evalErr
}

func init() {
	rootCmd.AddCommand(costCmd)
	costCmd.Flags().StringVarP(&costQueryFile, "query", "q", "", "file containing the GraphQL document")
	costCmd.Flags().StringVar(&costVariables, "variables", "", "variables as a JSON object")
	costCmd.Flags().StringVar(&costOperation, "operation", "", "operation name when the document has several")
	_ = costCmd.MarkFlagRequired("query")
}

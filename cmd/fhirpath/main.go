package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lithammer/dedent"
	"github.com/spf13/cobra"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/funcs"
)

var version = "dev"

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute() error {
	rootCmd := newRootCmd()
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fhirpath",
		Short: "FHIRPath expression evaluator",
		Long: dedent.Dedent(`
			fhirpath compiles and evaluates FHIRPath expressions against FHIR
			resources (R4, R4B, R5 JSON).

			For more information on the language, see https://hl7.org/fhirpath/`),
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newEvalCmd())
	rootCmd.AddCommand(newBenchCmd())
	rootCmd.AddCommand(newFunctionsCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("fhirpath version %s\n", version)
		},
	}
}

func newEvalCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "eval [expression] [file]",
		Short: "Evaluate a FHIRPath expression",
		Long: dedent.Dedent(`
			Evaluate a FHIRPath expression against a FHIR resource read from file.

			Examples:
			  fhirpath eval "Patient.name.given" patient.json
			  fhirpath eval "Observation.value.ofType(Quantity).value" observation.json
			  fhirpath eval "Bundle.entry.resource.ofType(Patient)" bundle.json --output json`),
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			expression := args[0]
			filePath := args[1]

			resourceData, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", filePath, err)
			}

			compiled, err := fhirpath.Compile(expression)
			if err != nil {
				return fmt.Errorf("invalid FHIRPath expression: %w", err)
			}

			result, err := compiled.Evaluate(resourceData)
			if err != nil {
				return fmt.Errorf("evaluation error: %w", err)
			}

			switch outputFormat {
			case "json":
				return outputJSON(result)
			default:
				return outputText(result)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func outputText(result fhirpath.Collection) error {
	if result.Empty() {
		fmt.Println("(empty)")
		return nil
	}

	for i, value := range result {
		if len(result) > 1 {
			fmt.Printf("[%d] ", i)
		}
		fmt.Println(value.String())
	}
	return nil
}

func outputJSON(result fhirpath.Collection) error {
	if result.Empty() {
		fmt.Println("[]")
		return nil
	}

	output := make([]interface{}, len(result))
	for i, value := range result {
		output[i] = valueToInterface(value)
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fmt.Println(string(jsonBytes))
	return nil
}

func valueToInterface(v fhirpath.Value) interface{} {
	switch val := v.(type) {
	case interface{ Bool() bool }:
		return val.Bool()
	case interface{ Value() int64 }:
		return val.Value()
	case interface{ Value() string }:
		return val.Value()
	default:
		return v.String()
	}
}

func newBenchCmd() *cobra.Command {
	var iterations int

	cmd := &cobra.Command{
		Use:   "bench [expression] [file]",
		Short: "Measure repeated evaluation time for an expression",
		Long: dedent.Dedent(`
			Compile an expression once and evaluate it repeatedly against a
			resource, reporting total and per-evaluation wall time. Useful for
			catching an accidental collection-size blowup in a lambda before
			it reaches a hot path.`),
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			expression := args[0]
			filePath := args[1]

			resourceData, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", filePath, err)
			}

			compiled, err := fhirpath.Compile(expression)
			if err != nil {
				return fmt.Errorf("invalid FHIRPath expression: %w", err)
			}

			start := time.Now()
			for i := 0; i < iterations; i++ {
				if _, err := compiled.Evaluate(resourceData); err != nil {
					return fmt.Errorf("evaluation error on iteration %d: %w", i, err)
				}
			}
			elapsed := time.Since(start)

			fmt.Printf("%d evaluations in %s (%s/op)\n", iterations, elapsed, elapsed/time.Duration(iterations))
			if n := funcs.DefaultRegexCache.Size(); n > 0 {
				fmt.Printf("regex cache: %d compiled pattern(s)\n", n)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 10000, "Number of evaluations to run")

	return cmd
}

func newFunctionsCmd() *cobra.Command {
	var shapeFlag string

	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List registered FHIRPath functions",
		Long: dedent.Dedent(`
			List the names of every function registered with the evaluator,
			optionally filtered to one dispatch shape (pure, context-aware,
			lazy, provider).`),
		RunE: func(_ *cobra.Command, _ []string) error {
			var names []string
			switch shapeFlag {
			case "":
				names = funcs.List()
			case "pure":
				names = funcs.ByShape(eval.ShapePure)
			case "context-aware":
				names = funcs.ByShape(eval.ShapeContextAware)
			case "lazy":
				names = funcs.ByShape(eval.ShapeLazy)
			case "provider":
				names = funcs.ByShape(eval.ShapeProvider)
			default:
				return fmt.Errorf("unknown shape %q (want pure, context-aware, lazy, or provider)", shapeFlag)
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&shapeFlag, "shape", "", "Filter by dispatch shape")

	return cmd
}
